package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"google.golang.org/genai"
)

const ttsModelName = "models/gemini-2.5-flash-preview-tts"

// Speech implements trivia.Synthesizer: turn-based speech synthesis for the
// quiz mode, one utterance per call, returning base64 24 kHz PCM.
type Speech struct {
	client *genai.Client
}

// NewSpeech builds a Speech collaborator sharing the proxy's client.
func NewSpeech(client *genai.Client) *Speech {
	return &Speech{client: client}
}

// Synthesize renders text with the given prebuilt voice. Quota exhaustion is
// a soft signal, not an error: the caller gets ("", nil) and marks the voice
// offline for that turn only.
func (s *Speech) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if voiceID == "" {
		voiceID = DefaultHostVoice
	}

	resp, err := s.client.Models.GenerateContent(ctx, ttsModelName,
		genai.Text(text),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
						VoiceName: voiceID,
					},
				},
			},
		})
	if err != nil {
		if isQuotaErr(err) {
			log.Printf("🔇 TTS quota exhausted, voice offline for this turn")
			return "", nil
		}
		return "", fmt.Errorf("synthesize speech: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return base64.StdEncoding.EncodeToString(part.InlineData.Data), nil
			}
		}
	}
	return "", nil
}

// isQuotaErr detects rate/quota refusals from the API.
func isQuotaErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "429") ||
		strings.Contains(strings.ToLower(msg), "quota")
}
