// Package gemini wraps the generative-AI service: the bidirectional Live
// audio channel plus the request/response collaborators (question
// generation, turn-based speech synthesis, username moderation).
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"

	"google.golang.org/genai"
)

const liveModelName = "models/gemini-2.5-flash-native-audio-preview-12-2025"

// DefaultHostVoice is the prebuilt voice used for the trivia host.
// Available voices: Puck, Charon, Kore, Fenrir, Aoede, Leda, Orus, Zephyr.
const DefaultHostVoice = "Zephyr"

// Proxy manages one connection to the Gemini Live API. Callbacks are set
// before Open; every send checks connection state first, so frames produced
// during connect or teardown are dropped rather than queued.
type Proxy struct {
	client  *genai.Client
	session *genai.Session
	voice   string

	// Callbacks for inbound traffic.
	OnAudioRaw       func(base64Data string) // base64 24kHz PCM from the host
	OnUserTranscript func(text string)       // delta transcription of the caller
	OnHostTranscript func(text string)       // delta transcription of the host
	OnComplete       func()
	OnToolCall       func(functionCalls []*genai.FunctionCall)
	OnError          func(err error)
	OnClosed         func()

	mu     sync.RWMutex
	closed bool
}

// NewProxy creates a Gemini client. The Live session is opened by Open.
func NewProxy(ctx context.Context, apiKey string) (*Proxy, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Proxy{client: client, voice: DefaultHostVoice}, nil
}

// SetVoice overrides the host voice before Open.
func (gp *Proxy) SetVoice(voice string) {
	if voice != "" {
		gp.voice = voice
	}
}

// Open establishes the Live session with the host instructions and starts
// the receive loop. Input and output transcription are enabled so both
// sides of the conversation arrive as text deltas.
func (gp *Proxy) Open(ctx context.Context, systemPrompt string, tools []*genai.Tool) error {
	gp.mu.Lock()
	if gp.closed {
		gp.mu.Unlock()
		return fmt.Errorf("proxy is closed")
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{"AUDIO"},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		},
		Tools: tools,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: gp.voice,
				},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}

	session, err := gp.client.Live.Connect(ctx, liveModelName, config)
	if err != nil {
		gp.mu.Unlock()
		return fmt.Errorf("failed to connect to Live API: %w", err)
	}
	gp.session = session
	gp.mu.Unlock()

	log.Printf("✅ Connected to Gemini Live via SDK (%s)", liveModelName)
	gp.startReceiving(ctx)
	return nil
}

// startReceiving listens for Live messages until the session errors or
// closes.
func (gp *Proxy) startReceiving(ctx context.Context) {
	go func() {
		defer func() {
			if gp.OnClosed != nil {
				gp.OnClosed()
			}
		}()

		for {
			if ctx.Err() != nil {
				return
			}

			gp.mu.RLock()
			if gp.closed || gp.session == nil {
				gp.mu.RUnlock()
				return
			}
			session := gp.session
			gp.mu.RUnlock()

			// Receive blocks until a message arrives or error occurs.
			resp, err := session.Receive()
			if err != nil {
				gp.mu.RLock()
				closed := gp.closed
				gp.mu.RUnlock()

				if !closed {
					log.Printf("❌ Gemini receive error: %v", err)
					if gp.OnError != nil {
						gp.OnError(err)
					}
				}
				return
			}

			gp.handleResponse(resp)
		}
	}()
}

func (gp *Proxy) handleResponse(resp *genai.LiveServerMessage) {
	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		log.Printf("📥 Received from Gemini: %d function call(s)", len(resp.ToolCall.FunctionCalls))
		if gp.OnToolCall != nil {
			gp.OnToolCall(resp.ToolCall.FunctionCalls)
		}
	}

	sc := resp.ServerContent
	if sc == nil {
		// Unknown payload kinds are ignored, not fatal.
		return
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && gp.OnUserTranscript != nil {
		gp.OnUserTranscript(sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" && gp.OnHostTranscript != nil {
		gp.OnHostTranscript(sc.OutputTranscription.Text)
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && gp.OnAudioRaw != nil {
				gp.OnAudioRaw(base64.StdEncoding.EncodeToString(part.InlineData.Data))
			}
		}
	}

	if sc.TurnComplete && gp.OnComplete != nil {
		gp.OnComplete()
	}
}

// Send forwards one raw PCM audio chunk (16 kHz 16-bit LE) to Gemini. A
// send on a closed or not-yet-open proxy is an error the caller drops
// silently during teardown.
func (gp *Proxy) Send(audioData []byte) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("proxy is closed or not connected")
	}

	err := session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: "audio/pcm;rate=16000",
			Data:     audioData,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// SendStreamEnd signals that the caller's audio stream has ended, prompting
// Gemini to process the accumulated audio and respond.
func (gp *Proxy) SendStreamEnd() error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("proxy is closed or not connected")
	}

	err := session.SendRealtimeInput(genai.LiveRealtimeInput{
		AudioStreamEnd: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send audio stream end: %w", err)
	}
	return nil
}

// SendToolResponse sends function call responses back to Gemini.
func (gp *Proxy) SendToolResponse(responses []*genai.FunctionResponse) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return fmt.Errorf("proxy is closed or not connected")
	}

	err := session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	return nil
}

// Close terminates the Live connection. Idempotent.
func (gp *Proxy) Close() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return nil
	}
	gp.closed = true

	if gp.session != nil {
		return gp.session.Close()
	}
	return nil
}

// Client exposes the underlying GenAI client for the request/response
// collaborators that share it.
func (gp *Proxy) Client() *genai.Client {
	return gp.client
}
