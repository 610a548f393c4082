// Package messages defines the typed JSON envelopes exchanged with the
// browser client. Marshalling goes through sonic: the audio path produces a
// message per frame and the stdlib encoder is the hot spot at that rate.
package messages

import (
	"github.com/kyousukehsm/TrivAI/transcript"
	"github.com/kyousukehsm/TrivAI/trivia"

	"github.com/bytedance/sonic"
)

// Error codes
const (
	ErrCodeInvalidMessage   = "INVALID_MESSAGE"
	ErrCodeSessionFailed    = "SESSION_FAILED"
	ErrCodeConnectionClosed = "CONNECTION_CLOSED"
	ErrCodeLiveError        = "LIVE_ERROR"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeBufferFull       = "BUFFER_FULL"
)

// Message types
const (
	TypeAudio      = "audio"
	TypeTranscript = "transcript"
	TypeQuestion   = "question"
	TypeAnswer     = "answer_result"
	TypeSpeaking   = "speaking"
	TypeStatus     = "status"
	TypeError      = "error"
)

// ServerMessage represents a message sent to the frontend client
type ServerMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Marshal encodes a message for the wire.
func Marshal(msg any) ([]byte, error) {
	return sonic.Marshal(msg)
}

// Unmarshal decodes a client message from the wire.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// AudioResponsePayload contains audio data for the client
type AudioResponsePayload struct {
	Data     string `json:"data"`     // Base64-encoded PCM audio
	MimeType string `json:"mimeType"` // "audio/pcm;rate=24000"
}

// TranscriptPayload contains the ordered conversation turns
type TranscriptPayload struct {
	Turns []transcript.Turn `json:"turns"`
}

// QuestionPayload carries one generated question. The answer index is kept
// server-side; the client learns it from the answer result.
type QuestionPayload struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Source  string   `json:"source,omitempty"`
}

// AnswerResultPayload reports whether the answer was right, the host line
// to display, and optionally the spoken version of it.
type AnswerResultPayload struct {
	Correct      bool   `json:"correct"`
	AnswerIndex  int    `json:"answerIndex"`
	HostLine     string `json:"hostLine"`
	Audio        string `json:"audio,omitempty"` // base64 24kHz PCM, empty when voice offline
	VoiceOffline bool   `json:"voiceOffline"`
}

// SpeakingPayload signals host speech start/stop for the UI and ducking
type SpeakingPayload struct {
	Speaking bool `json:"speaking"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	// Status: "connected", "live_connecting", "live_open", "live_closed",
	// "live_error", "turn_complete", "joined", "name_rejected", "pong"
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAudioMessage creates an audio response message
func NewAudioMessage(sessionID, data string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAudio,
		SessionID: sessionID,
		Payload: AudioResponsePayload{
			Data:     data,
			MimeType: "audio/pcm;rate=24000",
		},
	}
}

// NewTranscriptMessage creates a transcript update message
func NewTranscriptMessage(sessionID string, turns []transcript.Turn) *ServerMessage {
	return &ServerMessage{
		Type:      TypeTranscript,
		SessionID: sessionID,
		Payload:   TranscriptPayload{Turns: turns},
	}
}

// NewQuestionMessage creates a question message
func NewQuestionMessage(sessionID string, q *trivia.Question) *ServerMessage {
	return &ServerMessage{
		Type:      TypeQuestion,
		SessionID: sessionID,
		Payload: QuestionPayload{
			Text:    q.Text,
			Options: q.Options,
			Source:  q.Source,
		},
	}
}

// NewAnswerResultMessage creates an answer result message
func NewAnswerResultMessage(sessionID string, result AnswerResultPayload) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAnswer,
		SessionID: sessionID,
		Payload:   result,
	}
}

// NewSpeakingMessage creates a speaking state message
func NewSpeakingMessage(sessionID string, speaking bool) *ServerMessage {
	return &ServerMessage{
		Type:      TypeSpeaking,
		SessionID: sessionID,
		Payload:   SpeakingPayload{Speaking: speaking},
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(sessionID, status, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeStatus,
		SessionID: sessionID,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(sessionID, code, message string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		SessionID: sessionID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}
