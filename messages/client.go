package messages

import "encoding/json"

// ClientMessage represents a message from the frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "audio", "control", "join", "answer"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload contains audio data from the client
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded 16kHz PCM audio
}

// ControlPayload contains control commands
type ControlPayload struct {
	// Action: "ping", "connect", "disconnect", "end_turn", "next_question"
	Action     string `json:"action"`
	Topic      string `json:"topic,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// JoinPayload carries the player's requested display name
type JoinPayload struct {
	Name string `json:"name"`
}

// AnswerPayload carries the selected option for the current question
type AnswerPayload struct {
	Index int `json:"index"`
}
