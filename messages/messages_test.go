package messages

import (
	"testing"

	"github.com/kyousukehsm/TrivAI/transcript"
	"github.com/kyousukehsm/TrivAI/trivia"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMessageDecode(t *testing.T) {
	raw := []byte(`{"type":"control","payload":{"action":"next_question","topic":"space"}}`)

	var msg ClientMessage
	require.NoError(t, Unmarshal(raw, &msg))
	assert.Equal(t, "control", msg.Type)

	var payload ControlPayload
	require.NoError(t, Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "next_question", payload.Action)
	assert.Equal(t, "space", payload.Topic)
}

func TestAudioMessageWire(t *testing.T) {
	msg := NewAudioMessage("abc", "cGNt")
	data, err := Marshal(msg)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"audio"`)
	assert.Contains(t, string(data), `"mimeType":"audio/pcm;rate=24000"`)
	assert.Contains(t, string(data), `"sessionId":"abc"`)
}

func TestQuestionMessageOmitsAnswer(t *testing.T) {
	q := &trivia.Question{
		Text:              "Largest ocean?",
		Options:           []string{"Atlantic", "Pacific", "Indian", "Arctic"},
		AnswerIndex:       1,
		CorrectResponse:   "Right!",
		IncorrectResponse: "Nope.",
	}

	data, err := Marshal(NewQuestionMessage("abc", q))
	require.NoError(t, err)

	// The client must not learn the answer or the host lines before answering.
	assert.NotContains(t, string(data), "answerIndex")
	assert.NotContains(t, string(data), "Right!")
	assert.Contains(t, string(data), "Pacific")
}

func TestAnswerResultMessageWire(t *testing.T) {
	msg := NewAnswerResultMessage("abc", AnswerResultPayload{
		Correct:      true,
		AnswerIndex:  1,
		HostLine:     "Right!",
		VoiceOffline: true,
	})
	require.Equal(t, TypeAnswer, msg.Type)

	data, err := Marshal(msg)
	require.NoError(t, err)

	// A client switching on the type constant must be able to tell the
	// answer result apart from a plain status update and parse its fields.
	assert.Contains(t, string(data), `"type":"answer_result"`)
	assert.Contains(t, string(data), `"correct":true`)
	assert.Contains(t, string(data), `"answerIndex":1`)
	assert.Contains(t, string(data), `"hostLine":"Right!"`)
	assert.Contains(t, string(data), `"voiceOffline":true`)
	assert.NotContains(t, string(data), `"status"`)
	assert.NotContains(t, string(data), `"audio"`)
}

func TestTranscriptMessageOrder(t *testing.T) {
	turns := []transcript.Turn{
		{ID: "1", Role: transcript.RoleUser, Text: "hello"},
		{ID: "2", Role: transcript.RoleHost, Text: "hi there"},
	}

	data, err := Marshal(NewTranscriptMessage("abc", turns))
	require.NoError(t, err)

	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			Turns []transcript.Turn `json:"turns"`
		} `json:"payload"`
	}
	require.NoError(t, Unmarshal(data, &decoded))
	assert.Equal(t, TypeTranscript, decoded.Type)
	assert.Equal(t, turns, decoded.Payload.Turns)
}

func TestErrorMessage(t *testing.T) {
	data, err := Marshal(NewErrorMessage("abc", ErrCodeBufferFull, "too much audio"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ErrCodeBufferFull)
	assert.Contains(t, string(data), "too much audio")
}
