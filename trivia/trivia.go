// Package trivia defines the contracts the game layer consumes: question
// generation, turn-based host speech, and username moderation. The game UI,
// scoring and leaderboard live outside this repository and talk to the core
// only through these shapes.
package trivia

import "context"

// Question is the fixed-shape result of one generation call.
type Question struct {
	Text        string   `json:"question"`
	Options     []string `json:"options"` // always ≥ 2
	AnswerIndex int      `json:"answerIndex"`
	// Host commentary read out after the player answers.
	CorrectResponse   string `json:"correctResponse"`
	IncorrectResponse string `json:"incorrectResponse"`
	// Optional source attribution for the fact.
	Source string `json:"source,omitempty"`
}

// Generator produces trivia questions, excluding previously asked texts.
type Generator interface {
	Generate(ctx context.Context, topic, personality, difficulty string, exclude []string) (*Question, error)
}

// Synthesizer turns host commentary into base64 24 kHz PCM. An empty string
// with a nil error means the voice is unavailable for this turn (quota) and
// the caller degrades to captioned mode. That is not an error.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
}

// Moderator screens player names. Implementations fail open: a transport
// error reports the name as acceptable.
type Moderator interface {
	Check(ctx context.Context, name string) bool
}

// FallbackQuestion is served when generation fails, so a transport error
// never stalls the game.
func FallbackQuestion() *Question {
	return &Question{
		Text:              "Which planet in our solar system has the most moons?",
		Options:           []string{"Jupiter", "Saturn", "Neptune", "Mars"},
		AnswerIndex:       1,
		CorrectResponse:   "Saturn takes it — well over a hundred confirmed moons!",
		IncorrectResponse: "Close, but Saturn holds the record with over a hundred moons.",
	}
}
