package gemini

import (
	"context"
	"log"
	"strings"

	"google.golang.org/genai"
)

// Moderator implements trivia.Moderator: screens player names for display.
// Fail-open: any transport or parse failure reports the name as safe, so a
// moderation outage never blocks joining a game.
type Moderator struct {
	client *genai.Client
}

// NewModerator builds a Moderator sharing the proxy's client.
func NewModerator(client *genai.Client) *Moderator {
	return &Moderator{client: client}
}

// Check reports whether a player name is acceptable for public display.
func (m *Moderator) Check(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return true
	}

	prompt := "Is the following username acceptable for public display in a family trivia game? " +
		"Answer with exactly SAFE or UNSAFE.\nUsername: " + name

	resp, err := m.client.Models.GenerateContent(ctx, generateModelName,
		genai.Text(prompt), nil)
	if err != nil {
		log.Printf("⚠️ Username moderation unavailable, allowing %q: %v", name, err)
		return true
	}

	verdict := strings.ToUpper(strings.TrimSpace(resp.Text()))
	return !strings.HasPrefix(verdict, "UNSAFE")
}
