package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/kyousukehsm/TrivAI/trivia"

	"google.golang.org/genai"
)

const generateModelName = "models/gemini-2.5-flash"

// Generator implements trivia.Generator on the GenAI text API with a JSON
// response schema, so the result always has the fixed question shape.
type Generator struct {
	client *genai.Client
}

// NewGenerator builds a Generator sharing the proxy's client.
func NewGenerator(client *genai.Client) *Generator {
	return &Generator{client: client}
}

var questionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"question":          {Type: genai.TypeString},
		"options":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"answerIndex":       {Type: genai.TypeInteger},
		"correctResponse":   {Type: genai.TypeString},
		"incorrectResponse": {Type: genai.TypeString},
		"source":            {Type: genai.TypeString},
	},
	Required: []string{"question", "options", "answerIndex", "correctResponse", "incorrectResponse"},
}

// Generate produces one question, avoiding the texts in exclude.
func (g *Generator) Generate(ctx context.Context, topic, personality, difficulty string, exclude []string) (*trivia.Question, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write one %s multiple-choice trivia question about %s with exactly 4 options.\n", difficulty, topic)
	fmt.Fprintf(&sb, "Write the correct and incorrect host responses in this personality: %s.\n", personality)
	if len(exclude) > 0 {
		sb.WriteString("Do not repeat any of these previously asked questions:\n")
		for _, q := range exclude {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, generateModelName,
		genai.Text(sb.String()),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   questionSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("generate question: %w", err)
	}

	var q trivia.Question
	if err := json.Unmarshal([]byte(resp.Text()), &q); err != nil {
		return nil, fmt.Errorf("parse question JSON: %w", err)
	}
	if len(q.Options) < 2 || q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Options) {
		return nil, fmt.Errorf("generated question has invalid shape: %d options, answer %d", len(q.Options), q.AnswerIndex)
	}

	log.Printf("🎲 Generated question: %s", q.Text)
	return &q, nil
}
