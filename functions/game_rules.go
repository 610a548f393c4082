// Package functions declares the Gemini tools available to the live host.
package functions

import "google.golang.org/genai"

// GetGameRulesFunctionDeclaration returns the declaration the live host can
// call when a player asks how the game works.
func GetGameRulesFunctionDeclaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "GetGameRules",
		Description: "Get the rules and scoring of the trivia game"}
}

var rules = `
TrivAI is a voice trivia game. Each round the host asks one multiple-choice
question with four options. Players answer by voice or by tapping an option.
A correct answer scores 100 points plus a speed bonus of up to 50 points.
There is no penalty for wrong answers. A game is ten questions; the highest
total wins. Players can ask the host to repeat a question at any time.
`

// GetGameRules returns the rules text read out by the host.
func GetGameRules() string {
	return rules
}
