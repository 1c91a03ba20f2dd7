package llm

import (
	"context"
	"errors"
)

// ErrNoChoices is returned when the backend answers without a completion.
var ErrNoChoices = errors.New("LLM returned no choices")

// TextGenerator runs single-turn system+user completions against one model.
type TextGenerator struct {
	client LLMClient
	model  string
}

// NewTextGenerator binds client to model.
func NewTextGenerator(client LLMClient, model string) *TextGenerator {
	return &TextGenerator{client: client, model: model}
}

// GenerateText returns the raw content of the first choice.
func (g *TextGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model: g.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}
