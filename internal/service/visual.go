package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const visualSystemPrompt = `You are a summarization assistant.
Turn the given text into a concise, clear and descriptive summary that can be used directly as a prompt for an image generation model.

Text to summarize:
{text}

Guidelines:
- Focus on the key visual details: objects, characters, settings, colors and atmosphere.
- Be specific and descriptive and avoid vague words.
- Drop everything that is not visually useful.
- Always write in English, in a natural descriptive style suitable for an image prompt.
- Do not add details that are not in the original text.`

var errEmptyVisualPrompt = errors.New("model returned an empty visual prompt")

// SummarizeVisual compresses an answer into a short visual prompt. It is an
// independent completion that shares nothing with the answer call.
func (s *Service) SummarizeVisual(ctx context.Context, answer string) (string, error) {
	system := strings.ReplaceAll(visualSystemPrompt, "{text}", answer)
	prompt, err := s.llm.GenerateText(ctx, system, answer)
	if err != nil {
		return "", fmt.Errorf("failed to summarize answer: %w", err)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errEmptyVisualPrompt
	}
	return prompt, nil
}
