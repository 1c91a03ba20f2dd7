package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// EmptyContextMarker replaces the context block when nothing was retrieved.
const EmptyContextMarker = "NO CONTEXT PASSAGES WERE RETRIEVED."

const answerSystemPrompt = `You are a knowledgeable assistant for J.R.R. Tolkien's Middle-earth legendarium:
The Hobbit, The Lord of the Rings, The Silmarillion, Unfinished Tales and the related writings.
Your knowledge comes from the passages retrieved for you below.

Context passages:
{context}

User question:
{query}

Guidelines:
- Rely on the context passages above to answer the question.
- If the context does not contain enough information, say that you do not know instead of making something up.
- Stay faithful to Tolkien's works and never invent new lore.
- Give clear, detailed and accurate explanations grounded in the texts.
- When a passage names its source, mention which book or story the information comes from.
- Keep a neutral, informative and immersive tone that suits Tolkien's world.`

var errEmptyAnswer = errors.New("model returned an empty answer")

// SerializeContext renders passages as numbered blocks in rank order.
func SerializeContext(passages []domain.Passage) string {
	if len(passages) == 0 {
		return EmptyContextMarker
	}
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		source := p.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "[%d] (source: %s, score: %.3f)\n%s", i+1, source, p.Score, strings.TrimSpace(p.Text))
	}
	return b.String()
}

// AnswerPrompt fills the grounded-answer system instruction.
func AnswerPrompt(query string, passages []domain.Passage) string {
	return strings.NewReplacer(
		"{context}", SerializeContext(passages),
		"{query}", query,
	).Replace(answerSystemPrompt)
}

// GenerateAnswer produces a grounded answer. The model output is returned as is.
func (s *Service) GenerateAnswer(ctx context.Context, query string, passages []domain.Passage) (string, error) {
	answer, err := s.llm.GenerateText(ctx, AnswerPrompt(query, passages), query)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", errEmptyAnswer
	}
	return answer, nil
}
