// Package embedding turns text into dense vectors.
package embedding

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrEmptyInput is returned for blank input text.
var ErrEmptyInput = errors.New("embedding input must not be empty")

// Encoder produces a fixed-dimension vector for a given model.
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Truncate cuts text to at most maxRunes runes. A non-positive maxRunes
// disables truncation.
func Truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	n := 0
	for i := range text {
		if n == maxRunes {
			return text[:i]
		}
		n++
	}
	return text
}

func prepare(text string, maxRunes int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}
	return Truncate(text, maxRunes), nil
}
