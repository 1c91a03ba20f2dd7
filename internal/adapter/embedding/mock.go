package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockDimension is the vector size of MockEncoder.
const MockDimension = 64

// MockEncoder hashes lower-cased tokens into a normalised bag-of-words vector.
// Texts sharing words score a positive cosine similarity.
type MockEncoder struct {
	maxRunes int
}

// NewMockEncoder creates a deterministic offline encoder.
func NewMockEncoder(maxRunes int) *MockEncoder {
	return &MockEncoder{maxRunes: maxRunes}
}

// Model returns the mock model name.
func (m *MockEncoder) Model() string { return "mock-fnv-64" }

// Embed returns the hashed vector of text.
func (m *MockEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	input, err := prepare(text, m.maxRunes)
	if err != nil {
		return nil, err
	}
	vec := make([]float32, MockDimension)
	for _, tok := range strings.Fields(strings.ToLower(input)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%MockDimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
