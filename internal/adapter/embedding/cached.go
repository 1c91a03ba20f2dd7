package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEncoder memoises vectors of an underlying encoder in process memory.
type CachedEncoder struct {
	next     Encoder
	maxRunes int
	cache    *lru.Cache[string, []float32]
}

// NewCachedEncoder wraps next with an LRU of size entries.
func NewCachedEncoder(next Encoder, size, maxRunes int) (*CachedEncoder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedEncoder{next: next, maxRunes: maxRunes, cache: cache}, nil
}

// Model returns the underlying model name.
func (c *CachedEncoder) Model() string { return c.next.Model() }

// Embed returns a cached vector or computes and stores one.
func (c *CachedEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	input, err := prepare(text, c.maxRunes)
	if err != nil {
		return nil, err
	}
	key := c.next.Model() + "\x00" + input
	if v, ok := c.cache.Get(key); ok {
		return append([]float32(nil), v...), nil
	}

	v, err := c.next.Embed(ctx, input)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]float32(nil), v...))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *CachedEncoder) Len() int {
	return c.cache.Len()
}
