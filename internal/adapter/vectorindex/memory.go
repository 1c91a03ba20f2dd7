// Package vectorindex retrieves ranked corpus passages for a query vector.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

type entry struct {
	vector  []float32
	passage domain.Passage
}

// MemoryIndex is an in-process cosine similarity index.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   []entry
}

// NewMemoryIndex creates an empty index of the given dimension.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{dimension: dimension}
}

// Dimension returns the configured vector size.
func (m *MemoryIndex) Dimension() int {
	return m.dimension
}

// Add appends a passage. Insertion order breaks score ties at retrieval.
func (m *MemoryIndex) Add(vector []float32, passage domain.Passage) error {
	if len(vector) != m.dimension {
		return fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), m.dimension)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{vector: append([]float32(nil), vector...), passage: passage})
	return nil
}

// Len returns the number of indexed passages.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Retrieve returns up to k passages by descending cosine similarity.
func (m *MemoryIndex) Retrieve(ctx context.Context, vector []float32, k int) ([]domain.Passage, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	if len(vector) != m.dimension {
		return nil, fmt.Errorf("vector dimension %d does not match index dimension %d", len(vector), m.dimension)
	}

	m.mu.RLock()
	scored := make([]domain.Passage, len(m.entries))
	for i, e := range m.entries {
		p := e.passage
		p.Score = cosine(vector, e.vector)
		scored[i] = p
	}
	m.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
