package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

func TestMemoryIndexRanksAndBreaksTiesByInsertion(t *testing.T) {
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Add([]float32{0, 1}, domain.Passage{Text: "far"}))
	require.NoError(t, idx.Add([]float32{1, 0}, domain.Passage{Text: "first tie"}))
	require.NoError(t, idx.Add([]float32{2, 0}, domain.Passage{Text: "second tie"}))
	require.NoError(t, idx.Add([]float32{1, 1}, domain.Passage{Text: "middle"}))

	got, err := idx.Retrieve(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)

	var texts []string
	for _, p := range got {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"first tie", "second tie", "middle"}, texts)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestMemoryIndexEmptyIsNotAnError(t *testing.T) {
	got, err := NewMemoryIndex(3).Retrieve(context.Background(), []float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryIndexPreconditions(t *testing.T) {
	idx := NewMemoryIndex(3)
	_, err := idx.Retrieve(context.Background(), []float32{1, 2}, 5)
	assert.Error(t, err)

	_, err = idx.Retrieve(context.Background(), []float32{1, 2, 3}, 0)
	assert.Error(t, err)

	assert.Error(t, idx.Add([]float32{1}, domain.Passage{}))
	assert.Equal(t, 0, idx.Len())
}

func TestQdrantIndexRetrieve(t *testing.T) {
	var got searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/lotr_data/points/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Fatalf("missing api key")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"result":[
			{"id":1,"score":0.91,"payload":{"text":"Frodo Baggins, son of Drogo","book":"The Fellowship of the Ring","chapter":1}},
			{"id":2,"score":0.72,"payload":{"text":"Bag End","source":"The Hobbit"}}
		],"status":"ok","time":0.001}`)
	}))
	defer server.Close()

	idx := NewQdrantIndex(QdrantConfig{URL: server.URL, APIKey: "secret", Collection: "lotr_data", Timeout: time.Second})
	passages, err := idx.Retrieve(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)

	assert.Equal(t, 5, got.Limit)
	assert.True(t, got.WithPayload)
	require.Len(t, passages, 2)
	assert.Equal(t, "Frodo Baggins, son of Drogo", passages[0].Text)
	assert.Equal(t, "The Fellowship of the Ring", passages[0].Source)
	assert.Equal(t, "1", passages[0].Metadata["chapter"])
	assert.Equal(t, "The Hobbit", passages[1].Source)
	assert.InDelta(t, 0.91, passages[0].Score, 1e-9)
}

func TestQdrantIndexError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":{"error":"Wrong input: Vector dimension error"}}`)
	}))
	defer server.Close()

	idx := NewQdrantIndex(QdrantConfig{URL: server.URL, Collection: "lotr_data"})
	_, err := idx.Retrieve(context.Background(), []float32{0.1}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}
