package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// QdrantConfig holds connection details for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex searches a pre-populated Qdrant collection over REST.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantIndex creates a Qdrant-backed index.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
	Status any `json:"status"`
}

// Retrieve runs a points search and keeps Qdrant's ranking.
func (q *QdrantIndex) Retrieve(ctx context.Context, vector []float32, k int) ([]domain.Passage, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}
	body, err := json.Marshal(searchRequest{Vector: vector, Limit: k, WithPayload: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("qdrant POST %s failed: %s: %s", url, resp.Status, strings.TrimSpace(string(msg)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	passages := make([]domain.Passage, 0, len(out.Result))
	for _, r := range out.Result {
		passages = append(passages, toPassage(r.Score, r.Payload))
	}
	return passages, nil
}

func toPassage(score float64, payload map[string]any) domain.Passage {
	p := domain.Passage{Score: score, Metadata: map[string]string{}}
	for key, v := range payload {
		s, ok := v.(string)
		if !ok {
			if v == nil {
				continue
			}
			s = fmt.Sprint(v)
		}
		switch key {
		case "text", "document", "page_content":
			p.Text = s
		case "source":
			p.Source = s
		default:
			p.Metadata[key] = s
		}
	}
	if p.Source == "" {
		p.Source = p.Metadata["book"]
	}
	return p
}
