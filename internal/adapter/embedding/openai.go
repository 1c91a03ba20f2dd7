package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEncoder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEncoder struct {
	client   *openai.Client
	model    string
	maxRunes int
}

// NewOpenAIEncoder creates an encoder for model.
func NewOpenAIEncoder(baseURL, apiKey, model string, maxRunes int, timeout time.Duration) *OpenAIEncoder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIEncoder{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		maxRunes: maxRunes,
	}
}

// Model returns the embedding model name.
func (e *OpenAIEncoder) Model() string { return e.model }

// Embed returns the embedding of text.
func (e *OpenAIEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	input, err := prepare(text, e.maxRunes)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{input},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding response is empty")
	}
	return resp.Data[0].Embedding, nil
}
