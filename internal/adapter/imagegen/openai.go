// Package imagegen renders visual prompts into base64 PNG payloads.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyImage is returned when the backend answers without image data.
var ErrEmptyImage = errors.New("image backend returned no data")

// Generator turns a prompt into a base64-encoded PNG.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// OpenAIGenerator requests one square image per prompt.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator for model (dall-e-3 by default).
func NewOpenAIGenerator(baseURL, apiKey, model string, timeout time.Duration) *OpenAIGenerator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	return &OpenAIGenerator{client: openai.NewClientWithConfig(cfg), model: model}
}

// GenerateImage returns the b64_json payload of a 1024x1024 image.
func (g *OpenAIGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          g.model,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", fmt.Errorf("image request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", ErrEmptyImage
	}
	return resp.Data[0].B64JSON, nil
}
