package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// InvokeModelAPI is the subset of the Bedrock runtime client the encoder uses.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockEncoder embeds text with an Amazon Titan embedding model.
type BedrockEncoder struct {
	client   InvokeModelAPI
	model    string
	maxRunes int
	timeout  time.Duration
}

// NewBedrockEncoder creates an encoder for a Titan model id such as
// amazon.titan-embed-text-v1. A positive timeout bounds each call.
func NewBedrockEncoder(client InvokeModelAPI, model string, maxRunes int, timeout time.Duration) *BedrockEncoder {
	return &BedrockEncoder{client: client, model: model, maxRunes: maxRunes, timeout: timeout}
}

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Model returns the Bedrock model id.
func (e *BedrockEncoder) Model() string { return e.model }

// Embed returns the embedding of text.
func (e *BedrockEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	input, err := prepare(text, e.maxRunes)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(titanRequest{InputText: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(e.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("bedrock returned an empty embedding")
	}
	return resp.Embedding, nil
}
