package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateOnRuneBoundary(t *testing.T) {
	assert.Equal(t, "Galadriel", Truncate("Galadriel", 20))
	assert.Equal(t, "Éow", Truncate("Éowyn", 3))
	assert.Equal(t, "Lúthien", Truncate("Lúthien", 0))
	assert.Equal(t, "", Truncate("", 3))
}

type countingEncoder struct {
	calls  int
	inputs []string
	err    error
}

func (c *countingEncoder) Model() string { return "counting" }

func (c *countingEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, text)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEncoderMemoises(t *testing.T) {
	next := &countingEncoder{}
	enc, err := NewCachedEncoder(next, 8, 5)
	require.NoError(t, err)

	first, err := enc.Embed(context.Background(), "Mithrandir")
	require.NoError(t, err)
	first[0] = 99

	second, err := enc.Embed(context.Background(), "Mithrandir")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, []string{"Mithr"}, next.inputs)
	assert.Equal(t, []float32{5, 1}, second)
	assert.Equal(t, 1, enc.Len())
}

func TestCachedEncoderDoesNotCacheErrors(t *testing.T) {
	next := &countingEncoder{err: errors.New("model unavailable")}
	enc, err := NewCachedEncoder(next, 8, 0)
	require.NoError(t, err)

	_, err = enc.Embed(context.Background(), "Moria")
	assert.Error(t, err)
	_, err = enc.Embed(context.Background(), "Moria")
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, enc.Len())
}

func TestEncodersRejectBlankInput(t *testing.T) {
	_, err := NewMockEncoder(0).Embed(context.Background(), "  \n")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestMockEncoderDeterministic(t *testing.T) {
	enc := NewMockEncoder(0)
	a, err := enc.Embed(context.Background(), "Frodo Baggins of the Shire")
	require.NoError(t, err)
	b, err := enc.Embed(context.Background(), "Frodo Baggins of the Shire")
	require.NoError(t, err)

	assert.Len(t, a, MockDimension)
	assert.Equal(t, a, b)
}

func TestOpenAIEncoder(t *testing.T) {
	var got struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":2,"total_tokens":2}}`)
	}))
	defer server.Close()

	enc := NewOpenAIEncoder(server.URL, "sk-test", "text-embedding-3-small", 4, time.Second)
	vec, err := enc.Embed(context.Background(), "Rivendell")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.5, 0.25}, vec)
	assert.Equal(t, []string{"Rive"}, got.Input)
	assert.Equal(t, "text-embedding-3-small", got.Model)
}

type fakeBedrock struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
	block bool
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestBedrockEncoder(t *testing.T) {
	fake := &fakeBedrock{body: `{"embedding":[0.1,0.2,0.3],"inputTextTokenCount":3}`}
	enc := NewBedrockEncoder(fake, "amazon.titan-embed-text-v1", 0, time.Second)

	vec, err := enc.Embed(context.Background(), "Minas Tirith")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "amazon.titan-embed-text-v1", *fake.input.ModelId)
	assert.JSONEq(t, `{"inputText":"Minas Tirith"}`, string(fake.input.Body))
}

func TestBedrockEncoderErrors(t *testing.T) {
	enc := NewBedrockEncoder(&fakeBedrock{err: errors.New("throttled")}, "m", 0, time.Second)
	_, err := enc.Embed(context.Background(), "Isengard")
	assert.Error(t, err)

	enc = NewBedrockEncoder(&fakeBedrock{body: `{"embedding":[]}`}, "m", 0, time.Second)
	_, err = enc.Embed(context.Background(), "Isengard")
	assert.Error(t, err)
}

func TestBedrockEncoderTimesOut(t *testing.T) {
	enc := NewBedrockEncoder(&fakeBedrock{block: true}, "m", 0, 50*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := enc.Embed(context.Background(), "Barad-dur")
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatalf("Embed did not return after its timeout")
	}
}
