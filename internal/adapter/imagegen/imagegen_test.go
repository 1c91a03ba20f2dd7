package imagegen

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGeneratorRequest(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/images/generations") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"created":1,"data":[{"b64_json":%q}]}`, MockPNG)
	}))
	defer server.Close()

	gen := NewOpenAIGenerator(server.URL, "sk-test", "", time.Second)
	out, err := gen.GenerateImage(context.Background(), "A hobbit hole under a green hill")
	require.NoError(t, err)

	assert.Equal(t, MockPNG, out)
	assert.Equal(t, "dall-e-3", got["model"])
	assert.Equal(t, "1024x1024", got["size"])
	assert.Equal(t, "b64_json", got["response_format"])
	assert.EqualValues(t, 1, got["n"])
}

func TestOpenAIGeneratorEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"created":1,"data":[]}`)
	}))
	defer server.Close()

	_, err := NewOpenAIGenerator(server.URL, "", "dall-e-3", time.Second).GenerateImage(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEmptyImage)
}

type flakyGenerator struct {
	calls int
	err   error
}

func (f *flakyGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return MockPNG, nil
}

func TestBreakerGeneratorOpensAfterFailures(t *testing.T) {
	next := &flakyGenerator{err: errors.New("content policy violation")}
	gen := NewBreakerGenerator(next, 2, time.Hour)

	for i := 0; i < 2; i++ {
		_, err := gen.GenerateImage(context.Background(), "Smaug")
		assert.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, gen.State())

	_, err := gen.GenerateImage(context.Background(), "Smaug")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakerGeneratorPassesThrough(t *testing.T) {
	gen := NewBreakerGenerator(&flakyGenerator{}, 3, time.Minute)
	out, err := gen.GenerateImage(context.Background(), "The One Ring")
	require.NoError(t, err)

	_, err = base64.StdEncoding.DecodeString(out)
	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, gen.State())
}
