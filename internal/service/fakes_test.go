package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/imagegen"
	"github.com/KaanSezen1923/tolkien-rag/internal/adapter/objectstore"
	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
	store "github.com/KaanSezen1923/tolkien-rag/internal/repository"
	"github.com/KaanSezen1923/tolkien-rag/tests/helpers"
)

type fakeEncoder struct {
	calls int
	err   error
}

func (f *fakeEncoder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

type fakeRetriever struct {
	passages []domain.Passage
	err      error
	lastK    int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, vector []float32, k int) ([]domain.Passage, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

// scriptedLLM answers the grounded-answer and visual-summary calls separately.
type scriptedLLM struct {
	mu        sync.Mutex
	answer    string
	answerErr error
	visual    string
	visualErr error
	systems   []string
	users     []string
}

func (f *scriptedLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if strings.Contains(system, "summarization assistant") {
		return f.visual, f.visualErr
	}
	return f.answer, f.answerErr
}

type fakeImages struct {
	payload string
	err     error
	calls   int
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.payload, nil
}

type failingUploader struct{}

func (failingUploader) Upload(ctx context.Context, data []byte, key string) (string, error) {
	return "", errors.New("bucket unreachable")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.StageEvent
}

func (r *recordingNotifier) Publish(event domain.StageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) stages() []domain.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stages []domain.Stage
	for _, e := range r.events {
		stages = append(stages, e.Stage)
	}
	return stages
}

// botFailingLedger refuses to record bot messages.
type botFailingLedger struct {
	*store.SQLiteStore
}

func (l botFailingLedger) AppendMessage(ctx context.Context, msg *domain.Message, preview *string) error {
	if msg.Type == domain.MessageTypeBot {
		return errors.New("database is locked")
	}
	return l.SQLiteStore.AppendMessage(ctx, msg, preview)
}

type harness struct {
	svc       *Service
	ledger    *store.SQLiteStore
	encoder   *fakeEncoder
	retriever *fakeRetriever
	llm       *scriptedLLM
	images    *fakeImages
	artifacts *objectstore.MemoryStore
	notifier  *recordingNotifier
	registry  *prometheus.Registry
	spans     *tracetest.SpanRecorder
	now       time.Time
}

func newHarness(t *testing.T, configure ...func(*harness, *Deps)) *harness {
	t.Helper()
	h := &harness{
		ledger:    helpers.NewTestSQLiteStore(t),
		encoder:   &fakeEncoder{},
		retriever: &fakeRetriever{},
		llm: &scriptedLLM{
			answer: "Frodo Baggins is the hobbit of the Shire who carried the One Ring to Mount Doom.",
			visual: "A small hobbit with curly hair holding a golden ring before a fiery mountain.",
		},
		images:    &fakeImages{payload: imagegen.MockPNG},
		artifacts: objectstore.NewMemoryStore("https://bucket.example.com"),
		notifier:  &recordingNotifier{},
		registry:  prometheus.NewRegistry(),
		spans:     tracetest.NewSpanRecorder(),
		now:       time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC),
	}
	deps := Deps{
		Ledger:    h.ledger,
		Encoder:   h.encoder,
		Retriever: h.retriever,
		LLM:       h.llm,
		Images:    h.images,
		Uploader:  h.artifacts,
		Notifier:  h.notifier,
	}
	for _, fn := range configure {
		fn(h, &deps)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	h.svc = New(deps,
		WithClock(func() time.Time { return h.now }),
		WithMetrics(h.registry),
		WithTracerProvider(tp),
	)
	return h
}

func frodoPassages() []domain.Passage {
	texts := []string{
		"Frodo Baggins, son of Drogo, was adopted by his cousin Bilbo.",
		"Frodo inherited Bag End and the Ring on Bilbo's eleventy-first birthday.",
		"Frodo set out from the Shire with Sam, Merry and Pippin.",
		"At Rivendell Frodo agreed to take the Ring to Mordor.",
		"Frodo and Sam reached Mount Doom with Gollum following.",
	}
	passages := make([]domain.Passage, len(texts))
	for i, text := range texts {
		passages[i] = domain.Passage{Text: text, Source: "The Lord of the Rings", Score: 0.9 - float64(i)*0.05}
	}
	return passages
}
