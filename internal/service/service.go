// Package service implements the answer pipeline and the conversation ledger.
package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

const (
	// DefaultTopK is the number of passages retrieved per query.
	DefaultTopK = 5

	tracerName = "github.com/KaanSezen1923/tolkien-rag/internal/service"
)

// Deps are the capabilities the pipeline is assembled from.
type Deps struct {
	Ledger    LedgerStore
	Encoder   Encoder
	Retriever Retriever
	LLM       TextGenerator
	Images    ImageGenerator
	Uploader  Uploader
	Admission Admission
	Notifier  Notifier
}

type Service struct {
	ledger    LedgerStore
	encoder   Encoder
	retriever Retriever
	llm       TextGenerator
	images    ImageGenerator
	uploader  Uploader
	admission Admission
	notifier  Notifier

	metrics *Metrics
	tracer  trace.Tracer
	topK    int
	now     func() time.Time
	newID   func() string
}

// Option customises a Service.
type Option func(*Service)

// WithTopK sets the number of retrieved passages.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics registers pipeline metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Service) { s.metrics = NewMetrics(reg) }
}

// WithTracerProvider sets where pipeline spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		ledger:    deps.Ledger,
		encoder:   deps.Encoder,
		retriever: deps.Retriever,
		llm:       deps.LLM,
		images:    deps.Images,
		uploader:  deps.Uploader,
		admission: deps.Admission,
		notifier:  deps.Notifier,
		metrics:   NewMetrics(nil),
		tracer:    otel.Tracer(tracerName),
		topK:      DefaultTopK,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) publish(userID, sessionID string, stage domain.Stage, err error) {
	if s.notifier == nil || sessionID == "" {
		return
	}
	event := domain.StageEvent{
		Type:      domain.EventTypeStage,
		UserID:    userID,
		SessionID: sessionID,
		Stage:     stage,
		Ts:        s.now().UnixMilli(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	s.notifier.Publish(event)
}
