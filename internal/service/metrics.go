package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/KaanSezen1923/tolkien-rag/internal/domain"
)

// Answer outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeImageMissing = "image_missing"
	OutcomeFailed       = "failed"
	OutcomeResumed      = "resumed"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	Answers       *prometheus.CounterVec
	StageFailures *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tolkien_rag",
			Name:      "stage_duration_seconds",
			Help:      "Duration of answer pipeline stages.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		Answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tolkien_rag",
			Name:      "answers_total",
			Help:      "Answered queries by outcome.",
		}, []string{"outcome"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tolkien_rag",
			Name:      "stage_failures_total",
			Help:      "Pipeline failures by stage and kind.",
		}, []string{"stage", "kind"}),
	}
}

func (m *Metrics) observeStage(stage domain.Stage, d time.Duration) {
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) failure(err *domain.PipelineError) {
	m.StageFailures.WithLabelValues(string(err.Stage), string(err.Kind)).Inc()
}

func (m *Metrics) outcome(outcome string) {
	m.Answers.WithLabelValues(outcome).Inc()
}
