package observability

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session collectors. Each instance owns its registry so tests and
// multiple servers in one process never collide.
type Metrics struct {
	registry       *prometheus.Registry
	turns          *prometheus.CounterVec
	questions      *prometheus.CounterVec
	invalidAnswers prometheus.Counter
	turnDuration   prometheus.Histogram
	sessionsActive prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_turns_total",
				Help: "Total number of turns by terminal status",
			},
			[]string{"status"},
		),
		questions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parley_questions_total",
				Help: "Total number of questions asked by kind",
			},
			[]string{"kind"},
		),
		invalidAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parley_invalid_answers_total",
			Help: "Total number of answers rejected and asked again",
		}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parley_turn_duration_seconds",
			Help:    "Duration of turns, including time spent waiting for answers",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "parley_sessions_active",
			Help: "Number of sessions currently running",
		}),
	}
	m.registry.MustRegister(m.turns, m.questions, m.invalidAnswers, m.turnDuration, m.sessionsActive)
	return m
}

// Registry exposes the registry for handlers and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Hooks returns session hooks updating the collectors.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnSessionStart: func(ctx context.Context, id string) {
			m.sessionsActive.Inc()
		},
		OnSessionEnd: func(ctx context.Context, id string) {
			m.sessionsActive.Dec()
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			m.turns.WithLabelValues(string(e.Status)).Inc()
			m.turnDuration.Observe(e.Duration.Seconds())
		},
		OnQuestion: func(ctx context.Context, e *domain.QuestionEvent) {
			m.questions.WithLabelValues(e.Kind).Inc()
		},
		OnAnswer: func(ctx context.Context, e *domain.QuestionEvent) {
			if !e.Valid {
				m.invalidAnswers.Inc()
			}
		},
	}
}
