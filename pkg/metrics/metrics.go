package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	PathLocal    = "local"
	PathHardware = "hardware"
)

// SigningMetrics counts signing attempts per path and outcome. A nil
// *SigningMetrics is valid and records nothing.
type SigningMetrics struct {
	attemptsStarted  *prometheus.CounterVec
	attemptsFinished *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
}

func NewSigningMetrics(namespace string, registerer prometheus.Registerer) (*SigningMetrics, error) {
	m := &SigningMetrics{
		attemptsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_started_total",
			Help:      "Number of signing attempts started",
		}, []string{"path"}),
		attemptsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_finished_total",
			Help:      "Number of signing attempts that reached a terminal outcome",
		}, []string{"path", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_duration_seconds",
			Help:      "Time from attempt start to its terminal outcome",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5, 7.5, 10, 15},
		}, []string{"path"}),
	}

	for _, c := range []prometheus.Collector{m.attemptsStarted, m.attemptsFinished, m.attemptDuration} {
		if err := registerer.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register signing metrics")
		}
	}
	return m, nil
}

func (m *SigningMetrics) AttemptStarted(path string) {
	if m == nil {
		return
	}
	m.attemptsStarted.WithLabelValues(path).Inc()
}

func (m *SigningMetrics) AttemptFinished(path, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.attemptsFinished.WithLabelValues(path, outcome).Inc()
	m.attemptDuration.WithLabelValues(path).Observe(duration.Seconds())
}
