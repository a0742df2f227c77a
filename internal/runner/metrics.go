// internal/runner/metrics.go
package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the per-run collectors. Each run gets its own registry so
// the exported textfile only describes that run.
type Metrics struct {
	registry *prometheus.Registry

	unitOutcomes  *prometheus.CounterVec
	unitDuration  *prometheus.HistogramVec
	checkResults  *prometheus.CounterVec
	sessionsTotal *prometheus.CounterVec
}

// NewMetrics registers the runner collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		unitOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crosscheck",
			Name:      "unit_outcomes_total",
			Help:      "Test units by outcome and error kind.",
		}, []string{"unit", "outcome", "kind"}),
		unitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crosscheck",
			Name:      "unit_duration_seconds",
			Help:      "Wall-clock duration of each test unit.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"unit"}),
		checkResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crosscheck",
			Name:      "consistency_results_total",
			Help:      "Cross-layer comparisons by status and divergence cause.",
		}, []string{"attribute", "status", "cause"}),
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crosscheck",
			Name:      "sessions_total",
			Help:      "Browser session acquisitions by result.",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) observeUnit(res UnitResult) {
	m.unitOutcomes.WithLabelValues(res.Name, string(res.Outcome), res.Kind).Inc()
	m.unitDuration.WithLabelValues(res.Name).Observe(res.Duration.Seconds())
	for _, c := range res.Checks {
		m.checkResults.WithLabelValues(c.Attribute, string(c.Status), string(c.Cause)).Inc()
	}
}

func (m *Metrics) observeSession(err error) {
	if err != nil {
		m.sessionsTotal.WithLabelValues("error").Inc()
		return
	}
	m.sessionsTotal.WithLabelValues("created").Inc()
}

// WriteTextfile exports the metrics in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
