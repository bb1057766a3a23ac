// Package stats exposes run counters to Prometheus.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ibeckermayer/threadkeeper/internal/report"
)

const namespace = "threadkeeper"

// Metrics holds the Prometheus collectors for runs.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
	ThreadsVisited     prometheus.Counter
	ThreadsSkipped     *prometheus.CounterVec
	PostsSkipped       *prometheus.CounterVec
	UnitsTotal         *prometheus.CounterVec
	QuotaRemaining     prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg.
// A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs completed, by mode and status",
		}, []string{"mode", "status"}),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
		ThreadsVisited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_visited_total",
			Help:      "Thread traversals attempted",
		}),
		ThreadsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_skipped_total",
			Help:      "Thread traversals that produced nothing, by reason",
		}, []string{"reason"}),
		PostsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_skipped_total",
			Help:      "Posts that did not contribute to a unit, by reason",
		}, []string{"reason"}),
		UnitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_total",
			Help:      "Units by outcome",
		}, []string{"outcome"}),
		QuotaRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_remaining",
			Help:      "Registrations left at the end of the last run",
		}),
	}
}

// ObserveRun folds a finished run into the collectors.
func (m *Metrics) ObserveRun(s *report.Summary, status string) {
	m.RunsTotal.WithLabelValues(s.Mode, status).Inc()
	m.RunDurationSeconds.Observe(s.Duration().Seconds())
	m.ThreadsVisited.Add(float64(s.ThreadsVisited))
	for reason, n := range s.ThreadsSkipped {
		m.ThreadsSkipped.WithLabelValues(reason).Add(float64(n))
	}
	for reason, n := range s.PostsSkipped {
		m.PostsSkipped.WithLabelValues(string(reason)).Add(float64(n))
	}
	for outcome, n := range map[string]int{
		"assembled":  s.Assembled,
		"ad_dropped": s.AdDropped,
		"filtered":   s.Filtered,
		"duplicate":  s.Duplicates,
		"admitted":   s.Admitted,
		"persisted":  s.Persisted,
		"failed":     s.Failed,
	} {
		m.UnitsTotal.WithLabelValues(outcome).Add(float64(n))
	}
	m.QuotaRemaining.Set(float64(s.QuotaRemaining))
}
