package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"ccload/internal/stats"
)

type metrics struct {
	registry *prometheus.Registry

	runs     prometheus.Counter
	rejected prometheus.Counter
	probes   *prometheus.CounterVec
	duration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccload_worker_runs_total",
			Help: "Number of completed run-test requests",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ccload_worker_rejected_total",
			Help: "Number of run-test requests rejected as malformed",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ccload_worker_probes_total",
			Help: "Probes issued by this worker, by outcome class",
		}, []string{"class"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ccload_worker_run_duration_seconds",
			Help:    "Wall-clock duration of run-test requests",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}

	m.registry.MustRegister(
		m.runs,
		m.rejected,
		m.probes,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) observe(s stats.Statistics, seconds float64) {
	m.runs.Inc()
	m.duration.Observe(seconds)
	m.probes.WithLabelValues(stats.ClassSuccess.String()).Add(float64(s.SuccessfulRequests))
	m.probes.WithLabelValues(stats.ClassFailure.String()).Add(float64(s.FailedRequests))
	m.probes.WithLabelValues(stats.ClassOther.String()).Add(float64(s.OtherRequests))
}
