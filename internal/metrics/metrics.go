// Package metrics exposes Prometheus collectors for the access gate and
// the retention manager.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohamedS2020/lifetag/internal/lifetag/store"
)

const namespace = "lifetag"

// Metrics implements service.GateObserver and service.RetentionObserver.
type Metrics struct {
	registry *prometheus.Registry

	Verifications  *prometheus.CounterVec
	GrantsIssued   prometheus.Counter
	RetentionRuns  *prometheus.CounterVec
	EntriesDeleted prometheus.Counter
	RunErrors      prometheus.Counter
	RunDuration    prometheus.Histogram
	CleanupRunning prometheus.Gauge
	LastCleanup    prometheus.Gauge
}

// New registers all collectors, plus the Go and process collectors, on a
// private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Verifications: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gate",
				Name:      "verifications_total",
				Help:      "Password submissions by outcome.",
			},
			[]string{"outcome"},
		),
		GrantsIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "grants_issued_total",
			Help:      "Temporary access grants persisted.",
		}),
		RetentionRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retention",
				Name:      "runs_total",
				Help:      "Cleanup runs by result.",
			},
			[]string{"result"},
		),
		EntriesDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "entries_deleted_total",
			Help:      "Audit log entries deleted by cleanup runs.",
		}),
		RunErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "run_errors_total",
			Help:      "Errors collected by cleanup runs.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of cleanup runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		CleanupRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "cleanup_running",
			Help:      "1 while a cleanup run is in flight.",
		}),
		LastCleanup: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "last_cleanup_timestamp_seconds",
			Help:      "Completion time of the last non-fatal cleanup run.",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveVerification(outcome string) {
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGrant() { m.GrantsIssued.Inc() }

// ObserveRun records a finished run.  fatal marks a run that could not
// read the log at all.
func (m *Metrics) ObserveRun(rec store.RunRecord, fatal bool) {
	result := "success"
	switch {
	case fatal:
		result = "failed"
	case !rec.Success:
		result = "partial"
	}
	m.RetentionRuns.WithLabelValues(result).Inc()
	m.EntriesDeleted.Add(float64(rec.DeletedCount))
	m.RunErrors.Add(float64(len(rec.Errors)))
	m.RunDuration.Observe(rec.ExecutionTime.Seconds())
	if !fatal {
		m.LastCleanup.Set(float64(rec.Timestamp.Unix()))
	}
}

func (m *Metrics) SetCleanupRunning(running bool) {
	if running {
		m.CleanupRunning.Set(1)
		return
	}
	m.CleanupRunning.Set(0)
}
