package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Dispatches  *prometheus.CounterVec
	Probes      *prometheus.CounterVec
	ProbeDur    *prometheus.HistogramVec
	Skipped     *prometheus.CounterVec
	InFlight    prometheus.Gauge
	PersistErrs prometheus.Counter
	Changes     prometheus.Counter
}

// NewMetrics registers the probe metrics on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Dispatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_scheduler_dispatches_total", Help: "Checks dispatched",
		}, []string{"check"}),
		Probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_scheduler_probes_total", Help: "Probes completed by status",
		}, []string{"check", "status"}),
		ProbeDur: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "trust_scheduler_probe_duration_seconds", Help: "Adapter call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"check"}),
		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_scheduler_probes_skipped_total", Help: "Probes not started because the pair was still in flight",
		}, []string{"check"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "trust_scheduler_probes_in_flight", Help: "Outstanding probes",
		}),
		PersistErrs: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_scheduler_result_persist_errors_total", Help: "Results that could not be stored",
		}),
		Changes: f.NewCounter(prometheus.CounterOpts{
			Name: "trust_scheduler_trust_changes_total", Help: "Trust level transitions observed",
		}),
	}
}
