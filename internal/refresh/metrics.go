package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the controller's Prometheus collectors.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Waits    *prometheus.CounterVec
	Records  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "police_terminal",
			Name:      "refresh_runs_total",
			Help:      "Refresh pipeline runs by panel and outcome.",
		}, []string{"panel", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "police_terminal",
			Name:      "refresh_duration_seconds",
			Help:      "Refresh pipeline duration.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"panel"}),
		Waits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "police_terminal",
			Name:      "wait_outcomes_total",
			Help:      "Chat response waits by panel and outcome.",
		}, []string{"panel", "outcome"}),
		Records: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "police_terminal",
			Name:      "snapshot_records",
			Help:      "Records in the last snapshot per domain.",
		}, []string{"domain"}),
	}
}

// Run outcomes.
const (
	outcomeOK     = "ok"
	outcomeEmpty  = "empty"
	outcomeError  = "error"
	outcomeCached = "cached"
)
