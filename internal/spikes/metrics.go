package spikes

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Evaluation kinds used as the "kind" label.
const (
	kindChannel   = "channel"
	kindSignature = "signature"
	kindOutlier   = "outlier"
)

type metrics struct {
	evaluations  *prometheus.CounterVec
	detected     *prometheus.CounterVec
	calibrations prometheus.Counter
	duration     *prometheus.HistogramVec
}

// newMetrics builds the analyzer collectors and registers them on reg.
// A nil reg leaves them unregistered, which keeps tests independent.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikes_evaluations_total",
				Help: "Total number of series evaluated.",
			},
			[]string{"kind"},
		),
		detected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spikes_detected_total",
				Help: "Total number of series flagged, by direction.",
			},
			[]string{"kind", "direction"},
		),
		calibrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spikes_calibrations_total",
				Help: "Total number of cohort envelopes computed.",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spikes_evaluation_duration_seconds",
				Help:    "Duration of a cohort evaluation in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.evaluations, m.detected, m.calibrations, m.duration)
	}
	return m
}
