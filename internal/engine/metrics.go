package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for scan activity.
type Metrics struct {
	ScansTotal      *prometheus.CounterVec
	HashHitsTotal   prometheus.Counter
	SuppressedTotal prometheus.Counter
	ScanDuration    prometheus.Histogram
}

// NewMetrics registers the scan metrics on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_scans_total",
			Help: "Total number of file scans by verdict status",
		}, []string{"status"}),
		HashHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_hash_hits_total",
			Help: "Total number of scans matched by the signature set",
		}),
		SuppressedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "warden_suppressed_total",
			Help: "Total number of UNSAFE verdicts below the confidence gate",
		}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_scan_duration_seconds",
			Help:    "Time spent scanning a single file",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
}

func (m *Metrics) observe(v Verdict, seconds float64) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(string(v.Status)).Inc()
	if v.Evidence == EvidenceHash {
		m.HashHitsTotal.Inc()
	}
	m.ScanDuration.Observe(seconds)
}

func (m *Metrics) suppressed() {
	if m == nil {
		return
	}
	m.SuppressedTotal.Inc()
}
