// Package metrics exposes Prometheus counters and gauges for a transfer
// process, opt-in via an HTTP listener the caller starts separately.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector this process registers.
type Metrics struct {
	BytesTransferred   *prometheus.CounterVec
	PacketsSent        *prometheus.CounterVec
	PacketsReceived    *prometheus.CounterVec
	Retransmits        *prometheus.CounterVec
	Timeouts           *prometheus.CounterVec
	CongestionWindow   *prometheus.GaugeVec
	RTTEstimateSeconds *prometheus.GaugeVec
	TransferDuration   *prometheus.HistogramVec
	FECRecovered       *prometheus.CounterVec
	TransferErrors     *prometheus.CounterVec
}

// New registers a fresh set of collectors under namespace/subsystem.
func New(namespace, subsystem string) *Metrics {
	return &Metrics{
		BytesTransferred: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bytes_transferred_total",
				Help:      "Total bytes confirmed delivered.",
			},
			[]string{"role"},
		),
		PacketsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "packets_sent_total",
				Help:      "Total data packets transmitted, including retransmits.",
			},
			[]string{"role"},
		),
		PacketsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "packets_received_total",
				Help:      "Total packets received, acks and data alike.",
			},
			[]string{"role"},
		),
		Retransmits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "retransmits_total",
				Help:      "Total fast-retransmit events.",
			},
			[]string{"role"},
		),
		Timeouts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "timeouts_total",
				Help:      "Total burst timeouts triggering slow start.",
			},
			[]string{"role"},
		),
		CongestionWindow: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "congestion_window_packets",
				Help:      "Current congestion window, in packets.",
			},
			[]string{"role"},
		),
		RTTEstimateSeconds: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rtt_estimate_seconds",
				Help:      "Current smoothed round-trip-time estimate.",
			},
			[]string{"role"},
		),
		TransferDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transfer_duration_seconds",
				Help:      "Wall-clock duration of completed transfers.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"role"},
		),
		FECRecovered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fec_recovered_shards_total",
				Help:      "Total data shards reconstructed via FEC instead of arriving directly.",
			},
			[]string{"role"},
		),
		TransferErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transfer_errors_total",
				Help:      "Total terminal transfer failures.",
			},
			[]string{"role", "reason"},
		),
	}
}
