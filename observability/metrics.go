// Package observability holds the Prometheus collectors shared by the
// engine and its process entrypoint, grounded on the teacher's
// observability package (PayoutdMetrics, SwapStableMetrics): one lazily
// initialised singleton per concern, registered once against the default
// registry.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TxEngineMetrics wraps the collectors tracking submission engine health:
// queue depth, submissions, confirmations, failures by reason, and retries
// dropped for exhaustion.
type TxEngineMetrics struct {
	queueDepth   *prometheus.GaugeVec
	submissions  *prometheus.CounterVec
	confirmLat   *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	exhausted    *prometheus.CounterVec
	accountNonce *prometheus.GaugeVec
}

var (
	txEngineOnce sync.Once
	txEngineReg  *TxEngineMetrics
)

// TxEngine returns the lazily-initialised metrics registry for the
// transaction submission engine.
func TxEngine() *TxEngineMetrics {
	txEngineOnce.Do(func() {
		txEngineReg = &TxEngineMetrics{
			queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "txengine",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of transactions currently held in a queue, by queue name.",
			}, []string{"queue"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "txengine",
				Subsystem: "submission",
				Name:      "submitted_total",
				Help:      "Count of extrinsics accepted by the gateway for gossip, by submitter address.",
			}, []string{"address"}),
			confirmLat: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "txengine",
				Subsystem: "submission",
				Name:      "confirm_latency_seconds",
				Help:      "Latency from enqueue to confirmed finalization, by submitter address.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"address"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "txengine",
				Subsystem: "submission",
				Name:      "failures_total",
				Help:      "Count of failed transactions, by submitter address and reason.",
			}, []string{"address", "reason"}),
			exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "txengine",
				Subsystem: "retry",
				Name:      "exhausted_total",
				Help:      "Count of transactions dropped after exhausting the retry limit.",
			}, []string{"address"}),
			accountNonce: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "txengine",
				Subsystem: "account",
				Name:      "nonce",
				Help:      "Current next-nonce tracked locally for each signing account.",
			}, []string{"address"}),
		}
		prometheus.MustRegister(
			txEngineReg.queueDepth,
			txEngineReg.submissions,
			txEngineReg.confirmLat,
			txEngineReg.failures,
			txEngineReg.exhausted,
			txEngineReg.accountNonce,
		)
	})
	return txEngineReg
}

// SetQueueDepth records the current size of a named queue ("pending",
// "processing", or "failed").
func (m *TxEngineMetrics) SetQueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordSubmission increments the submitted counter for address.
func (m *TxEngineMetrics) RecordSubmission(address string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(address).Inc()
}

// RecordConfirmation observes confirmation latency for address.
func (m *TxEngineMetrics) RecordConfirmation(address string, latency time.Duration) {
	if m == nil {
		return
	}
	m.confirmLat.WithLabelValues(address).Observe(latency.Seconds())
}

// RecordFailure increments the failure counter for address and reason.
func (m *TxEngineMetrics) RecordFailure(address, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.failures.WithLabelValues(address, reason).Inc()
}

// RecordRetriesExhausted increments the exhausted counter for address.
func (m *TxEngineMetrics) RecordRetriesExhausted(address string) {
	if m == nil {
		return
	}
	m.exhausted.WithLabelValues(address).Inc()
}

// SetAccountNonce records the current next-nonce for address.
func (m *TxEngineMetrics) SetAccountNonce(address string, nonce uint64) {
	if m == nil {
		return
	}
	m.accountNonce.WithLabelValues(address).Set(float64(nonce))
}
