package engine

import "github.com/nhbchain/txengine/observability"

// Metrics exposes the Prometheus collectors for engine instrumentation,
// mirroring the teacher's services/payoutd/metrics.go type alias over its
// observability package.
type Metrics = observability.TxEngineMetrics

// NewMetrics returns the lazily initialised metrics registry.
func NewMetrics() *Metrics { return observability.TxEngine() }
