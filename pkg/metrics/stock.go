package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for stock operations.
const (
	OutcomeOK           = "ok"
	OutcomeInsufficient = "insufficient"
	OutcomeUntracked    = "untracked"
	OutcomeInvariant    = "invariant_violation"
	OutcomeError        = "error"
)

// StockMetrics counts reservation engine calls by operation and outcome.
type StockMetrics struct {
	operations   *prometheus.CounterVec
	inconsistent prometheus.Gauge
}

// NewStockMetrics registers the stock metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_operations_total",
		Help: "Stock reservation engine operations by outcome.",
	}, []string{"op", "outcome"})
	inconsistent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stock_inconsistent_items",
		Help: "Tracked ledger rows whose counters do not add up, as of the last audit.",
	})
	reg.MustRegister(operations, inconsistent)
	return &StockMetrics{operations: operations, inconsistent: inconsistent}
}

// Observe counts one operation outcome.
func (s *StockMetrics) Observe(op, outcome string) {
	if s == nil || s.operations == nil {
		return
	}
	s.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// SetInconsistent publishes the size of the last audit finding.
func (s *StockMetrics) SetInconsistent(n int) {
	if s == nil || s.inconsistent == nil {
		return
	}
	s.inconsistent.Set(float64(n))
}
