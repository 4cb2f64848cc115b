package runtime

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects bank counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transactions *prometheus.CounterVec
	instructions *prometheus.CounterVec
	latency      prometheus.Histogram
}

// NewMetrics creates the bank collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultcontrol",
			Subsystem: "bank",
			Name:      "transactions_total",
			Help:      "Processed transactions by outcome.",
		}, []string{"status"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultcontrol",
			Subsystem: "bank",
			Name:      "instructions_total",
			Help:      "Dispatched instructions by program and outcome.",
		}, []string{"program", "status"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vaultcontrol",
			Subsystem: "bank",
			Name:      "transaction_seconds",
			Help:      "Transaction processing latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.transactions, m.instructions, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveTransaction(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(status(err)).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveInstruction(programID solana.PublicKey, err error) {
	if m == nil {
		return
	}
	m.instructions.WithLabelValues(programID.String(), status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
