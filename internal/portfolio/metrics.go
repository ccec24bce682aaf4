package portfolio

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SlotsUsed tracks occupied slots per portfolio.
	SlotsUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signal_engine_portfolio_slots_used",
			Help: "Occupied portfolio slots",
		},
		[]string{"portfolio"},
	)

	// QueueSize tracks queued trades per portfolio.
	QueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signal_engine_portfolio_queue_size",
			Help: "Trades waiting for a free slot",
		},
		[]string{"portfolio"},
	)

	// TradesClosedTotal tracks closed trades by result.
	TradesClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_portfolio_trades_closed_total",
			Help: "Closed trades by portfolio and result",
		},
		[]string{"portfolio", "result"},
	)
)
