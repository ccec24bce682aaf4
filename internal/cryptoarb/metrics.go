package cryptoarb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PairsTracked tracks how many shared pairs survived discovery.
	PairsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_cryptoarb_pairs_tracked",
		Help: "Shared pairs retained by discovery",
	})

	// ScansTotal counts completed scan passes.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_cryptoarb_scans_total",
		Help: "Completed scan passes",
	})

	// BookFetchesTotal tracks order book fetches by exchange and outcome.
	BookFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_cryptoarb_book_fetches_total",
			Help: "Order book fetches by exchange and outcome",
		},
		[]string{"exchange", "outcome"},
	)

	// OpportunitiesTotal counts opportunities above the net threshold.
	OpportunitiesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_cryptoarb_opportunities_total",
		Help: "Opportunities clearing the net profit threshold",
	})

	// TradesTotal counts simulated trades.
	TradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_cryptoarb_trades_total",
		Help: "Simulated paper trades",
	})

	// RealizedPnLUSDC tracks cumulative simulated P&L.
	RealizedPnLUSDC = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_cryptoarb_realized_pnl_usdc",
		Help: "Cumulative simulated P&L in USDC",
	})
)
