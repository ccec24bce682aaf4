package paper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal tracks execution attempts by outcome.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_paper_trades_total",
			Help: "Total number of paper trade attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ProfitUSDC tracks cumulative simulated profit.
	ProfitUSDC = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_paper_profit_usdc_total",
		Help: "Cumulative simulated profit in USDC",
	})
)
