package arb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpportunitiesDetectedTotal tracks confirmed arbitrage opportunities.
	OpportunitiesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_arb_opportunities_detected_total",
		Help: "Total number of confirmed within-market arbitrage opportunities",
	})

	// OpportunityProfitPct tracks expected profit margins.
	OpportunityProfitPct = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_engine_arb_opportunity_profit_pct",
		Help:    "Expected profit percentage of confirmed opportunities",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 50},
	})

	// ScanDurationSeconds tracks full scan latency.
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signal_engine_arb_scan_duration_seconds",
		Help:    "Duration of one market scan (fetch plus pre-screen)",
		Buckets: prometheus.DefBuckets,
	})

	// MarketsScanned tracks the market count of the last scan.
	MarketsScanned = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_arb_markets_scanned",
		Help: "Markets fetched in the last scan",
	})

	// CandidatesGauge tracks pre-screen survivors of the last scan.
	CandidatesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_arb_candidates",
		Help: "Markets passing the pre-screen in the last scan",
	})
)
