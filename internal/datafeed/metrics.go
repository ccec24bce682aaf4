package datafeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal tracks normalized live events by source and type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_datafeed_events_total",
			Help: "Live feed events by source and type",
		},
		[]string{"source", "type"},
	)

	// EventsDedupedTotal tracks suppressed duplicate events.
	EventsDedupedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_datafeed_events_deduped_total",
		Help: "Events suppressed by the dedup window",
	})

	// MatchesTotal tracks market matching outcomes.
	MatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_datafeed_matches_total",
			Help: "Market matching attempts by outcome",
		},
		[]string{"outcome"},
	)

	// OpportunitiesTotal tracks detected opportunities by market type.
	OpportunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_datafeed_opportunities_total",
			Help: "Detected opportunities by market type",
		},
		[]string{"market_type"},
	)

	// EdgeMeasurementsTotal tracks completed edge latency measurements.
	EdgeMeasurementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_datafeed_edge_measurements_total",
		Help: "Completed edge latency measurements",
	})
)
