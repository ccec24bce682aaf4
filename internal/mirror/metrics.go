package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AddressesWatched tracks the roster size.
	AddressesWatched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_mirror_addresses_watched",
		Help: "Number of watched addresses",
	})

	// PollsTotal tracks per-address poll attempts by outcome.
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_mirror_polls_total",
			Help: "Address poll attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CallbacksTotal tracks opened/closed callback invocations.
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_mirror_callbacks_total",
			Help: "Position change callbacks by kind",
		},
		[]string{"kind"},
	)
)
