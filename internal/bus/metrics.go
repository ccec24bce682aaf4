package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublishedTotal tracks events published by topic.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_bus_events_published_total",
			Help: "Total number of events published to the bus",
		},
		[]string{"topic"},
	)

	// EventsDroppedTotal tracks events dropped from full subscriber queues.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_bus_events_dropped_total",
		Help: "Total number of events dropped from full subscriber queues",
	})

	// SubscribersGauge tracks attached subscribers.
	SubscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signal_engine_bus_subscribers",
		Help: "Number of attached bus subscribers",
	})
)
