package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks fetch attempts by outcome class.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_engine_fetch_requests_total",
			Help: "Total number of HTTP fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RetriesTotal tracks backoff retries of transient failures.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signal_engine_fetch_retries_total",
		Help: "Total number of fetch retries after transient failures",
	})
)
