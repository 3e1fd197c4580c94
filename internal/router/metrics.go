package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics, registered once at package init via promauto.
var (
	// handlerOutcomes counts resolved handler races by outcome.
	handlerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperbole_handler_outcomes_total",
			Help: "Handler invocations by outcome (advanced, terminated, failed)",
		},
		[]string{"outcome"},
	)

	notFoundTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hyperbole_not_found_total",
			Help: "Requests answered by the 404 fallback",
		},
	)

	dispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hyperbole_dispatch_in_flight",
			Help: "Dispatches currently walking the handler chain",
		},
	)
)
