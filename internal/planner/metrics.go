package planner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travelpal",
			Name:      "generations_total",
			Help:      "Trip generations by outcome.",
		},
		[]string{"result"},
	)

	chatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travelpal",
			Name:      "chat_turns_total",
			Help:      "Chat turns by final reconciler state.",
		},
		[]string{"state"},
	)

	regenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travelpal",
			Name:      "regenerations_total",
			Help:      "Regenerations of rejected events by outcome.",
		},
		[]string{"result"},
	)

	sanitizeStrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "travelpal",
			Name:      "sanitize_strategy_total",
			Help:      "Model outputs repaired, by the strategy that succeeded.",
		},
		[]string{"strategy"},
	)

	sessionRecoveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "travelpal",
			Name:      "session_recoveries_total",
			Help:      "Chat sessions re-created from the last known plan.",
		},
	)
)
