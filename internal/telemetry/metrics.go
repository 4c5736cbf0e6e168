package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "blindquiz"

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Number of rooms with a running scheduler.",
	})

	Guesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guesses_total",
		Help:      "Submitted guesses by result.",
	}, []string{"result"})

	Rounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rounds_total",
		Help:      "Revealed rounds by game type.",
	}, []string{"game_type"})

	RoomFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "room_failures_total",
		Help:      "Rooms stopped by an unrecoverable error.",
	})
)
