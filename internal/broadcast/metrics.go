package broadcast

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var broadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "broadcasts_total",
	Help: "Completed update broadcasts.",
})
