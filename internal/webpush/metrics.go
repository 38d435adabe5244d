package webpush

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pushSends = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "push_sends_total",
	Help: "Push delivery attempts by outcome (success, expired, failed).",
}, []string{"outcome"})
