// Package metrics exposes Prometheus instrumentation for the event bus and
// the scoring handler. Collectors are registered on the default registry and
// served by promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscape_events_published_total",
		Help: "Total number of events published on the in-process bus, labelled by event type.",
	}, []string{"type"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landscape_events_dropped_total",
		Help: "Total number of events dropped because a subscriber inbox was full.",
	})

	SubscriptionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "landscape_subscriptions_evicted_total",
		Help: "Total number of subscriptions evicted after their inbox overflowed.",
	})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "landscape_live_subscribers",
		Help: "Current number of live stream subscriptions.",
	})

	HandlerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscape_handler_failures_total",
		Help: "Total number of event handler errors or panics, labelled by event type.",
	}, []string{"type"})

	HandlerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "landscape_handler_duration_seconds",
		Help:    "Time spent inside a single event handler invocation.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	ScoreRecomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "landscape_score_recomputations_total",
		Help: "Total number of completion score recomputations, labelled by outcome (changed, unchanged, skipped).",
	}, []string{"outcome"})
)
