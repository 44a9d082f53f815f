package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logship_events_total",
			Help: "Total number of events accepted",
		},
		[]string{"kind"},
	)

	EntriesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logship_entries_skipped_total",
			Help: "Total number of events filtered before delivery",
		},
	)

	EntriesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logship_entries_delivered_total",
			Help: "Total number of entries written to the backend",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logship_delivery_failures_total",
			Help: "Total number of failed backend writes",
		},
	)

	DeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logship_delivery_duration_seconds",
			Help:    "Duration of backend writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logship_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"client"},
	)
)
