package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RankingsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "rankings_total", Help: "Total ranking queries served"})
	RatingsTotal    = promauto.NewCounterVec(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "ratings_total", Help: "Rating lifecycle events processed"}, []string{"event"})
	RequestsCreated = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "requests_created_total", Help: "Service requests created"})

	WeightUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "weight_updates_total", Help: "Adaptive weight updates applied"})
	ReputationWeight   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "roadside_rescue", Name: "reputation_weight", Help: "Current reputation weight"})
	DistanceWeight     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "roadside_rescue", Name: "distance_weight", Help: "Current distance weight"})

	TrackingUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "tracking_updates_total", Help: "Mechanic location updates processed"})
	ArrivalsTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "arrivals_total", Help: "Requests whose mechanic arrived"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "roadside_rescue", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "roadside_rescue",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
