package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CheckInsTotal counts check-in attempts by result: early, ontime, late, or a rejection kind.
	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffrewards",
		Name:      "checkins_total",
		Help:      "Check-in attempts by result.",
	}, []string{"result"})

	// PointsAwardedTotal sums base and bonus points granted.
	PointsAwardedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffrewards",
		Name:      "points_awarded_total",
		Help:      "Points granted by check-ins.",
	}, []string{"kind"})

	RedemptionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffrewards",
		Name:      "redemptions_total",
		Help:      "Reward redemptions by status transition.",
	}, []string{"status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffrewards",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "staffrewards",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
