package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rideshare"

var (
	CodesIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "otp_issued_total", Help: "One-time codes issued"},
		[]string{"purpose"},
	)
	CodeChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "otp_checks_total", Help: "One-time code checks by result"},
		[]string{"purpose", "result"},
	)
	CodeThrottledTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "otp_throttled_total", Help: "Code requests rejected by the throttle"},
	)
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "logins_total", Help: "Password logins by result"},
		[]string{"result"},
	)
	RideTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Ride status transitions"},
		[]string{"to"},
	)
	RequestTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_request_transitions_total", Help: "Join request status transitions"},
		[]string{"to"},
	)
	RatingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "ratings_total", Help: "Ratings submitted"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "route", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
