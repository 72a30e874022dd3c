package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medrota_iam_http_requests_total",
		Help: "HTTP requests served, by method and status class.",
	}, []string{"method", "status"})

	httpRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "medrota_iam_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})
)
