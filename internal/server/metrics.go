package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docverify_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	documentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_document_requests_total",
			Help: "Total number of document extraction requests",
		},
		[]string{"document", "status"}, // status: success, no_text, invalid, error
	)

	documentProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docverify_document_processing_duration_seconds",
			Help:    "Document extraction duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"document"},
	)

	documentDetections = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docverify_document_detections",
			Help:    "Detections kept after deduplication",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250},
		},
		[]string{"document"},
	)

	passFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_pass_failures_total",
			Help: "Detection passes that failed and were skipped",
		},
		[]string{"document"},
	)

	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docverify_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docverify_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{10 * 1024, 100 * 1024, 512 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docverify_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docverify_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

func metricsHandler() http.Handler { return promhttp.Handler() }
