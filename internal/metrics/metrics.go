package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playground_http_request_duration_seconds",
			Help:    "HTTP request duration, including the lifetime of streamed responses",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// Proxy metrics
	ProxiedChunks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playground_proxy_chunks_total",
			Help: "Total upstream chunks re-emitted as SSE events",
		},
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_upstream_errors_total",
			Help: "Total upstream failures",
		},
		[]string{"stage"}, // "config", "open" or "stream"
	)

	// Consumer metrics
	MalformedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playground_malformed_frames_total",
			Help: "Total stream lines skipped because their payload failed to parse",
		},
	)

	Turns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playground_turns_total",
			Help: "Total chat turns by outcome",
		},
		[]string{"outcome"}, // "done", "exhausted", "status_error" or "error"
	)
)
