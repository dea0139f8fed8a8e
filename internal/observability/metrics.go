package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Identifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "herbid",
		Name:      "identifications_total",
		Help:      "Total identification results by provenance",
	}, []string{"source", "match_type"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "herbid",
		Name:      "cache_hits_total",
		Help:      "Total cache hits by match type",
	}, []string{"match_type"})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "herbid",
		Name:      "external_calls_total",
		Help:      "Total calls to external providers",
	}, []string{"provider", "status"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "herbid",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of identification pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	RecordsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "herbid",
		Name:      "records_purged_total",
		Help:      "Total unverified cache records removed by retention cleanup",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "herbid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "herbid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
