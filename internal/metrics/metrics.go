package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==========================================================================
	// HTTP Metrics
	// ==========================================================================
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// ==========================================================================
	// Database Metrics
	// ==========================================================================
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query_type", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// ==========================================================================
	// Conversation Hub Metrics
	// ==========================================================================
	MessagesInboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_inbound_total",
			Help: "Total inbound messages processed",
		},
		[]string{"channel", "outcome"}, // outcome: created, duplicate, rejected
	)

	MessagesOutboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_outbound_total",
			Help: "Total outbound messages sent",
		},
		[]string{"channel", "source"}, // source: human, ai
	)

	AIReplyLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_reply_latency_seconds",
			Help:    "Time to generate an AI reply",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20},
		},
	)

	// ==========================================================================
	// Inventory Pipeline Metrics
	// ==========================================================================
	ScrapeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Total scrape runs by outcome",
		},
		[]string{"provider", "status"},
	)

	ScrapeRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_run_duration_seconds",
			Help:    "Scrape run duration by provider used",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"provider"},
	)

	VehiclesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vehicles_total",
			Help: "Total number of vehicles by dealership",
		},
		[]string{"dealership_id"},
	)

	BulkSyncDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bulk_sync_vehicles_deleted_total",
			Help: "Total vehicles removed by bulk delete-subtract sync",
		},
	)

	// ==========================================================================
	// Posting Engine Metrics (generalized from the teacher's bid-engine
	// queue/worker gauges — same shape, one worker per dealership instead
	// of per auction)
	// ==========================================================================
	PostingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posting_queue_depth",
			Help: "Current depth of the posting queue",
		},
	)

	PostingWorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "posting_workers_active",
			Help: "Number of active posting workers",
		},
	)

	PostingProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "posting_processing_duration_seconds",
			Help:    "Time to process a posting job end to end",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PostingOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "posting_outcomes_total",
			Help: "Total posting attempts by outcome",
		},
		[]string{"platform", "status"},
	)

	// ==========================================================================
	// Realtime Fanout Metrics (generalized from the teacher's SSE gauges)
	// ==========================================================================
	RealtimeConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Number of active websocket connections",
		},
	)

	RealtimeMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total realtime notifications broadcast",
		},
		[]string{"event_type"},
	)

	RealtimeSubscribersPerDealership = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_subscribers_per_dealership",
			Help:    "Number of websocket subscribers per dealership when broadcasting",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	// ==========================================================================
	// External Adapter Metrics
	// ==========================================================================
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_calls_total",
			Help: "Total external API calls",
		},
		[]string{"adapter", "status"},
	)

	ExternalAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_latency_seconds",
			Help:    "External API call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"adapter"},
	)
)
