package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Gateway GraphQL metrics
	gatewayQueriesTotal  *prometheus.CounterVec
	gatewayQueryDuration *prometheus.HistogramVec
	gatewayEdgesPerQuery *prometheus.HistogramVec

	// Fetch cycle metrics
	cyclesTotal        *prometheus.CounterVec
	cycleDuration      prometheus.Histogram
	cycleRecordsMerged prometheus.Histogram
	sourceFailures     *prometheus.CounterVec
	malformedEdges     *prometheus.CounterVec
	staleCyclesDropped prometheus.Counter

	// Price oracle metrics
	priceFetchesTotal  *prometheus.CounterVec
	priceFetchDuration *prometheus.HistogramVec
	staleRatesDropped  prometheus.Counter

	// HTTP metrics
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsTotal    *prometheus.CounterVec
	sseActiveConnections *prometheus.GaugeVec
	sseEventsSent        *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Gateway GraphQL metrics
		gatewayQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_queries_total",
				Help: "Total number of gateway GraphQL queries by source and status",
			},
			[]string{"source", "status", "endpoint"},
		),
		gatewayQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_query_duration_seconds",
				Help:    "Duration of gateway GraphQL queries in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"source", "endpoint"},
		),
		gatewayEdgesPerQuery: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_edges_per_query",
				Help:    "Number of edges returned per gateway query",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"source"},
		),

		// Fetch cycle metrics
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fetch_cycles_total",
				Help: "Total number of fetch cycles by outcome (published or superseded)",
			},
			[]string{"outcome"},
		),
		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetch_cycle_duration_seconds",
				Help:    "Duration of a full dispatch/normalize/merge/enrich cycle",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),
		cycleRecordsMerged: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fetch_cycle_records_merged",
				Help:    "Number of records in the merged collection per cycle",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
			},
		),
		sourceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_failures_total",
				Help: "Total number of per-source query failures absorbed by the pipeline",
			},
			[]string{"source"},
		),
		malformedEdges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "malformed_edges_total",
				Help: "Total number of malformed edges skipped during normalization",
			},
			[]string{"source"},
		),
		staleCyclesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_cycles_dropped_total",
				Help: "Total number of cycle results discarded because the address changed mid-flight",
			},
		),

		// Price oracle metrics
		priceFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "price_fetches_total",
				Help: "Total number of fiat rate fetches by currency and status",
			},
			[]string{"currency", "status"},
		),
		priceFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "price_fetch_duration_seconds",
				Help:    "Duration of fiat rate fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"currency"},
		),
		staleRatesDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stale_rates_dropped_total",
				Help: "Total number of rate responses discarded because the currency changed mid-flight",
			},
		),

		// HTTP metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method and status class",
			},
			[]string{"handler", "method", "status"},
		),
		sseActiveConnections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sse_active_connections",
				Help: "Number of currently connected SSE clients",
			},
			[]string{"address"},
		),
		sseEventsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sse_events_sent_total",
				Help: "Total number of SSE events sent to clients",
			},
			[]string{"address"},
		),

		// NATS metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of activity events published to NATS",
			},
			[]string{"status"},
		),
		natsPublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
		),
	}
}

// RecordGatewayQuery records a gateway GraphQL query with its status and duration.
func (m *Metrics) RecordGatewayQuery(source, status, endpoint string, duration float64) {
	m.gatewayQueriesTotal.WithLabelValues(source, status, endpoint).Inc()
	m.gatewayQueryDuration.WithLabelValues(source, endpoint).Observe(duration)
}

// RecordGatewayEdges records the number of edges returned by a gateway query.
func (m *Metrics) RecordGatewayEdges(source string, count float64) {
	m.gatewayEdgesPerQuery.WithLabelValues(source).Observe(count)
}

// RecordCycle records a completed fetch cycle.
func (m *Metrics) RecordCycle(outcome string, duration float64, recordCount float64) {
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(duration)
	m.cycleRecordsMerged.Observe(recordCount)
}

// RecordSourceFailure records a per-source query failure absorbed by the pipeline.
func (m *Metrics) RecordSourceFailure(source string) {
	m.sourceFailures.WithLabelValues(source).Inc()
}

// RecordMalformedEdge records an edge skipped during normalization.
func (m *Metrics) RecordMalformedEdge(source string) {
	m.malformedEdges.WithLabelValues(source).Inc()
}

// RecordStaleCycleDropped records a cycle result discarded by the last-write-wins guard.
func (m *Metrics) RecordStaleCycleDropped() {
	m.staleCyclesDropped.Inc()
}

// RecordPriceFetch records a fiat rate fetch with its status and duration.
func (m *Metrics) RecordPriceFetch(currency, status string, duration float64) {
	m.priceFetchesTotal.WithLabelValues(currency, status).Inc()
	m.priceFetchDuration.WithLabelValues(currency).Observe(duration)
}

// RecordStaleRateDropped records a rate response discarded because the currency changed.
func (m *Metrics) RecordStaleRateDropped() {
	m.staleRatesDropped.Inc()
}

// RecordHTTPRequest records an HTTP request with its duration and status code.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// SSEConnectionOpened increments the active SSE connection gauge.
func (m *Metrics) SSEConnectionOpened(address string) {
	m.sseActiveConnections.WithLabelValues(address).Inc()
}

// SSEConnectionClosed decrements the active SSE connection gauge.
func (m *Metrics) SSEConnectionClosed(address string) {
	m.sseActiveConnections.WithLabelValues(address).Dec()
}

// RecordSSEEvent records an SSE event sent to a client.
func (m *Metrics) RecordSSEEvent(address string) {
	m.sseEventsSent.WithLabelValues(address).Inc()
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
	m.natsPublishDuration.Observe(duration)
}

// statusCodeClass converts a status code to its class string ("2xx", "4xx", ...).
func statusCodeClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
