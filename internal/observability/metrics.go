package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qagraph_http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "qagraph_http_request_duration_seconds", Help: "HTTP request duration", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)

	graphNodeExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qagraph_node_executions_total", Help: "Total graph node executions"},
		[]string{"node", "status"},
	)
	graphNodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "qagraph_node_duration_seconds", Help: "Graph node execution duration", Buckets: prometheus.DefBuckets},
		[]string{"node"},
	)
	revisionLoopIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "qagraph_revision_loop_iterations", Help: "Generator/critic revisions per run", Buckets: []float64{0, 1, 2, 3}},
	)

	brokerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "qagraph_broker_queue_depth", Help: "Approximate jobs waiting in the broker queue"},
	)
	brokerActiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "qagraph_broker_active_subscribers", Help: "Active SSE subscribers across all requests"},
	)

	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qagraph_llm_calls_total", Help: "Total LLM calls"},
		[]string{"provider", "model", "status"},
	)
	llmCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "qagraph_llm_call_duration_seconds", Help: "LLM call duration", Buckets: prometheus.DefBuckets},
		[]string{"provider", "model"},
	)
	llmCostTotalUSD = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "qagraph_llm_cost_usd_total", Help: "Accumulated LLM spend in USD"},
		[]string{"model"},
	)

	registerOnce sync.Once
)

// InitMetrics registers all collectors with the default Prometheus
// registry. Safe to call more than once.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal, httpRequestDuration,
			graphNodeExecutionsTotal, graphNodeDuration, revisionLoopIterations,
			brokerQueueDepth, brokerActiveSubscribers,
			llmCallsTotal, llmCallDuration, llmCostTotalUSD,
		)
	})
}

// MetricsHandler serves the Prometheus /metrics endpoint.
func MetricsHandler() http.Handler { return promhttp.Handler() }

// RecordHTTPRequest records one HTTP request's outcome and latency.
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordNodeExecution records one graph node's outcome and latency.
func RecordNodeExecution(node, status string, d time.Duration) {
	graphNodeExecutionsTotal.WithLabelValues(node, status).Inc()
	graphNodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// RecordRevisionLoopIterations records how many generator/critic
// revisions one run took.
func RecordRevisionLoopIterations(n int) {
	revisionLoopIterations.Observe(float64(n))
}

// SetBrokerQueueDepth updates the queue-depth gauge.
func SetBrokerQueueDepth(n int) { brokerQueueDepth.Set(float64(n)) }

// SetBrokerActiveSubscribers updates the active-subscriber gauge.
func SetBrokerActiveSubscribers(n int) { brokerActiveSubscribers.Set(float64(n)) }

// RecordLLMCall records one LLM call's outcome, latency, and cost.
func RecordLLMCall(provider, model, status string, d time.Duration, costUSD float64) {
	llmCallsTotal.WithLabelValues(provider, model, status).Inc()
	llmCallDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	if costUSD > 0 {
		llmCostTotalUSD.WithLabelValues(model).Add(costUSD)
	}
}
