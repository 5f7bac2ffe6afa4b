package graph

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics wraps the Prometheus counters, histograms and gauge the runner
// reports against: node latency and executions, cache hits and misses,
// supersteps, routing decisions, and in-flight nodes. There are no
// checkpoint-write or pause metrics. All metrics are namespaced
// "hypergraph_".
type Metrics struct {
	inflightNodes  prometheus.Gauge
	nodeLatency    *prometheus.HistogramVec
	nodeExecutions *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	supersteps     *prometheus.CounterVec
	routingDecisions *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics registers every metric with registry (prometheus.DefaultRegisterer
// if nil) and returns a handle to update them.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		enabled: true,
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hypergraph",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing within the concurrent scheduler",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hypergraph",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_name", "status"}),
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergraph",
			Name:      "node_executions_total",
			Help:      "Node executions, labeled by outcome",
		}, []string{"node_name", "status"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergraph",
			Name:      "cache_hits_total",
			Help:      "Node result cache hits",
		}, []string{"node_name"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergraph",
			Name:      "cache_misses_total",
			Help:      "Node result cache misses",
		}, []string{"node_name"}),
		supersteps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergraph",
			Name:      "supersteps_total",
			Help:      "Superstep iterations executed across all runs",
		}, []string{"graph_name"}),
		routingDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hypergraph",
			Name:      "routing_decisions_total",
			Help:      "Routing gate decisions, labeled by the gate and chosen target",
		}, []string{"gate_name", "target"}),
	}
}

func (m *Metrics) RecordNodeLatency(nodeName string, ms float64, status string) {
	if !m.on() {
		return
	}
	m.nodeLatency.WithLabelValues(nodeName, status).Observe(ms)
	m.nodeExecutions.WithLabelValues(nodeName, status).Inc()
}

func (m *Metrics) RecordCacheHit(nodeName string) {
	if m.on() {
		m.cacheHits.WithLabelValues(nodeName).Inc()
	}
}

func (m *Metrics) RecordCacheMiss(nodeName string) {
	if m.on() {
		m.cacheMisses.WithLabelValues(nodeName).Inc()
	}
}

func (m *Metrics) RecordSuperstep(graphName string) {
	if m.on() {
		m.supersteps.WithLabelValues(graphName).Inc()
	}
}

func (m *Metrics) RecordRoutingDecision(gateName, target string) {
	if m.on() {
		m.routingDecisions.WithLabelValues(gateName, target).Inc()
	}
}

func (m *Metrics) SetInflightNodes(n int) {
	if m.on() {
		m.inflightNodes.Set(float64(n))
	}
}

func (m *Metrics) on() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable turns off metric recording (useful for tests sharing a registry).
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
