package core

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes every Prometheus series the service exports.
const DefaultMetricsNamespace = "kincore"

// PrometheusMetricsRecorder exports operation latency, outcome counters and
// tree sizes as Prometheus series.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	nodes     prometheus.Histogram
	families  prometheus.Histogram
}

// NewPrometheusMetricsRecorder registers the service collectors on reg, or on
// prometheus.DefaultRegisterer when reg is nil.
func NewPrometheusMetricsRecorder(namespace string, reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	treeBuckets := prometheus.ExponentialBuckets(1, 2, 10)
	r := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Latency of service operations.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "nodes",
			Help:      "Persons per built tree.",
			Buckets:   treeBuckets,
		}),
		families: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "families",
			Help:      "Family units per built tree.",
			Buckets:   treeBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.results, r.nodes, r.families} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := string(AuditStatusError)
	if success {
		status = string(AuditStatusSuccess)
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// ObserveTree implements TreeObserver.
func (r *PrometheusMetricsRecorder) ObserveTree(_ context.Context, nodes, families int) {
	r.nodes.Observe(float64(nodes))
	r.families.Observe(float64(families))
}
