package core

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq atomic.Uint64

// ExpvarMetricsRecorder publishes operation and tree totals as one expvar map
// with "durations_ms", "results" and "trees" entries. It serves deployments
// that scrape /debug/vars instead of Prometheus.
type ExpvarMetricsRecorder struct {
	name      string
	durations *expvar.Map // operation -> *expvar.Float milliseconds
	results   *expvar.Map // operation -> *expvar.Map status -> *expvar.Int
	trees     *expvar.Map // builds, nodes, families

	mu sync.Mutex
}

// ExpvarTreeTotals accumulates the size of every built tree.
type ExpvarTreeTotals struct {
	Builds   int64 `json:"builds"`
	Nodes    int64 `json:"nodes"`
	Families int64 `json:"families"`
}

// ExpvarMetricsSnapshot mirrors the published map.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms"`
	Results     map[string]map[string]int64 `json:"results"`
	Trees       ExpvarTreeTotals            `json:"trees"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated kincore_service_metrics_<n> name when empty. Like expvar.Publish
// it panics when name is already taken.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("kincore_service_metrics_%d", expvarSeq.Add(1))
	}
	r := &ExpvarMetricsRecorder{
		name:      name,
		durations: new(expvar.Map).Init(),
		results:   new(expvar.Map).Init(),
		trees:     new(expvar.Map).Init(),
	}
	root := expvar.NewMap(name)
	root.Set("durations_ms", r.durations)
	root.Set("results", r.results)
	root.Set("trees", r.trees)
	return r
}

// Name returns the expvar name the recorder is published under.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := string(AuditStatusError)
	if success {
		status = string(AuditStatusSuccess)
	}
	r.durations.AddFloat(operation, float64(duration)/float64(time.Millisecond))
	r.statusCounts(operation).Add(status, 1)
}

func (r *ExpvarMetricsRecorder) statusCounts(operation string) *expvar.Map {
	if m, ok := r.results.Get(operation).(*expvar.Map); ok {
		return m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.results.Get(operation).(*expvar.Map); ok {
		return m
	}
	m := new(expvar.Map).Init()
	r.results.Set(operation, m)
	return m
}

// ObserveTree implements TreeObserver.
func (r *ExpvarMetricsRecorder) ObserveTree(_ context.Context, nodes, families int) {
	r.trees.Add("builds", 1)
	r.trees.Add("nodes", int64(nodes))
	r.trees.Add("families", int64(families))
}

// Snapshot copies the current totals out of the published map.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64),
		Results:     make(map[string]map[string]int64),
		Trees: ExpvarTreeTotals{
			Builds:   intVar(r.trees, "builds"),
			Nodes:    intVar(r.trees, "nodes"),
			Families: intVar(r.trees, "families"),
		},
	}
	r.durations.Do(func(kv expvar.KeyValue) {
		if f, ok := kv.Value.(*expvar.Float); ok {
			snap.DurationsMS[kv.Key] = f.Value()
		}
	})
	r.results.Do(func(kv expvar.KeyValue) {
		statuses, ok := kv.Value.(*expvar.Map)
		if !ok {
			return
		}
		counts := make(map[string]int64, 2)
		statuses.Do(func(s expvar.KeyValue) { counts[s.Key] = intValue(s.Value) })
		snap.Results[kv.Key] = counts
	})
	return snap
}

func intVar(m *expvar.Map, key string) int64 {
	return intValue(m.Get(key))
}

func intValue(v expvar.Var) int64 {
	if i, ok := v.(*expvar.Int); ok {
		return i.Value()
	}
	return 0
}
