package skein

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// MetricType represents the type of metric
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
)

// Metric is the base interface for runtime metrics
type Metric interface {
	Name() string
	Type() MetricType
	Get() int64
	Reset()
}

// Counter is a monotonically increasing metric
type Counter struct {
	name  string
	value int64
}

// NewCounter creates a new counter metric
func NewCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds the given value to the counter
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
}

// Get returns the current value
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.value)
}

// Name returns the metric name
func (c *Counter) Name() string { return c.name }

// Type returns the metric type
func (c *Counter) Type() MetricType { return MetricTypeCounter }

// Reset resets the counter to zero
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.value, 0)
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name  string
	value int64
}

// NewGauge creates a new gauge metric
func NewGauge(name string) *Gauge {
	return &Gauge{name: name}
}

// Set sets the gauge to the given value
func (g *Gauge) Set(value int64) {
	atomic.StoreInt64(&g.value, value)
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	atomic.AddInt64(&g.value, 1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.value, -1)
}

// Get returns the current value
func (g *Gauge) Get() int64 {
	return atomic.LoadInt64(&g.value)
}

// Name returns the metric name
func (g *Gauge) Name() string { return g.name }

// Type returns the metric type
func (g *Gauge) Type() MetricType { return MetricTypeGauge }

// Reset resets the gauge to zero
func (g *Gauge) Reset() {
	atomic.StoreInt64(&g.value, 0)
}

// MetricsRegistry holds the runtime's metrics. One registry per
// Runtime; hot paths hold direct pointers to their counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]Metric

	// Evaluation queue
	EvaluationsRun  *Counter
	SlicesExpired   *Counter
	CyclesCompleted *Counter
	QueueRewinds    *Counter
	NodesScheduled  *Gauge

	// Event queue
	EventsDispatched *Counter
	EventsCoalesced  *Counter
	EventsCancelled  *Counter
	EventsQueued     *Gauge

	// Indexer
	MatchDeltasFlushed *Counter
	KeyUpdatesFlushed  *Counter
	SubTreeUpdates     *Counter
	ActivePathNodes    *Gauge
	DataElements       *Gauge
}

// NewMetricsRegistry creates a registry with the standard runtime metrics
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		metrics: make(map[string]Metric),
	}

	r.EvaluationsRun = r.counter("skein_evaluations_run_total")
	r.SlicesExpired = r.counter("skein_slices_expired_total")
	r.CyclesCompleted = r.counter("skein_cycles_completed_total")
	r.QueueRewinds = r.counter("skein_queue_rewinds_total")
	r.NodesScheduled = r.gauge("skein_nodes_scheduled")

	r.EventsDispatched = r.counter("skein_events_dispatched_total")
	r.EventsCoalesced = r.counter("skein_events_coalesced_total")
	r.EventsCancelled = r.counter("skein_events_cancelled_total")
	r.EventsQueued = r.gauge("skein_events_queued")

	r.MatchDeltasFlushed = r.counter("skein_match_deltas_flushed_total")
	r.KeyUpdatesFlushed = r.counter("skein_key_updates_flushed_total")
	r.SubTreeUpdates = r.counter("skein_subtree_updates_total")
	r.ActivePathNodes = r.gauge("skein_active_path_nodes")
	r.DataElements = r.gauge("skein_data_elements")

	return r
}

func (r *MetricsRegistry) counter(name string) *Counter {
	c := NewCounter(name)
	r.metrics[name] = c
	return c
}

func (r *MetricsRegistry) gauge(name string) *Gauge {
	g := NewGauge(name)
	r.metrics[name] = g
	return g
}

// Get returns a metric by name
func (r *MetricsRegistry) Get(name string) (Metric, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

// ResetAll resets every metric in the registry
func (r *MetricsRegistry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.metrics {
		m.Reset()
	}
}

// WriteTo exports the metrics in Prometheus text format
func (r *MetricsRegistry) WriteTo(w io.Writer) error {
	r.mu.RLock()
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		m := r.metrics[name]
		if _, err := fmt.Fprintf(w, "# TYPE %s %s\n%s %d\n", name, m.Type(), name, m.Get()); err != nil {
			return err
		}
	}
	return nil
}
