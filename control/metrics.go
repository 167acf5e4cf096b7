// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for dispatcher monitoring.
// Exposes counters and gauges in a thread-safe map with dynamic registration,
// and keeps a bounded history of recent dispatches.

package control

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// Metric keys published for a dispatcher.
const (
	MetricDispatchRuns      = "dispatch.runs"
	MetricThreadsGranted    = "dispatch.threads_granted"
	MetricPoolThreadCount   = "pool.thread_count"
	MetricPoolCapacity      = "pool.capacity"
	MetricPoolActiveThreads = "pool.active"
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add increments an int64 counter, creating it at zero.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	n, _ := mr.metrics[key].(int64)
	n += delta
	mr.metrics[key] = n
	mr.updated = time.Now()
	return n
}

// Get returns one metric.
func (mr *MetricsRegistry) Get(key string) (any, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	v, ok := mr.metrics[key]
	return v, ok
}

// Updated returns the time of the last write.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// DispatchRecord describes one completed dispatch.
type DispatchRecord struct {
	Seq       uint64
	Code      string
	Requested int
	Granted   int
	Duration  time.Duration
}

// DispatchHistory keeps the most recent dispatch records, oldest first.
type DispatchHistory struct {
	mu    sync.Mutex
	limit int
	q     *queue.Queue
}

// NewDispatchHistory keeps up to limit records; limit <= 0 disables recording.
func NewDispatchHistory(limit int) *DispatchHistory {
	return &DispatchHistory{limit: limit, q: queue.New()}
}

// Record appends rec, evicting the oldest record when full.
func (h *DispatchHistory) Record(rec DispatchRecord) {
	if h.limit <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for h.q.Length() >= h.limit {
		h.q.Remove()
	}
	h.q.Add(rec)
}

// Len returns the number of retained records.
func (h *DispatchHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.q.Length()
}

// Records copies the retained records, oldest first.
func (h *DispatchHistory) Records() []DispatchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DispatchRecord, h.q.Length())
	for i := range out {
		out[i] = h.q.Get(i).(DispatchRecord)
	}
	return out
}

// Last returns the newest record.
func (h *DispatchHistory) Last() (DispatchRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.q.Length()
	if n == 0 {
		return DispatchRecord{}, false
	}
	return h.q.Get(n - 1).(DispatchRecord), true
}
