package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	// Reconciliation counters
	staleFetchesDropped uint64
	rollbacks           uint64

	systemStartTime time.Time
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

// IncrementStaleFetches records a fetch response discarded by sequence fencing.
func (mc *MetricsCollector) IncrementStaleFetches() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.staleFetchesDropped++
}

// IncrementRollbacks records an optimistic mutation that had to be reversed.
func (mc *MetricsCollector) IncrementRollbacks() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.rollbacks++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

// MetricsSnapshot is a point-in-time copy for health reporting.
type MetricsSnapshot struct {
	RequestCount        uint64             `json:"requestCount"`
	ErrorCount          uint64             `json:"errorCount"`
	StaleFetchesDropped uint64             `json:"staleFetchesDropped"`
	Rollbacks           uint64             `json:"rollbacks"`
	UptimeSeconds       float64            `json:"uptimeSeconds"`
	AverageLatencyMs    map[string]float64 `json:"averageLatencyMs"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	averages := make(map[string]float64, len(mc.operationTimes))
	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, s := range samples {
			total += s
		}
		averages[op] = float64(total) / float64(len(samples)) / 1e6
	}

	return MetricsSnapshot{
		RequestCount:        mc.requestCount,
		ErrorCount:          mc.errorCount,
		StaleFetchesDropped: mc.staleFetchesDropped,
		Rollbacks:           mc.rollbacks,
		UptimeSeconds:       time.Since(mc.systemStartTime).Seconds(),
		AverageLatencyMs:    averages,
	}
}
