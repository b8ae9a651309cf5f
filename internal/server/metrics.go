// Package server metrics provide real-time operational visibility for production monitoring.
// Thread-safe atomic operations ensure accurate counters under high concurrency
// for capacity planning, alerting, and operational insights.
package server

import (
	"sync/atomic"
	"time"
)

// Metrics contains connection-level runtime statistics using atomic
// operations for thread safety. Lock-free design ensures minimal
// performance impact for production monitoring. Index-store size (packages
// indexed, forward/reverse edge counts) is not tracked here: the index
// store is its own source of truth for that, via Indexer.GetStats, so
// GetMetrics folds it into the reported snapshot instead of this type
// carrying a second, independently-updated copy of the same numbers.
type Metrics struct {
	ConnectionsTotal  int64
	CommandsProcessed int64
	ErrorCount        int64
	StartTime         time.Time
}

// IndexStats is the index store's size, as reported by Indexer.GetStats at
// the moment a MetricsSnapshot is taken.
type IndexStats struct {
	PackagesIndexed  int
	TotalDeps        int
	TotalReverseDeps int
}

// MetricsSnapshot represents a point-in-time view of server metrics for consistent reporting.
// Atomic snapshot prevents torn reads during concurrent updates, ensuring reliable metrics
// data for monitoring dashboards, alerting systems, and operational decision-making.
type MetricsSnapshot struct {
	ConnectionsTotal  int64
	CommandsProcessed int64
	ErrorCount        int64
	Index             IndexStats
	Uptime            time.Duration
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
	}
}

// IncrementConnections atomically increments the connection counter
func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.ConnectionsTotal, 1)
}

// IncrementCommands atomically increments the command counter
func (m *Metrics) IncrementCommands() {
	atomic.AddInt64(&m.CommandsProcessed, 1)
}

// IncrementErrors atomically increments the error counter
func (m *Metrics) IncrementErrors() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// GetSnapshot returns a consistent point-in-time view of the connection
// counters plus the given index stats, which the caller obtains from the
// Indexer it's reporting on (see Server.GetMetrics).
func (m *Metrics) GetSnapshot(idx IndexStats) MetricsSnapshot {
	return MetricsSnapshot{
		ConnectionsTotal:  atomic.LoadInt64(&m.ConnectionsTotal),
		CommandsProcessed: atomic.LoadInt64(&m.CommandsProcessed),
		ErrorCount:        atomic.LoadInt64(&m.ErrorCount),
		Index:             idx,
		Uptime:            time.Since(m.StartTime),
	}
}
