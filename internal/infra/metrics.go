package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety. Instances are injected, not
// global, so each test can construct an isolated one.
type Metrics struct {
	// Counters
	opportunitiesSeen     atomic.Uint64
	opportunitiesExecuted atomic.Uint64
	opportunitiesRejected atomic.Uint64
	ordersFilled          atomic.Uint64
	ordersFailed          atomic.Uint64
	errorsTotal           atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// RecordOpportunity counts a consumed opportunity.
func (m *Metrics) RecordOpportunity() {
	m.opportunitiesSeen.Add(1)
}

// RecordExecuted counts a fully completed opportunity.
func (m *Metrics) RecordExecuted() {
	m.opportunitiesExecuted.Add(1)
}

// RecordRejected counts an opportunity refused at admission or risk.
func (m *Metrics) RecordRejected() {
	m.opportunitiesRejected.Add(1)
}

// RecordOrderFilled records a filled order leg.
func (m *Metrics) RecordOrderFilled() {
	m.ordersFilled.Add(1)
}

// RecordOrderFailed records a failed order leg.
func (m *Metrics) RecordOrderFailed() {
	m.ordersFailed.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordLatency records one execution latency sample.
func (m *Metrics) RecordLatency(latencyNs int64) {
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// IncrementConnections increments active venue connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active venue connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OpportunitiesSeen     uint64
	OpportunitiesExecuted uint64
	OpportunitiesRejected uint64
	OrdersFilled          uint64
	OrdersFailed          uint64
	ErrorsTotal           uint64
	AvgLatencyNs          int64
	ActiveConnections     int32
	Timestamp             time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OpportunitiesSeen:     m.opportunitiesSeen.Load(),
		OpportunitiesExecuted: m.opportunitiesExecuted.Load(),
		OpportunitiesRejected: m.opportunitiesRejected.Load(),
		OrdersFilled:          m.ordersFilled.Load(),
		OrdersFailed:          m.ordersFailed.Load(),
		ErrorsTotal:           m.errorsTotal.Load(),
		AvgLatencyNs:          avgLatency,
		ActiveConnections:     m.activeConnections.Load(),
		Timestamp:             time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.opportunitiesSeen.Store(0)
	m.opportunitiesExecuted.Store(0)
	m.opportunitiesRejected.Store(0)
	m.ordersFilled.Store(0)
	m.ordersFailed.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
