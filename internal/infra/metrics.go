package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersAdmitted atomic.Uint64
	ordersRejected atomic.Uint64
	tradesExecuted atomic.Uint64
	ticksPublished atomic.Uint64

	// Latency tracking (order admission, start to finish of AddOrder)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeSymbols atomic.Int32
	engineRunning atomic.Int32 // 1 = MDE producer running, 0 = stopped
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordOrderAdmitted records one admitted order with its processing
// latency.
func (m *Metrics) RecordOrderAdmitted(latencyNs int64) {
	m.ordersAdmitted.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordOrderRejected records one rejected admission.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// RecordTrade records one executed trade.
func (m *Metrics) RecordTrade() {
	m.tradesExecuted.Add(1)
}

// RecordTick records one published market-data tick.
func (m *Metrics) RecordTick() {
	m.ticksPublished.Add(1)
}

// SetActiveSymbols sets the current count of registered symbols.
func (m *Metrics) SetActiveSymbols(count int32) {
	m.activeSymbols.Store(count)
}

// SetEngineRunning sets the market-data engine's running state.
func (m *Metrics) SetEngineRunning(running bool) {
	if running {
		m.engineRunning.Store(1)
	} else {
		m.engineRunning.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersAdmitted uint64
	OrdersRejected uint64
	TradesExecuted uint64
	TicksPublished uint64
	AvgLatencyNs   int64
	ActiveSymbols  int32
	EngineRunning  bool
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersAdmitted: m.ordersAdmitted.Load(),
		OrdersRejected: m.ordersRejected.Load(),
		TradesExecuted: m.tradesExecuted.Load(),
		TicksPublished: m.ticksPublished.Load(),
		AvgLatencyNs:   avgLatency,
		ActiveSymbols:  m.activeSymbols.Load(),
		EngineRunning:  m.engineRunning.Load() == 1,
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersAdmitted.Store(0)
	m.ordersRejected.Store(0)
	m.tradesExecuted.Store(0)
	m.ticksPublished.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeSymbols.Store(0)
	m.engineRunning.Store(0)
}
