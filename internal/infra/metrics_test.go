package infra

import (
	"testing"
)

func TestMetrics_RecordOrderAdmitted(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderAdmitted(1000)
	m.RecordOrderAdmitted(2000)
	m.RecordOrderAdmitted(3000)

	snap := m.Snapshot()

	if snap.OrdersAdmitted != 3 {
		t.Errorf("Expected 3 orders admitted, got %d", snap.OrdersAdmitted)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}
}

func TestMetrics_ActiveSymbols(t *testing.T) {
	m := &Metrics{}

	m.SetActiveSymbols(3)

	snap := m.Snapshot()
	if snap.ActiveSymbols != 3 {
		t.Errorf("Expected 3 active symbols, got %d", snap.ActiveSymbols)
	}
}

func TestMetrics_EngineRunning(t *testing.T) {
	m := &Metrics{}

	snap := m.Snapshot()
	if snap.EngineRunning {
		t.Error("Expected engine stopped initially")
	}

	m.SetEngineRunning(true)
	snap = m.Snapshot()
	if !snap.EngineRunning {
		t.Error("Expected engine running")
	}

	m.SetEngineRunning(false)
	snap = m.Snapshot()
	if snap.EngineRunning {
		t.Error("Expected engine stopped")
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordOrderAdmitted(1000)
	m.RecordOrderRejected()
	m.RecordTrade()
	m.SetActiveSymbols(2)

	m.Reset()
	snap := m.Snapshot()

	if snap.OrdersAdmitted != 0 {
		t.Error("Expected 0 orders admitted after reset")
	}
	if snap.OrdersRejected != 0 {
		t.Error("Expected 0 orders rejected after reset")
	}
	if snap.TradesExecuted != 0 {
		t.Error("Expected 0 trades executed after reset")
	}
	if snap.ActiveSymbols != 0 {
		t.Error("Expected 0 active symbols after reset")
	}
}
