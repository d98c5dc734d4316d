package infra

import (
	"sync"
	"testing"
)

func TestMetrics_SnapshotReflectsCounters(t *testing.T) {
	m := &Metrics{}

	m.RecordOpportunity()
	m.RecordOpportunity()
	m.RecordExecuted()
	m.RecordRejected()
	m.RecordOrderFilled()
	m.RecordOrderFailed()
	m.RecordError()
	m.RecordLatency(100)
	m.RecordLatency(300)
	m.IncrementConnections()
	m.IncrementConnections()
	m.DecrementConnections()

	s := m.Snapshot()
	if s.OpportunitiesSeen != 2 || s.OpportunitiesExecuted != 1 || s.OpportunitiesRejected != 1 {
		t.Errorf("opportunity counters wrong: %+v", s)
	}
	if s.OrdersFilled != 1 || s.OrdersFailed != 1 || s.ErrorsTotal != 1 {
		t.Errorf("order counters wrong: %+v", s)
	}
	if s.AvgLatencyNs != 200 {
		t.Errorf("avg latency: got %d, want 200", s.AvgLatencyNs)
	}
	if s.ActiveConnections != 1 {
		t.Errorf("active connections: got %d", s.ActiveConnections)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}
	m.RecordOpportunity()
	m.RecordLatency(500)
	m.Reset()

	s := m.Snapshot()
	if s.OpportunitiesSeen != 0 || s.AvgLatencyNs != 0 {
		t.Errorf("reset did not clear counters: %+v", s)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordOpportunity()
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().OpportunitiesSeen; got != 800 {
		t.Errorf("got %d, want 800", got)
	}
}
