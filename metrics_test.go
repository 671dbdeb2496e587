//go:build linux

package uring

import (
	"sync"
	"testing"
)

func TestMetrics(t *testing.T) {
	m := newMetrics()

	// Test initial state
	snap := m.Snapshot()
	if snap.Pushed != 0 || snap.Submitted != 0 || snap.Reaped != 0 {
		t.Errorf("Expected zeroed counters, got %+v", snap)
	}
	if m.StartTime.Load() == 0 {
		t.Error("Expected start time to be stamped")
	}

	// Record some activity
	m.Pushed.Add(3)
	m.SQFullEvents.Add(1)
	m.Submitted.Add(3)
	m.Reaped.Add(2)
	m.EnterCalls.Add(1)
	m.Waits.Add(1)

	snap = m.Snapshot()
	if snap.Pushed != 3 {
		t.Errorf("Expected 3 pushed, got %d", snap.Pushed)
	}
	if snap.SQFullEvents != 1 {
		t.Errorf("Expected 1 sq-full event, got %d", snap.SQFullEvents)
	}
	if snap.Submitted != 3 {
		t.Errorf("Expected 3 submitted, got %d", snap.Submitted)
	}
	if snap.Reaped != 2 {
		t.Errorf("Expected 2 reaped, got %d", snap.Reaped)
	}
	if snap.EnterCalls != 1 || snap.Waits != 1 {
		t.Errorf("Expected 1 enter call and 1 wait, got %d/%d", snap.EnterCalls, snap.Waits)
	}
	if snap.Uptime < 0 {
		t.Errorf("Expected non-negative uptime, got %v", snap.Uptime)
	}
}

func TestMetricsReset(t *testing.T) {
	m := newMetrics()
	m.Pushed.Add(10)
	m.EnterErrors.Add(2)
	start := m.StartTime.Load()

	m.Reset()

	snap := m.Snapshot()
	if snap.Pushed != 0 || snap.EnterErrors != 0 {
		t.Errorf("Expected counters reset, got %+v", snap)
	}
	if m.StartTime.Load() != start {
		t.Error("Reset must keep the start time")
	}
}

func TestMetricsConcurrency(t *testing.T) {
	m := newMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Pushed.Add(1)
				m.Reaped.Add(1)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Pushed != 8000 || snap.Reaped != 8000 {
		t.Errorf("Expected 8000/8000, got %d/%d", snap.Pushed, snap.Reaped)
	}
}
