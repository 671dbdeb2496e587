//go:build linux

package uring

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for one ring instance. All counters
// are atomic so the struct can be read while the ring is in use.
type Metrics struct {
	// Submission side
	Pushed       atomic.Uint64 // Entries pushed into the submission queue
	SQFullEvents atomic.Uint64 // Pushes rejected because the queue was full
	Submitted    atomic.Uint64 // Entries the kernel accepted via enter

	// Completion side
	Reaped atomic.Uint64 // Completions returned to the caller

	// Syscall activity
	EnterCalls  atomic.Uint64 // io_uring_enter invocations
	EnterErrors atomic.Uint64 // enter invocations that returned an error
	Waits       atomic.Uint64 // enter invocations that blocked for completions

	// Lifecycle
	StartTime atomic.Int64 // Ring creation timestamp (UnixNano)
}

// newMetrics creates a metrics instance stamped with the current time.
func newMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Pushed       uint64
	SQFullEvents uint64
	Submitted    uint64
	Reaped       uint64
	EnterCalls   uint64
	EnterErrors  uint64
	Waits        uint64
	Uptime       time.Duration
}

// Snapshot returns a consistent-enough copy for reporting. Counters are read
// individually; exactness across fields is not guaranteed under concurrency.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Pushed:       m.Pushed.Load(),
		SQFullEvents: m.SQFullEvents.Load(),
		Submitted:    m.Submitted.Load(),
		Reaped:       m.Reaped.Load(),
		EnterCalls:   m.EnterCalls.Load(),
		EnterErrors:  m.EnterErrors.Load(),
		Waits:        m.Waits.Load(),
		Uptime:       time.Duration(time.Now().UnixNano() - m.StartTime.Load()),
	}
}

// Reset zeroes all counters, keeping the start time.
func (m *Metrics) Reset() {
	m.Pushed.Store(0)
	m.SQFullEvents.Store(0)
	m.Submitted.Store(0)
	m.Reaped.Store(0)
	m.EnterCalls.Store(0)
	m.EnterErrors.Store(0)
	m.Waits.Store(0)
}
