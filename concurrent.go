//go:build linux

package uring

import "sync"

// ConcurrentRing adds multi-producer/multi-consumer safety on top of the
// inherently single-producer/single-consumer queue views. Each side gets
// one exclusive-access section per operation; the wire protocol itself is
// untouched, the wrapper only enforces at most one in-flight mutator.
type ConcurrentRing struct {
	ring *Ring
	sqMu sync.Mutex
	cqMu sync.Mutex
}

// Concurrent wraps the ring for use from multiple goroutines. The raw queue
// accessors on the underlying Ring must not be used concurrently with the
// wrapper.
func (r *Ring) Concurrent() *ConcurrentRing {
	return &ConcurrentRing{ring: r}
}

// Ring returns the wrapped ring for read-only accessors (Fd, Features, ...).
func (c *ConcurrentRing) Ring() *Ring {
	return c.ring
}

// Push enqueues one submission entry. Safe from any goroutine.
func (c *ConcurrentRing) Push(entry *SQEntry) error {
	c.sqMu.Lock()
	defer c.sqMu.Unlock()
	if c.ring.closed.Load() {
		return NewError(OpPush, ErrCodeRingClosed, "ring is closed")
	}
	return c.ring.sq.Push(entry)
}

// Available returns the number of free submission slots.
func (c *ConcurrentRing) Available() uint32 {
	c.sqMu.Lock()
	defer c.sqMu.Unlock()
	if c.ring.closed.Load() {
		return 0
	}
	return c.ring.sq.Available()
}

// Submit flushes pending submissions and notifies the kernel. Other
// producers are held back only for the duration of the syscall.
func (c *ConcurrentRing) Submit() (int, error) {
	c.sqMu.Lock()
	defer c.sqMu.Unlock()
	return c.ring.Submit()
}

// SubmitAndWait blocks inside the enter syscall until want completions are
// ready. The submission lock is held for the whole wait, so concurrent
// producers should prefer Submit plus a dedicated reaping goroutine.
func (c *ConcurrentRing) SubmitAndWait(want uint32) (int, error) {
	c.sqMu.Lock()
	defer c.sqMu.Unlock()
	return c.ring.SubmitAndWait(want)
}

// Next returns the oldest unread completion, publishing its consumption
// immediately so the kernel can reuse the slot.
func (c *ConcurrentRing) Next() (CQEntry, bool) {
	c.cqMu.Lock()
	defer c.cqMu.Unlock()
	if c.ring.closed.Load() {
		return CQEntry{}, false
	}
	entry, ok := c.ring.cq.Next()
	if ok {
		c.ring.cq.Sync()
	}
	return entry, ok
}

// Overflow returns the kernel's completion overflow counter.
func (c *ConcurrentRing) Overflow() uint32 {
	c.cqMu.Lock()
	defer c.cqMu.Unlock()
	if c.ring.closed.Load() {
		return 0
	}
	return c.ring.cq.Overflow()
}

// Close tears the underlying ring down, excluding in-flight mutators first.
func (c *ConcurrentRing) Close() error {
	c.sqMu.Lock()
	defer c.sqMu.Unlock()
	c.cqMu.Lock()
	defer c.cqMu.Unlock()
	return c.ring.Close()
}
