//go:build linux

package uring

import (
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/go-uring/internal/sys"
)

// CompletionQueue is the process-side consumer view of the completion ring.
// Ownership is mirrored relative to the submission ring: the kernel owns the
// tail, the process owns the head. Completions become visible in the exact
// order the kernel enqueued them.
//
// Valid only while the owning Ring is open; single-consumer unless wrapped.
type CompletionQueue struct {
	khead     *uint32 // consumed head, published back to the kernel
	ktail     *uint32 // kernel advances this as it posts completions
	kflags    *uint32 // nil on kernels without cq_off.flags
	koverflow *uint32 // completions the kernel could not enqueue
	cqes      unsafe.Pointer

	mask    uint32
	entries uint32
	metrics *Metrics

	// private head, published to khead by Sync
	head uint32
}

// bindCompletionQueue resolves the ring fields through the negotiated offset
// table. ringBase spans the CQ ring mapping, or the shared SQ/CQ mapping
// under the single-mmap feature.
func bindCompletionQueue(ringBase unsafe.Pointer, p *sys.Params, metrics *Metrics) *CompletionQueue {
	cq := &CompletionQueue{
		metrics:   metrics,
		khead:     (*uint32)(unsafe.Add(ringBase, p.CQOff.Head)),
		ktail:     (*uint32)(unsafe.Add(ringBase, p.CQOff.Tail)),
		koverflow: (*uint32)(unsafe.Add(ringBase, p.CQOff.Overflow)),
		cqes:      unsafe.Add(ringBase, p.CQOff.CQEs),
		mask:      *(*uint32)(unsafe.Add(ringBase, p.CQOff.RingMask)),
		entries:   *(*uint32)(unsafe.Add(ringBase, p.CQOff.RingEntries)),
	}
	if p.CQOff.Flags != 0 {
		cq.kflags = (*uint32)(unsafe.Add(ringBase, p.CQOff.Flags))
	}
	cq.head = atomic.LoadUint32(cq.khead)
	return cq
}

// Next returns the oldest unread completion and advances the private head.
// The slot is not handed back to the kernel until Sync publishes the head,
// so a caller can drain a batch and publish the consumption once.
func (cq *CompletionQueue) Next() (CQEntry, bool) {
	tail := atomic.LoadUint32(cq.ktail)
	if cq.head == tail {
		return CQEntry{}, false
	}
	entry := *(*CQEntry)(unsafe.Add(cq.cqes, uintptr(cq.head&cq.mask)*unsafe.Sizeof(CQEntry{})))
	cq.head++
	cq.metrics.Reaped.Add(1)
	return entry, true
}

// Sync publishes the consumed head, freeing the slots for kernel reuse.
// Idempotent when nothing has been consumed since the last call.
func (cq *CompletionQueue) Sync() {
	atomic.StoreUint32(cq.khead, cq.head)
}

// IsEmpty reports whether no unread completions are pending.
func (cq *CompletionQueue) IsEmpty() bool {
	return cq.head == atomic.LoadUint32(cq.ktail)
}

// Len returns the number of unread completions.
func (cq *CompletionQueue) Len() uint32 {
	return atomic.LoadUint32(cq.ktail) - cq.head
}

// Cap returns the ring capacity negotiated by the kernel.
func (cq *CompletionQueue) Cap() uint32 {
	return cq.entries
}

// Flags returns the shared CQ flags word, zero on kernels that lack it.
func (cq *CompletionQueue) Flags() uint32 {
	if cq.kflags == nil {
		return 0
	}
	return atomic.LoadUint32(cq.kflags)
}

// Overflow returns the kernel counter of completions dropped because the
// queue was full. Monotonically increasing; diff it over time to detect
// loss. The lost entries are unrecoverable.
func (cq *CompletionQueue) Overflow() uint32 {
	return atomic.LoadUint32(cq.koverflow)
}
