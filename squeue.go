//go:build linux

package uring

import (
	"sync/atomic"
	"unsafe"

	"github.com/ehrlich-b/go-uring/internal/sys"
)

// SubmissionQueue is the process-side producer view of the submission ring.
// The process owns the tail, the kernel owns the head; both counters live in
// the mapped memory and the kernel synchronizes purely via memory ordering.
//
// A SubmissionQueue is valid only while the Ring that produced it is open.
// Without external synchronization at most one goroutine may call Push/Sync;
// use ConcurrentRing for multi-producer access.
type SubmissionQueue struct {
	khead    *uint32 // kernel advances this as it consumes entries
	ktail    *uint32 // published tail, kernel reads it
	kflags   *uint32 // IORING_SQ_* status bits, kernel writes
	kdropped *uint32 // submissions discarded by the kernel as malformed
	array    unsafe.Pointer
	sqes     unsafe.Pointer

	mask    uint32
	entries uint32
	metrics *Metrics

	// private tail, published to ktail by Sync
	sqeHead uint32
	sqeTail uint32
}

// bindSubmissionQueue resolves the ring fields through the negotiated offset
// table. ringBase spans the SQ ring mapping, sqesBase the entry array mapping.
func bindSubmissionQueue(ringBase, sqesBase unsafe.Pointer, p *sys.Params, metrics *Metrics) *SubmissionQueue {
	sq := &SubmissionQueue{
		metrics:  metrics,
		khead:    (*uint32)(unsafe.Add(ringBase, p.SQOff.Head)),
		ktail:    (*uint32)(unsafe.Add(ringBase, p.SQOff.Tail)),
		kflags:   (*uint32)(unsafe.Add(ringBase, p.SQOff.Flags)),
		kdropped: (*uint32)(unsafe.Add(ringBase, p.SQOff.Dropped)),
		array:    unsafe.Add(ringBase, p.SQOff.Array),
		sqes:     sqesBase,
		mask:     *(*uint32)(unsafe.Add(ringBase, p.SQOff.RingMask)),
		entries:  *(*uint32)(unsafe.Add(ringBase, p.SQOff.RingEntries)),
	}
	tail := atomic.LoadUint32(sq.ktail)
	sq.sqeHead = tail
	sq.sqeTail = tail
	return sq
}

// Push writes entry into the next free slot and advances the private tail.
// The entry is not visible to the kernel until Sync (or a submit) publishes
// the tail. Returns ErrSQFull when no slot is free; the queue never
// overwrites a slot the kernel still owns.
func (sq *SubmissionQueue) Push(entry *SQEntry) error {
	head := atomic.LoadUint32(sq.khead)
	next := sq.sqeTail + 1
	if next-head > sq.entries {
		sq.metrics.SQFullEvents.Add(1)
		return NewError(OpPush, ErrCodeSQFull, "no free submission slots")
	}

	idx := sq.sqeTail & sq.mask
	*(*SQEntry)(unsafe.Add(sq.sqes, uintptr(idx)*unsafe.Sizeof(SQEntry{}))) = *entry
	*(*uint32)(unsafe.Add(sq.array, uintptr(idx)*unsafe.Sizeof(uint32(0)))) = idx
	sq.sqeTail = next
	sq.metrics.Pushed.Add(1)
	return nil
}

// Sync publishes the private tail. The release store guarantees a polling
// kernel observes fully written entries before the advanced tail. Calling
// Sync with nothing new pushed is a no-op.
func (sq *SubmissionQueue) Sync() {
	if sq.sqeHead != sq.sqeTail {
		sq.sqeHead = sq.sqeTail
		atomic.StoreUint32(sq.ktail, sq.sqeTail)
	}
}

// flush publishes the tail and reports how many entries await the kernel.
func (sq *SubmissionQueue) flush() uint32 {
	sq.Sync()
	return sq.sqeTail - atomic.LoadUint32(sq.khead)
}

// Available returns the number of free submission slots.
func (sq *SubmissionQueue) Available() uint32 {
	return sq.entries - (sq.sqeTail - atomic.LoadUint32(sq.khead))
}

// Len returns the number of entries the kernel has not consumed yet,
// including pushed-but-unpublished ones.
func (sq *SubmissionQueue) Len() uint32 {
	return sq.sqeTail - atomic.LoadUint32(sq.khead)
}

// Cap returns the ring capacity negotiated by the kernel.
func (sq *SubmissionQueue) Cap() uint32 {
	return sq.entries
}

// Flags returns the shared SQ status word.
func (sq *SubmissionQueue) Flags() uint32 {
	return atomic.LoadUint32(sq.kflags)
}

// NeedWakeup reports whether the kernel-side polling thread has gone idle
// and must be woken through the enter syscall.
func (sq *SubmissionQueue) NeedWakeup() bool {
	return sq.Flags()&sys.IORING_SQ_NEED_WAKEUP != 0
}

// CQOverflow reports whether the kernel has flagged a completion overflow.
func (sq *SubmissionQueue) CQOverflow() bool {
	return sq.Flags()&sys.IORING_SQ_CQ_OVERFLOW != 0
}

// Dropped returns the kernel counter of submissions it discarded. Loss is
// permanent; there is no recovery path in the protocol.
func (sq *SubmissionQueue) Dropped() uint32 {
	return atomic.LoadUint32(sq.kdropped)
}
