//go:build linux

// Package uring is a user-space driver for the Linux io_uring submission
// and completion rings. It owns the ring fd and the memory shared with the
// kernel, implements the lock-free producer/consumer protocol over it, and
// exposes a thin submitter around the enter and register syscalls. Opcode
// semantics are out of scope: entries move through the rings verbatim.
package uring

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uring/internal/logging"
	"github.com/ehrlich-b/go-uring/internal/sys"
)

// Ring owns one io_uring instance: the kernel fd, the mapped regions and the
// queue views bound into them. The fd, flags and features are immutable
// after construction, so a Ring may be shared read-only across goroutines;
// the queue views themselves are single-producer/single-consumer unless
// wrapped by Concurrent.
type Ring struct {
	fd       int
	flags    uint32
	features uint32
	params   sys.Params

	mem *memoryMap
	sq  *SubmissionQueue
	cq  *CompletionQueue

	enter    enterFunc
	register registerFunc
	closeFd  func(int) error

	metrics *Metrics
	logger  *logging.Logger
	closed  atomic.Bool
}

// New creates a ring with entries submission slots and default parameters.
// entries should be a power of two; the kernel rounds it up as needed.
func New(entries uint32) (*Ring, error) {
	return NewWithParams(entries, NewParams())
}

// NewWithParams creates a ring configured by params. The kernel writes the
// negotiated values back into params. Construction is all-or-nothing: any
// failure after setup closes the fd, unmaps whatever was mapped, and no
// partially initialized Ring escapes.
func NewWithParams(entries uint32, params *Params) (*Ring, error) {
	if entries == 0 {
		return nil, NewError(OpSetup, ErrCodeInvalidParameters, "entries must be nonzero")
	}
	p := &params.p

	fd, err := sys.Setup(entries, p)
	if err != nil {
		return nil, WrapError(OpSetup, err)
	}

	metrics := newMetrics()
	mem, sq, cq, err := setupQueues(fd, p, metrics)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}

	logger := logging.Default().WithRing(fd)
	logger.Debug("ring created",
		"sq_entries", p.SQEntries,
		"cq_entries", p.CQEntries,
		"features", p.Features,
		"single_mmap", mem.cqRing == nil)

	return &Ring{
		fd:       fd,
		flags:    p.Flags,
		features: p.Features,
		params:   *p,
		mem:      mem,
		sq:       sq,
		cq:       cq,
		enter:    sys.Enter,
		register: sys.Register,
		closeFd:  unix.Close,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// setupQueues maps the ring regions per the negotiated offset table and
// binds the queue views over them. The single- vs dual-mapping layout is
// decided here, once, from the granted feature bit.
func setupQueues(fd int, p *sys.Params, metrics *Metrics) (*memoryMap, *SubmissionQueue, *CompletionQueue, error) {
	sqLen, cqLen, sqeLen := ringLayout(p)

	sqes, err := mapRegion(fd, sys.IORING_OFF_SQES, sqeLen)
	if err != nil {
		return nil, nil, nil, err
	}

	mem := &memoryMap{sqes: sqes}
	if p.Features&sys.IORING_FEAT_SINGLE_MMAP != 0 {
		// Both ring headers share one region sized to the larger ring.
		scq, err := mapRegion(fd, sys.IORING_OFF_SQ_RING, max(sqLen, cqLen))
		if err != nil {
			mem.release()
			return nil, nil, nil, err
		}
		mem.sqRing = scq
		sq := bindSubmissionQueue(scq.base(), sqes.base(), p, metrics)
		cq := bindCompletionQueue(scq.base(), p, metrics)
		return mem, sq, cq, nil
	}

	sqRing, err := mapRegion(fd, sys.IORING_OFF_SQ_RING, sqLen)
	if err != nil {
		mem.release()
		return nil, nil, nil, err
	}
	mem.sqRing = sqRing

	cqRing, err := mapRegion(fd, sys.IORING_OFF_CQ_RING, cqLen)
	if err != nil {
		mem.release()
		return nil, nil, nil, err
	}
	mem.cqRing = cqRing

	sq := bindSubmissionQueue(sqRing.base(), sqes.base(), p, metrics)
	cq := bindCompletionQueue(cqRing.base(), p, metrics)
	return mem, sq, cq, nil
}

// Fd returns the ring file descriptor.
func (r *Ring) Fd() int {
	return r.fd
}

// Flags returns the setup flags the ring was built with.
func (r *Ring) Flags() uint32 {
	return r.flags
}

// Features returns the feature bits the kernel granted.
func (r *Ring) Features() uint32 {
	return r.features
}

// Metrics returns the ring's counters.
func (r *Ring) Metrics() *Metrics {
	return r.metrics
}

// Submitter derives a transient submitter handle. It is cheap and stateless;
// derive a fresh one whenever convenient.
func (r *Ring) Submitter() Submitter {
	return Submitter{
		fd:       r.fd,
		flags:    r.flags,
		sq:       r.sq,
		enter:    r.enter,
		register: r.register,
		metrics:  r.metrics,
	}
}

// Submission returns the submission queue view. nil once the ring is closed.
func (r *Ring) Submission() *SubmissionQueue {
	return r.sq
}

// Completion returns the completion queue view. nil once the ring is closed.
func (r *Ring) Completion() *CompletionQueue {
	return r.cq
}

// Split exposes the submitter and both queue views separately, so a caller
// can hold long-lived queue references while re-deriving submitters at will.
func (r *Ring) Split() (Submitter, *SubmissionQueue, *CompletionQueue) {
	return r.Submitter(), r.sq, r.cq
}

// Submit flushes pending submissions and notifies the kernel.
func (r *Ring) Submit() (int, error) {
	if r.closed.Load() {
		return 0, NewError(OpEnter, ErrCodeRingClosed, "ring is closed")
	}
	return r.Submitter().Submit()
}

// SubmitAndWait is Submit plus blocking until want completions are ready.
func (r *Ring) SubmitAndWait(want uint32) (int, error) {
	if r.closed.Load() {
		return 0, NewError(OpEnter, ErrCodeRingClosed, "ring is closed")
	}
	return r.Submitter().SubmitAndWait(want)
}

// Enter is the raw enter escape hatch; see Submitter.Enter.
func (r *Ring) Enter(toSubmit, minComplete, flags uint32, sig *unix.Sigset_t) (int, error) {
	if r.closed.Load() {
		return 0, NewError(OpEnter, ErrCodeRingClosed, "ring is closed")
	}
	return r.Submitter().Enter(toSubmit, minComplete, flags, sig)
}

// Register forwards an auxiliary resource set to the kernel.
func (r *Ring) Register(opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	if r.closed.Load() {
		return NewError(OpRegister, ErrCodeRingClosed, "ring is closed")
	}
	return r.Submitter().Register(opcode, arg, nrArgs)
}

// Unregister releases a previously registered resource set.
func (r *Ring) Unregister(opcode uint32) error {
	if r.closed.Load() {
		return NewError(OpRegister, ErrCodeRingClosed, "ring is closed")
	}
	return r.Submitter().Unregister(opcode)
}

// Close tears the ring down: the queue views are invalidated first, then
// the mappings are released, then the fd is closed. The order is
// load-bearing; unmapping before closing avoids touching a region whose
// backing kernel object is gone. Close is idempotent and never touches a
// queue view after its region is released; unmap failures are best-effort.
func (r *Ring) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.sq = nil
	r.cq = nil
	r.mem.release()
	if err := r.closeFd(r.fd); err != nil {
		r.logger.Debug("close failed", "error", err)
		return WrapError(OpClose, err)
	}
	r.logger.Debug("ring closed")
	return nil
}
