//go:build linux

package uring

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uring/internal/logging"
	"github.com/ehrlich-b/go-uring/internal/sys"
)

// KernelStub plays the kernel side of the ring protocol against heap-backed
// regions: it consumes published submissions, posts completions, and bumps
// the loss counters. It lets the queue protocol, the submit paths and the
// teardown ordering be tested without an io_uring-capable kernel.
type KernelStub struct {
	mu sync.Mutex

	params sys.Params

	// shared counters, resolved through the same offset table the views use
	sqHead    *uint32
	sqTail    *uint32
	sqDropped *uint32
	sqArray   unsafe.Pointer
	sqes      unsafe.Pointer

	sqFlags *uint32

	cqHead     *uint32
	cqTail     *uint32
	cqOverflow *uint32
	cqes       unsafe.Pointer

	// Submitted collects entries in kernel consumption order.
	Submitted []SQEntry

	// EnterCalls records (toSubmit, minComplete, flags) per enter invocation.
	EnterCalls [][3]uint32

	// RegisterCalls records the opcode of each register invocation.
	RegisterCalls []uint32

	// EnterErr, when set, is returned by the next enter call.
	EnterErr error

	// RegisterErr, when set, is returned by register calls.
	RegisterErr error

	// AutoComplete makes enter immediately complete every consumed entry
	// with result AutoRes, echoing the user data.
	AutoComplete bool
	AutoRes      int32

	// Teardown records the release sequence ("unmap:sq", "unmap:cq",
	// "unmap:sqes", "close") for ordering assertions.
	Teardown []string
}

// Fabricated ring header layouts. Positions are arbitrary on purpose: the
// views must go through the offset table, never an assumed layout.
func stubParams(sqEntries, cqEntries uint32) sys.Params {
	return sys.Params{
		SQEntries: sqEntries,
		CQEntries: cqEntries,
		SQOff: sys.SQRingOffsets{
			Head:        0,
			Tail:        4,
			RingMask:    8,
			RingEntries: 12,
			Flags:       16,
			Dropped:     20,
			Array:       24,
		},
		CQOff: sys.CQRingOffsets{
			Head:        0,
			Tail:        4,
			RingMask:    8,
			RingEntries: 12,
			Overflow:    16,
			Flags:       20,
			CQEs:        24,
		},
	}
}

// NewTestRing builds a fully wired Ring over anonymous memory plus the
// KernelStub driving its kernel side. Entry counts must be powers of two.
// The returned Ring behaves exactly like a real one except that no syscalls
// are issued; Close releases the heap regions in the real teardown order.
func NewTestRing(sqEntries, cqEntries uint32) (*Ring, *KernelStub) {
	if sqEntries == 0 || sqEntries&(sqEntries-1) != 0 ||
		cqEntries == 0 || cqEntries&(cqEntries-1) != 0 {
		panic("uring: test ring entries must be powers of two")
	}

	p := stubParams(sqEntries, cqEntries)
	sqLen, cqLen, sqeLen := ringLayout(&p)

	stub := &KernelStub{params: p}

	sqRing := heapRegion(sqLen)
	sqRing.unmapFn = stub.recordUnmap("unmap:sq")
	cqRing := heapRegion(cqLen)
	cqRing.unmapFn = stub.recordUnmap("unmap:cq")
	sqes := heapRegion(sqeLen)
	sqes.unmapFn = stub.recordUnmap("unmap:sqes")

	// Initialize the ring headers the way the kernel does at setup
	*(*uint32)(unsafe.Add(sqRing.base(), p.SQOff.RingMask)) = sqEntries - 1
	*(*uint32)(unsafe.Add(sqRing.base(), p.SQOff.RingEntries)) = sqEntries
	*(*uint32)(unsafe.Add(cqRing.base(), p.CQOff.RingMask)) = cqEntries - 1
	*(*uint32)(unsafe.Add(cqRing.base(), p.CQOff.RingEntries)) = cqEntries

	stub.sqHead = (*uint32)(unsafe.Add(sqRing.base(), p.SQOff.Head))
	stub.sqTail = (*uint32)(unsafe.Add(sqRing.base(), p.SQOff.Tail))
	stub.sqFlags = (*uint32)(unsafe.Add(sqRing.base(), p.SQOff.Flags))
	stub.sqDropped = (*uint32)(unsafe.Add(sqRing.base(), p.SQOff.Dropped))
	stub.sqArray = unsafe.Add(sqRing.base(), p.SQOff.Array)
	stub.sqes = sqes.base()
	stub.cqHead = (*uint32)(unsafe.Add(cqRing.base(), p.CQOff.Head))
	stub.cqTail = (*uint32)(unsafe.Add(cqRing.base(), p.CQOff.Tail))
	stub.cqOverflow = (*uint32)(unsafe.Add(cqRing.base(), p.CQOff.Overflow))
	stub.cqes = unsafe.Add(cqRing.base(), p.CQOff.CQEs)

	metrics := newMetrics()
	ring := &Ring{
		fd:       -1,
		params:   p,
		mem:      &memoryMap{sqRing: sqRing, cqRing: cqRing, sqes: sqes},
		sq:       bindSubmissionQueue(sqRing.base(), sqes.base(), &p, metrics),
		cq:       bindCompletionQueue(cqRing.base(), &p, metrics),
		enter:    stub.enter,
		register: stub.register,
		closeFd:  stub.closeFd,
		metrics:  metrics,
		logger:   logging.Default().WithRing(-1),
	}
	return ring, stub
}

func (k *KernelStub) recordUnmap(step string) func([]byte) error {
	return func([]byte) error {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.Teardown = append(k.Teardown, step)
		return nil
	}
}

func (k *KernelStub) closeFd(int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Teardown = append(k.Teardown, "close")
	return nil
}

// enter stands in for io_uring_enter: it consumes up to toSubmit published
// entries in ring order and optionally auto-completes them.
func (k *KernelStub) enter(fd int, toSubmit, minComplete, flags uint32, sig *unix.Sigset_t) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.EnterCalls = append(k.EnterCalls, [3]uint32{toSubmit, minComplete, flags})
	if k.EnterErr != nil {
		err := k.EnterErr
		k.EnterErr = nil
		return 0, err
	}
	consumed := k.consumeLocked(toSubmit)
	if k.AutoComplete {
		for _, e := range k.Submitted[len(k.Submitted)-consumed:] {
			k.postLocked(CQEntry{UserData: e.UserData, Res: k.AutoRes})
		}
	}
	return consumed, nil
}

func (k *KernelStub) register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.RegisterCalls = append(k.RegisterCalls, opcode)
	return k.RegisterErr
}

func (k *KernelStub) consumeLocked(limit uint32) int {
	mask := k.params.SQEntries - 1
	consumed := 0
	for uint32(consumed) < limit {
		head := atomic.LoadUint32(k.sqHead)
		if head == atomic.LoadUint32(k.sqTail) {
			break
		}
		idx := *(*uint32)(unsafe.Add(k.sqArray, uintptr(head&mask)*unsafe.Sizeof(uint32(0))))
		entry := *(*SQEntry)(unsafe.Add(k.sqes, uintptr(idx)*unsafe.Sizeof(SQEntry{})))
		k.Submitted = append(k.Submitted, entry)
		atomic.StoreUint32(k.sqHead, head+1)
		consumed++
	}
	return consumed
}

func (k *KernelStub) postLocked(entry CQEntry) bool {
	tail := atomic.LoadUint32(k.cqTail)
	if tail-atomic.LoadUint32(k.cqHead) >= k.params.CQEntries {
		atomic.AddUint32(k.cqOverflow, 1)
		return false
	}
	mask := k.params.CQEntries - 1
	*(*CQEntry)(unsafe.Add(k.cqes, uintptr(tail&mask)*unsafe.Sizeof(CQEntry{}))) = entry
	atomic.StoreUint32(k.cqTail, tail+1)
	return true
}

// Consume drains up to limit published submissions without an enter call,
// the way a kernel-side polling thread would.
func (k *KernelStub) Consume(limit uint32) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.consumeLocked(limit)
}

// Complete posts one completion. Returns false, bumping the overflow
// counter, when the completion ring is full.
func (k *KernelStub) Complete(userData uint64, res int32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.postLocked(CQEntry{UserData: userData, Res: res})
}

// CompleteNext completes the oldest consumed submission not yet completed,
// echoing its user data. Returns false when nothing is pending.
func (k *KernelStub) CompleteNext(res int32) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.Submitted) == 0 {
		return false
	}
	entry := k.Submitted[0]
	k.Submitted = k.Submitted[1:]
	return k.postLocked(CQEntry{UserData: entry.UserData, Res: res})
}

// ForceOverflow simulates a completion the kernel could not enqueue.
func (k *KernelStub) ForceOverflow() {
	k.mu.Lock()
	defer k.mu.Unlock()
	atomic.AddUint32(k.cqOverflow, 1)
}

// DropSubmission simulates the kernel discarding a malformed submission.
func (k *KernelStub) DropSubmission() {
	k.mu.Lock()
	defer k.mu.Unlock()
	atomic.AddUint32(k.sqDropped, 1)
}

// SetSQFlags overwrites the shared SQ status word (e.g. to signal
// IORING_SQ_NEED_WAKEUP under a simulated SQPOLL setup).
func (k *KernelStub) SetSQFlags(flags uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	atomic.StoreUint32(k.sqFlags, flags)
}
