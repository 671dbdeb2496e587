//go:build linux

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uring/internal/sys"
)

// enterFunc issues io_uring_enter. Replaceable so the test double can stand
// in for the kernel.
type enterFunc func(fd int, toSubmit, minComplete, flags uint32, sig *unix.Sigset_t) (int, error)

// registerFunc issues io_uring_register, replaceable for the same reason.
type registerFunc func(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error

// Submitter is a cheap stateless handle over the ring fd, the setup flags
// and the submission queue. Derive one from the Ring whenever needed; it is
// the only component that issues the enter and register syscalls.
type Submitter struct {
	fd       int
	flags    uint32
	sq       *SubmissionQueue
	enter    enterFunc
	register registerFunc
	metrics  *Metrics
}

// sqNeedsEnter decides whether submitting requires a kernel transition.
// Under SQPOLL the kernel polls the queue itself and enter is only needed
// to wake its idle thread; skipping the wakeup there starves the ring.
func (s Submitter) sqNeedsEnter(submitted uint32, flags *uint32) bool {
	if submitted == 0 {
		return false
	}
	if s.flags&sys.IORING_SETUP_SQPOLL == 0 {
		return true
	}
	if s.sq.NeedWakeup() {
		*flags |= sys.IORING_ENTER_SQ_WAKEUP
		return true
	}
	return false
}

// cqNeedsEnter reports whether completions must be reaped through enter:
// always under IOPOLL, and whenever the kernel flagged a CQ overflow.
func (s Submitter) cqNeedsEnter() bool {
	return s.flags&sys.IORING_SETUP_IOPOLL != 0 || s.sq.CQOverflow()
}

// Submit publishes any unpublished submissions and notifies the kernel.
// Returns the number of entries the kernel accepted; partial acceptance is
// a normal return, not an error.
func (s Submitter) Submit() (int, error) {
	return s.submit(0, nil)
}

// SubmitAndWait is Submit plus blocking until want completions are ready or
// a signal interrupts the syscall. want of zero behaves like Submit.
func (s Submitter) SubmitAndWait(want uint32) (int, error) {
	return s.submit(want, nil)
}

// SubmitAndWaitSig applies sig for the duration of the blocking wait,
// letting a caller arrange a bounded wait via an interrupting signal.
func (s Submitter) SubmitAndWaitSig(want uint32, sig *unix.Sigset_t) (int, error) {
	return s.submit(want, sig)
}

func (s Submitter) submit(want uint32, sig *unix.Sigset_t) (int, error) {
	submitted := s.sq.flush()

	flags := uint32(0)
	if want > 0 || s.cqNeedsEnter() {
		flags |= sys.IORING_ENTER_GETEVENTS
	}
	if !s.sqNeedsEnter(submitted, &flags) && flags&sys.IORING_ENTER_GETEVENTS == 0 {
		// Kernel-side polling picks the entries up on its own.
		return int(submitted), nil
	}

	s.metrics.EnterCalls.Add(1)
	if want > 0 {
		s.metrics.Waits.Add(1)
	}
	n, err := s.enter(s.fd, submitted, want, flags, sig)
	if err != nil {
		s.metrics.EnterErrors.Add(1)
		return 0, WrapError(OpEnter, err)
	}
	s.metrics.Submitted.Add(uint64(n))
	return n, nil
}

// Enter is the raw escape hatch around io_uring_enter. The caller is
// responsible for flag correctness; prefer Submit/SubmitAndWait.
func (s Submitter) Enter(toSubmit, minComplete, flags uint32, sig *unix.Sigset_t) (int, error) {
	n, err := s.enter(s.fd, toSubmit, minComplete, flags, sig)
	if err != nil {
		return 0, WrapError(OpEnter, err)
	}
	return n, nil
}

// Register forwards an auxiliary resource set to the kernel. The argument
// shape is dictated by the opcode and opaque to this layer.
func (s Submitter) Register(opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	if err := s.register(s.fd, opcode, arg, nrArgs); err != nil {
		return WrapError(OpRegister, err)
	}
	return nil
}

// Unregister releases a previously registered resource set.
func (s Submitter) Unregister(opcode uint32) error {
	return s.Register(opcode, nil, 0)
}
