//go:build linux

package uring

import "github.com/ehrlich-b/go-uring/internal/sys"

// Params is the build-time configuration record for a ring. Toggles are
// consumed exactly once by the setup syscall, which then overwrites the
// record in place with the kernel's negotiated values: actual entry counts,
// granted feature bits and the ring offset tables.
type Params struct {
	p sys.Params
}

// NewParams returns an empty configuration record.
func NewParams() *Params {
	return &Params{}
}

// SetupIOPoll requests busy-polled completions instead of interrupt driven
// ones. Completions must then be reaped through the enter syscall.
func (p *Params) SetupIOPoll() *Params {
	p.p.Flags |= sys.IORING_SETUP_IOPOLL
	return p
}

// SetupSQPoll requests a kernel thread that polls the submission queue, so
// the process can submit without entering the kernel. idleMillis is how long
// the thread keeps polling an empty queue before it sleeps and starts
// requiring a wakeup through enter.
func (p *Params) SetupSQPoll(idleMillis uint32) *Params {
	p.p.Flags |= sys.IORING_SETUP_SQPOLL
	p.p.SQThreadIdle = idleMillis
	return p
}

// SetupSQPollCPU pins the polling kernel thread to cpu. Only meaningful
// combined with SetupSQPoll.
func (p *Params) SetupSQPollCPU(cpu uint32) *Params {
	p.p.Flags |= sys.IORING_SETUP_SQ_AFF
	p.p.SQThreadCPU = cpu
	return p
}

// SetupCQSize overrides the completion queue size independently of the
// submission queue. The kernel rounds n up to a power of two.
func (p *Params) SetupCQSize(n uint32) *Params {
	p.p.Flags |= sys.IORING_SETUP_CQSIZE
	p.p.CQEntries = n
	return p
}

// SetupClamp asks the kernel to clamp oversized entry counts to its maximum
// instead of failing setup.
func (p *Params) SetupClamp() *Params {
	p.p.Flags |= sys.IORING_SETUP_CLAMP
	return p
}

// SetupAttachWQ shares the async backend of an existing ring identified by
// its fd instead of creating a new one.
func (p *Params) SetupAttachWQ(fd int) *Params {
	p.p.Flags |= sys.IORING_SETUP_ATTACH_WQ
	p.p.WQFd = uint32(fd)
	return p
}

// Build creates the ring, consuming this record.
func (p *Params) Build(entries uint32) (*Ring, error) {
	return NewWithParams(entries, p)
}

// SQEntries returns the negotiated submission queue size. Valid after build.
func (p *Params) SQEntries() uint32 {
	return p.p.SQEntries
}

// CQEntries returns the negotiated completion queue size. Valid after build.
func (p *Params) CQEntries() uint32 {
	return p.p.CQEntries
}

// Flags returns the setup flags as sent to the kernel.
func (p *Params) Flags() uint32 {
	return p.p.Flags
}

// Features returns the feature bits the kernel actually granted, which may
// exceed or fall short of what was requested.
func (p *Params) Features() uint32 {
	return p.p.Features
}

// FeatSingleMmap reports whether the kernel maps both ring headers into one
// region.
func (p *Params) FeatSingleMmap() bool {
	return p.p.Features&sys.IORING_FEAT_SINGLE_MMAP != 0
}

// FeatNoDrop reports whether the kernel never drops completions on CQ
// overflow.
func (p *Params) FeatNoDrop() bool {
	return p.p.Features&sys.IORING_FEAT_NODROP != 0
}

// FeatSubmitStable reports whether submitted entry data may be reused as
// soon as the tail is published.
func (p *Params) FeatSubmitStable() bool {
	return p.p.Features&sys.IORING_FEAT_SUBMIT_STABLE != 0
}
