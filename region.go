//go:build linux

package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/go-uring/internal/logging"
	"github.com/ehrlich-b/go-uring/internal/sys"
)

// region owns one memory span shared with the kernel. Ring views borrow
// pointers into it and must be dropped before the region is unmapped.
type region struct {
	data     []byte
	unmapFn  func([]byte) error // nil for heap-backed test regions
	unmapped bool
}

// mapRegion maps length bytes of the ring identified by fd at one of the
// fixed IORING_OFF_* offsets.
func mapRegion(fd int, offset uint64, length int) (*region, error) {
	data, err := unix.Mmap(fd, int64(offset), length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return nil, WrapError(OpMmap, err)
	}
	return &region{data: data, unmapFn: unix.Munmap}, nil
}

// heapRegion allocates an anonymous region with the same contract as a
// kernel mapping. Used by the in-process test double.
func heapRegion(length int) *region {
	return &region{data: make([]byte, length)}
}

func (r *region) base() unsafe.Pointer {
	return unsafe.Pointer(&r.data[0])
}

func (r *region) size() int {
	return len(r.data)
}

// unmap releases the mapping exactly once. Unmap failure is not actionable
// during teardown; it is logged and swallowed.
func (r *region) unmap() {
	if r == nil || r.unmapped {
		return
	}
	r.unmapped = true
	if r.unmapFn != nil {
		if err := r.unmapFn(r.data); err != nil {
			logging.Default().Debug("munmap failed", "error", err)
		}
	}
	r.data = nil
}

// memoryMap holds the ring mappings for one instance. Under
// IORING_FEAT_SINGLE_MMAP the completion ring shares the submission ring
// region and cqRing stays nil.
type memoryMap struct {
	sqRing *region
	sqes   *region
	cqRing *region
}

// release unmaps everything, idempotently. Queue views must already be
// invalidated when this runs.
func (m *memoryMap) release() {
	m.cqRing.unmap()
	m.sqRing.unmap()
	m.sqes.unmap()
}

// ringLayout computes the byte length of each mapping from the negotiated
// offset table: each ring spans up to its last field plus the entry array.
func ringLayout(p *sys.Params) (sqLen, cqLen, sqeLen int) {
	sqLen = int(p.SQOff.Array) + int(p.SQEntries)*int(unsafe.Sizeof(uint32(0)))
	cqLen = int(p.CQOff.CQEs) + int(p.CQEntries)*int(unsafe.Sizeof(CQEntry{}))
	sqeLen = int(p.SQEntries) * int(unsafe.Sizeof(SQEntry{}))
	return
}
