//go:build linux

package uring

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-uring/internal/sys"
)

func TestRingLayoutSizing(t *testing.T) {
	// entries=8 negotiated to sq_entries=8, cq_entries=16
	p := stubParams(8, 16)
	sqLen, cqLen, sqeLen := ringLayout(&p)

	assert.Equal(t, int(p.SQOff.Array)+8*4, sqLen)
	assert.Equal(t, int(p.CQOff.CQEs)+16*16, cqLen)
	assert.Equal(t, 8*64, sqeLen)

	// Under the single-mmap feature the combined region is sized to the
	// larger of the two rings, plus the separate entry-array region
	assert.Equal(t, cqLen, max(sqLen, cqLen))
}

func TestRingFullCycleScenario(t *testing.T) {
	ring, stub := NewTestRing(8, 16)
	defer ring.Close()

	sq := ring.Submission()
	for i := 0; i < 8; i++ {
		require.NoError(t, sq.Push(&SQEntry{Opcode: 0, UserData: uint64(1000 + i)}))
	}

	// 9th push fails with the full-queue condition
	err := sq.Push(&SQEntry{UserData: 9999})
	require.True(t, errors.Is(err, ErrSQFull))

	// Submit flushes the tail; accepted count equals 8
	n, err := ring.Submit()
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	// The kernel-side test double completes all 8
	for i := 0; i < 8; i++ {
		require.True(t, stub.CompleteNext(0))
	}

	// All 8 drain in original push order; the 9th Next returns none
	cq := ring.Completion()
	for i := 0; i < 8; i++ {
		entry, ok := cq.Next()
		require.True(t, ok)
		assert.Equal(t, uint64(1000+i), entry.UserData)
	}
	_, ok := cq.Next()
	assert.False(t, ok)
	cq.Sync()
}

func TestRingRoundTripUserData(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	const tag = uint64(0xdeadbeefcafe)
	require.NoError(t, ring.Submission().Push(&SQEntry{UserData: tag}))

	n, err := ring.Submit()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.True(t, stub.CompleteNext(512))
	entry, ok := ring.Completion().Next()
	require.True(t, ok)
	assert.Equal(t, tag, entry.UserData)
	assert.Equal(t, int32(512), entry.Res)
	assert.NoError(t, entry.Err())
}

func TestRingTeardownOrdering(t *testing.T) {
	ring, stub := NewTestRing(4, 8)

	require.NoError(t, ring.Close())

	// Views are invalidated, every region is unmapped, and the fd is
	// closed strictly last
	assert.Nil(t, ring.Submission())
	assert.Nil(t, ring.Completion())
	require.Equal(t, []string{"unmap:cq", "unmap:sq", "unmap:sqes", "close"}, stub.Teardown)

	// Double close is a safe no-op
	require.NoError(t, ring.Close())
	assert.Len(t, stub.Teardown, 4)
}

func TestRingClosedOperations(t *testing.T) {
	ring, _ := NewTestRing(4, 8)
	require.NoError(t, ring.Close())

	_, err := ring.Submit()
	assert.True(t, errors.Is(err, ErrRingClosed))
	_, err = ring.SubmitAndWait(1)
	assert.True(t, errors.Is(err, ErrRingClosed))
	assert.True(t, errors.Is(ring.Register(RegisterBuffers, nil, 0), ErrRingClosed))
}

func TestSubmitAndWaitRequestsEvents(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	require.NoError(t, ring.Submission().Push(&SQEntry{UserData: 1}))
	stub.AutoComplete = true

	n, err := ring.SubmitAndWait(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, stub.EnterCalls, 1)
	call := stub.EnterCalls[0]
	assert.Equal(t, uint32(1), call[0], "to_submit")
	assert.Equal(t, uint32(1), call[1], "min_complete")
	assert.NotZero(t, call[2]&sys.IORING_ENTER_GETEVENTS, "GETEVENTS requested")

	entry, ok := ring.Completion().Next()
	require.True(t, ok)
	assert.Equal(t, uint64(1), entry.UserData)
}

func TestSubmitSQPollSkipsSyscall(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()
	ring.flags = sys.IORING_SETUP_SQPOLL

	require.NoError(t, ring.Submission().Push(&SQEntry{UserData: 1}))

	// Kernel thread is awake: no enter syscall needed, entries are
	// picked up by polling
	n, err := ring.Submit()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, stub.EnterCalls)
	assert.Equal(t, 1, stub.Consume(4))
}

func TestSubmitSQPollWakeup(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()
	ring.flags = sys.IORING_SETUP_SQPOLL

	stub.SetSQFlags(sys.IORING_SQ_NEED_WAKEUP)
	require.NoError(t, ring.Submission().Push(&SQEntry{UserData: 1}))

	// Idle polling thread: enter must carry the wakeup flag or the ring
	// silently starves
	_, err := ring.Submit()
	require.NoError(t, err)
	require.Len(t, stub.EnterCalls, 1)
	assert.NotZero(t, stub.EnterCalls[0][2]&sys.IORING_ENTER_SQ_WAKEUP)
}

func TestSubmitterEnterError(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	require.NoError(t, ring.Submission().Push(&SQEntry{UserData: 1}))
	stub.EnterErr = syscall.EAGAIN

	_, err := ring.Submit()
	require.Error(t, err)
	assert.True(t, IsErrno(err, syscall.EAGAIN))
	assert.True(t, IsCode(err, ErrCodeBusy))

	// The failure is recoverable: the retry succeeds
	n, err := ring.Submit()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterPassThrough(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	require.NoError(t, ring.Register(RegisterBuffers, nil, 0))
	require.NoError(t, ring.Unregister(UnregisterBuffers))
	assert.Equal(t, []uint32{RegisterBuffers, UnregisterBuffers}, stub.RegisterCalls)

	stub.RegisterErr = syscall.EFAULT
	err := ring.Register(RegisterFiles, nil, 0)
	require.Error(t, err)
	assert.True(t, IsErrno(err, syscall.EFAULT))
}

func TestRingSplit(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	submitter, sq, cq := ring.Split()
	require.NoError(t, sq.Push(&SQEntry{UserData: 7}))

	n, err := submitter.Submit()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stub.CompleteNext(0)
	entry, ok := cq.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(7), entry.UserData)

	// Submitters are re-derivable at will and interchangeable
	other := ring.Submitter()
	assert.Equal(t, submitter.fd, other.fd)
}

func TestRingMetrics(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	sq := ring.Submission()
	for i := 0; i < 4; i++ {
		require.NoError(t, sq.Push(&SQEntry{UserData: uint64(i)}))
	}
	require.Error(t, sq.Push(&SQEntry{UserData: 99}))

	_, err := ring.Submit()
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		stub.CompleteNext(0)
	}
	for {
		if _, ok := ring.Completion().Next(); !ok {
			break
		}
	}

	snap := ring.Metrics().Snapshot()
	assert.Equal(t, uint64(4), snap.Pushed)
	assert.Equal(t, uint64(1), snap.SQFullEvents)
	assert.Equal(t, uint64(4), snap.Submitted)
	assert.Equal(t, uint64(4), snap.Reaped)
	assert.Equal(t, uint64(1), snap.EnterCalls)
	assert.Equal(t, uint64(0), snap.Waits)
}
