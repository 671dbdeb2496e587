//go:build linux

package uring

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionQueueEmpty(t *testing.T) {
	ring, _ := NewTestRing(4, 8)
	defer ring.Close()

	cq := ring.Completion()
	assert.True(t, cq.IsEmpty())
	assert.Equal(t, uint32(0), cq.Len())

	_, ok := cq.Next()
	assert.False(t, ok)
}

func TestCompletionQueueSingleEntry(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	cq := ring.Completion()
	require.True(t, stub.Complete(42, 128))

	// Exactly one Next returns the entry, the second returns none
	entry, ok := cq.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(42), entry.UserData)
	assert.Equal(t, int32(128), entry.Res)

	_, ok = cq.Next()
	assert.False(t, ok)

	// Another published entry becomes visible again
	stub.Complete(43, 0)
	entry, ok = cq.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(43), entry.UserData)
}

func TestCompletionQueueFIFO(t *testing.T) {
	ring, stub := NewTestRing(8, 8)
	defer ring.Close()

	cq := ring.Completion()
	for i := 0; i < 8; i++ {
		require.True(t, stub.Complete(uint64(i), int32(i)))
	}
	assert.Equal(t, uint32(8), cq.Len())

	for i := 0; i < 8; i++ {
		entry, ok := cq.Next()
		require.True(t, ok)
		assert.Equal(t, uint64(i), entry.UserData)
	}
	_, ok := cq.Next()
	assert.False(t, ok)
}

func TestCompletionQueueSyncFreesSlots(t *testing.T) {
	ring, stub := NewTestRing(4, 4)
	defer ring.Close()

	cq := ring.Completion()
	for i := 0; i < 4; i++ {
		require.True(t, stub.Complete(uint64(i), 0))
	}

	// CQ is full; the kernel cannot post and bumps the overflow counter
	assert.False(t, stub.Complete(99, 0))
	assert.Equal(t, uint32(1), cq.Overflow())

	// Draining without Sync does not free slots on the kernel side
	for i := 0; i < 4; i++ {
		_, ok := cq.Next()
		require.True(t, ok)
	}
	assert.False(t, stub.Complete(100, 0))

	// Sync publishes the consumption, slots are reusable
	cq.Sync()
	assert.True(t, stub.Complete(100, 0))

	// Sync with nothing new consumed is a no-op
	cq.Sync()
	cq.Sync()
	entry, ok := cq.Next()
	require.True(t, ok)
	assert.Equal(t, uint64(100), entry.UserData)
}

func TestCompletionQueueOverflowCounter(t *testing.T) {
	ring, stub := NewTestRing(4, 8)
	defer ring.Close()

	cq := ring.Completion()
	assert.Equal(t, uint32(0), cq.Overflow())

	// A forced drop increases the counter by exactly one and produces
	// no entry
	stub.ForceOverflow()
	assert.Equal(t, uint32(1), cq.Overflow())
	_, ok := cq.Next()
	assert.False(t, ok)
}

func TestCQEntryErr(t *testing.T) {
	assert.NoError(t, CQEntry{Res: 0}.Err())
	assert.NoError(t, CQEntry{Res: 4096}.Err())

	err := CQEntry{Res: -int32(syscall.EINVAL)}.Err()
	require.Error(t, err)
	assert.Equal(t, syscall.EINVAL, err)
}
