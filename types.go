//go:build linux

package uring

import (
	"syscall"
	"unsafe"
)

// SQEntry must match kernel struct io_uring_sqe exactly (64 bytes). The queue
// stores entries verbatim; beyond the generic fields below their meaning
// belongs to the opcode in use.
//
//	struct io_uring_sqe {
//	  __u8  opcode;    // type of operation
//	  __u8  flags;     // IOSQE_* flags
//	  __u16 ioprio;    // ioprio for the request
//	  __s32 fd;        // file descriptor to do IO on
//	  __u64 off;       // offset into file
//	  __u64 addr;      // pointer to buffer or iovecs
//	  __u32 len;       // buffer size or number of iovecs
//	  __u32 opcode_flags;
//	  __u64 user_data; // data to be passed back at completion time
//	  ...              // buf_index/personality/splice union, addr3, pad
//	};
type SQEntry struct {
	Opcode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpFlags     uint32
	UserData    uint64
	BufIndex    uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_pad2       uint64
}

// CQEntry must match kernel struct io_uring_cqe exactly (16 bytes).
//
//	struct io_uring_cqe {
//	  __u64 user_data; // sqe->user_data submission passed back
//	  __s32 res;       // result code for this event
//	  __u32 flags;
//	};
type CQEntry struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

// Compile-time size checks - entries are copied into ring slots by value
var (
	_ [64]byte = [unsafe.Sizeof(SQEntry{})]byte{}
	_ [16]byte = [unsafe.Sizeof(CQEntry{})]byte{}
)

// Reset zeroes the entry so a pooled SQEntry can be reused safely.
func (e *SQEntry) Reset() {
	*e = SQEntry{}
}

// Err maps a negative completion result to the corresponding errno.
// A non-negative result returns nil.
func (c CQEntry) Err() error {
	if c.Res < 0 {
		return syscall.Errno(-c.Res)
	}
	return nil
}
