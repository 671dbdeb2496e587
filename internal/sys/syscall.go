//go:build linux

package sys

import (
	"errors"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Setup issues io_uring_setup(2). On success the kernel has written the
// negotiated entry counts, feature bits and offset tables into params, and
// the returned fd refers to the new ring instance.
func Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := syscall.RawSyscall(
		SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0,
	)
	if errno != 0 {
		return -1, os.NewSyscallError("io_uring_setup", errno)
	}
	return int(fd), nil
}

// Enter issues io_uring_enter(2). A nil sig leaves the signal mask untouched.
// The returned count is the number of submissions the kernel consumed, which
// may be less than toSubmit.
func Enter(fd int, toSubmit, minComplete, flags uint32, sig *unix.Sigset_t) (int, error) {
	var sigptr uintptr
	if sig != nil {
		sigptr = uintptr(unsafe.Pointer(sig))
	}
	n, _, errno := syscall.Syscall6(
		SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		sigptr,
		uintptr(NSIG/8),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// Register issues io_uring_register(2), retrying on EINTR. The argument is
// opaque to this layer; its shape is dictated by the opcode.
func Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	for {
		_, _, errno := syscall.RawSyscall6(
			SYS_IO_URING_REGISTER,
			uintptr(fd),
			uintptr(opcode),
			uintptr(arg),
			uintptr(nrArgs),
			0, 0,
		)
		if errno == 0 {
			return nil
		}
		if errors.Is(errno, syscall.EINTR) {
			continue
		}
		return os.NewSyscallError("io_uring_register", errno)
	}
}
