//go:build linux

package uring

import (
	"errors"
	"fmt"
	"syscall"
)

// Operation names used in error context
const (
	OpSetup    = "SETUP"
	OpMmap     = "MMAP"
	OpEnter    = "ENTER"
	OpRegister = "REGISTER"
	OpPush     = "PUSH"
	OpClose    = "CLOSE"
)

// Error represents a structured ring error with context and errno mapping
type Error struct {
	Op    string        // Operation that failed (e.g., "SETUP", "ENTER")
	Code  ErrorCode     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" && e.Errno != 0 {
		return fmt.Sprintf("uring: %s (op=%s errno=%d)", msg, e.Op, int(e.Errno))
	}
	if e.Op != "" {
		return fmt.Sprintf("uring: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("uring: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support against both sentinel and structured errors
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if re, ok := target.(RingError); ok {
		return e.Code == ErrorCode(re)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeSetupFailed       ErrorCode = "ring setup failed"
	ErrCodeMmapFailed        ErrorCode = "ring mmap failed"
	ErrCodeSQFull            ErrorCode = "submission queue full"
	ErrCodeRingClosed        ErrorCode = "ring closed"
	ErrCodeInvalidParameters ErrorCode = "invalid parameters"
	ErrCodeNotSupported      ErrorCode = "kernel does not support io_uring"
	ErrCodePermissionDenied  ErrorCode = "permission denied"
	ErrCodeResourceExhausted ErrorCode = "resources exhausted"
	ErrCodeInterrupted       ErrorCode = "interrupted"
	ErrCodeBusy              ErrorCode = "try again"
	ErrCodeIOError           ErrorCode = "I/O error"
)

// RingError is the sentinel error type for errors.Is matching
type RingError string

func (e RingError) Error() string {
	return string(e)
}

// Sentinel errors
const (
	ErrSQFull            RingError = RingError(ErrCodeSQFull)
	ErrRingClosed        RingError = RingError(ErrCodeRingClosed)
	ErrInvalidParameters RingError = RingError(ErrCodeInvalidParameters)
	ErrNotSupported      RingError = RingError(ErrCodeNotSupported)
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:   op,
		Code: code,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error with errno
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Code:  code,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// WrapError wraps an existing error with ring context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if re, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Code:  re.Code,
			Errno: re.Errno,
			Msg:   re.Msg,
			Inner: re.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Code:  ErrCodeIOError,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// mapErrnoToCode maps syscall errno to ring error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return ErrCodeNotSupported
	case syscall.EPERM, syscall.EACCES:
		return ErrCodePermissionDenied
	case syscall.ENOMEM, syscall.ENFILE, syscall.EMFILE:
		return ErrCodeResourceExhausted
	case syscall.EINTR:
		return ErrCodeInterrupted
	case syscall.EAGAIN, syscall.EBUSY:
		return ErrCodeBusy
	case syscall.EBADF:
		return ErrCodeRingClosed
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var ringErr *Error
	if errors.As(err, &ringErr) {
		return ringErr.Code == code
	}
	if re, ok := err.(RingError); ok {
		return ErrorCode(re) == code
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var ringErr *Error
	if errors.As(err, &ringErr) {
		return ringErr.Errno == errno
	}
	var e syscall.Errno
	if errors.As(err, &e) {
		return e == errno
	}
	return false
}
