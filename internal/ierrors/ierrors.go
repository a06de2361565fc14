// Package ierrors implements the core's error taxonomy: a small set of
// kinds that the coordinator and destination queues branch on, each
// wrapping an underlying cause.
package ierrors

import (
	"errors"
	"fmt"
	"os"
)

// Kind classifies an error into one of the categories the core's
// retry/skip rules branch on.
type Kind int

// The error kinds named in the spec's propagation policy.
const (
	KindUnknown Kind = iota
	KindCancelled
	KindNotFound
	KindIO
	KindChecksumMismatch
	KindQuotaOrSpace
	KindPermission
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindCancelled:
		return "cancelled"
	case KindNotFound:
		return "not_found"
	case KindIO:
		return "io"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	case KindQuotaOrSpace:
		return "quota_or_space"
	case KindPermission:
		return "permission"
	case KindPolicy:
		return "policy"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every core package.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}

	return e.Msg
}

// Unwrap lets errors.Is/errors.As, and github.com/pkg/errors.Cause, see through the wrapper.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, ierrors.Cancelled()) without caring about Msg.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}

	return false
}

func newErr(k Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Cancelled reports a cooperative cancellation observed at a suspension point.
func Cancelled() *Error { return &Error{Kind: KindCancelled, Msg: "cancelled"} }

// NotFound wraps a missing-path condition.
func NotFound(format string, args ...interface{}) *Error {
	return newErr(KindNotFound, nil, format, args...)
}

// IO wraps an OS-level read/write/copy/remove failure.
func IO(cause error, format string, args ...interface{}) *Error {
	return newErr(KindIO, cause, format, args...)
}

// ChecksumMismatch reports a verification digest that didn't match the manifest.
func ChecksumMismatch(format string, args ...interface{}) *Error {
	return newErr(KindChecksumMismatch, nil, format, args...)
}

// QuotaOrSpace wraps a destination write rejected for space reasons.
func QuotaOrSpace(cause error, format string, args ...interface{}) *Error {
	return newErr(KindQuotaOrSpace, cause, format, args...)
}

// Permission wraps a read/write/metadata permission denial.
func Permission(cause error, format string, args ...interface{}) *Error {
	return newErr(KindPermission, cause, format, args...)
}

// Policy reports a deliberate refusal to act (e.g. tagged-source-as-destination).
func Policy(format string, args ...interface{}) *Error {
	return newErr(KindPolicy, nil, format, args...)
}

// IsCancelled reports whether err is (or wraps) a Cancelled error.
func IsCancelled(err error) bool {
	return Is(err, KindCancelled)
}

// Is reports whether err is (or wraps) an *Error of the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}

	return false
}

// FromOS classifies a raw OS error into the closest taxonomy kind. It is
// used at the boundary where the core calls into package os and needs to
// turn a generic error into one its retry rules understand.
func FromOS(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}

	switch {
	case os.IsNotExist(err):
		return newErr(KindNotFound, err, format, args...)
	case os.IsPermission(err):
		return newErr(KindPermission, err, format, args...)
	case isOutOfSpace(err):
		return newErr(KindQuotaOrSpace, err, format, args...)
	default:
		return newErr(KindIO, err, format, args...)
	}
}
