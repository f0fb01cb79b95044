// Package status classifies the errors returned by the statement bridge and the storage tier.
// An error carries a Code; wrapping an error with more context keeps its Code.
package status

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type Code int

const (
	Unknown Code = iota
	NotFound
	Corruption
	InvalidArgument
	NotSupported
	IllegalState
	InternalError
	AlreadyPresent
	TryAgain
	TimedOut
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "Not found"
	case Corruption:
		return "Corruption"
	case InvalidArgument:
		return "Invalid argument"
	case NotSupported:
		return "Not implemented"
	case IllegalState:
		return "Illegal state"
	case InternalError:
		return "Internal error"
	case AlreadyPresent:
		return "Already present"
	case TryAgain:
		return "Try again"
	case TimedOut:
		return "Timed out"
	}
	return "Unknown"
}

type Error struct {
	code  Code
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.cause)
}

func (e *Error) Code() Code {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Cause() error {
	return e.cause
}

func newf(code Code, format string, args ...interface{}) error {
	return &Error{
		code:  code,
		cause: errors.NewWithDepthf(2, format, args...),
	}
}

func Newf(code Code, format string, args ...interface{}) error {
	return newf(code, format, args...)
}

func NotFoundf(format string, args ...interface{}) error {
	return newf(NotFound, format, args...)
}

func Corruptionf(format string, args ...interface{}) error {
	return newf(Corruption, format, args...)
}

func InvalidArgumentf(format string, args ...interface{}) error {
	return newf(InvalidArgument, format, args...)
}

func NotSupportedf(format string, args ...interface{}) error {
	return newf(NotSupported, format, args...)
}

func IllegalStatef(format string, args ...interface{}) error {
	return newf(IllegalState, format, args...)
}

func AlreadyPresentf(format string, args ...interface{}) error {
	return newf(AlreadyPresent, format, args...)
}

func TryAgainf(format string, args ...interface{}) error {
	return newf(TryAgain, format, args...)
}

// Annotate attaches code to err, keeping err in the chain.
func Annotate(code Code, err error, format string, args ...interface{}) error {
	return &Error{
		code:  code,
		cause: errors.Wrapf(err, format, args...),
	}
}

// CodeOf returns the code of the outermost status error in err's chain. Assertion failures
// are reported as InternalError.
func CodeOf(err error) Code {
	if err == nil {
		return Unknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.code
	}
	if errors.HasAssertionFailure(err) {
		return InternalError
	}
	return Unknown
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return Is(err, NotFound)
}

// IsRetryable reports whether the caller may retry the operation that produced err. Only the
// storage tier produces retryable errors; this package never retries on its own.
func IsRetryable(err error) bool {
	code := CodeOf(err)
	return code == TryAgain || code == TimedOut
}
