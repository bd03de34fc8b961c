package cvfs

import (
	"errors"
	"fmt"
)

// Code classifies the failure kinds a backend, the composer, or the
// operation engine can raise. It plays the same role as worldiety/vfs's
// errno-style Code field on DefaultError, extended to the full taxonomy
// of spec.md §7.
type Code int

const (
	// CodeUnknown is never produced deliberately; seeing it means the
	// cause was a plain error that was wrapped without classification.
	CodeUnknown Code = iota
	CodeNotSupported
	CodePathInvalid
	CodePathTooLong
	CodeNotFound
	CodeFileExists
	CodeDirectoryExists
	CodeEntryExists
	CodeNotEmpty
	CodeUnauthorized
	CodeOutOfDiskSpace
	CodeOptionOperationNotSupported
	CodeCancelled
	CodeIO
	CodeDisposed
	CodeCycleDetected
)

func (c Code) String() string {
	switch c {
	case CodeNotSupported:
		return "not-supported"
	case CodePathInvalid:
		return "path-invalid"
	case CodePathTooLong:
		return "path-too-long"
	case CodeNotFound:
		return "not-found"
	case CodeFileExists:
		return "file-exists"
	case CodeDirectoryExists:
		return "directory-exists"
	case CodeEntryExists:
		return "entry-exists"
	case CodeNotEmpty:
		return "not-empty"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeOutOfDiskSpace:
		return "out-of-disk-space"
	case CodeOptionOperationNotSupported:
		return "option-operation-not-supported"
	case CodeCancelled:
		return "cancelled"
	case CodeIO:
		return "io"
	case CodeDisposed:
		return "disposed"
	case CodeCycleDetected:
		return "cycle-detected"
	default:
		return "unknown"
	}
}

// Error is the single error type raised by this module. It carries an
// operation label, a classified Code, the path it concerns (if any) and
// an optional wrapped cause, the same shape as worldiety/vfs's
// DefaultError{Message, Code, Cause} but with a Path field added since
// nearly every failure here concerns a specific path.
type Error struct {
	Op   string
	Code Code
	Path Path
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Code, e.Err)
		}
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap exposes the cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error. Inside this package the err* helpers below
// cover the common cases.
func NewError(op string, code Code, path Path, cause error) *Error {
	return &Error{Op: op, Code: code, Path: path, Err: cause}
}

// IsCode reports whether err (or any error in its Unwrap chain) is an
// *Error carrying the given Code. Mirrors worldiety/vfs's IsErr
// helper, generalized to our richer Code enum and implemented on top
// of errors.As instead of a manual type switch.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func errNotSupported(op string, path Path) *Error {
	return NewError(op, CodeNotSupported, path, nil)
}

func errNotFound(op string, path Path) *Error {
	return NewError(op, CodeNotFound, path, nil)
}

func errDisposed(op string) *Error {
	return NewError(op, CodeDisposed, "", nil)
}

func errCancelled(op string, path Path) *Error {
	return NewError(op, CodeCancelled, path, nil)
}

func errCycle(op string, path Path) *Error {
	return NewError(op, CodeCycleDetected, path, nil)
}
