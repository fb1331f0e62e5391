package store

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface for interacting with a log-structured key–value store.
// All operations return a *Error (wrapped or bare) on failure.
type IStore interface {
	// Get returns the value of the live entry for key.
	// If no such entry exists an error matching ErrNotFound is returned.
	Get(key string) (value string, err error)
	// Set tombstones the live entry for key (if any) and appends a new live entry.
	// It returns the number of bytes appended to the log.
	Set(key, value string) (written int, err error)
	// Delete tombstones the live entry for key. If there is none an error matching ErrNotFound is returned.
	Delete(key string) (err error)
	// Dump returns all live key–value pairs.
	Dump() (entries map[string]string, err error)
	// Size returns the current length of the backing log in bytes.
	// The value is informational only and is read without taking a lock.
	Size() (size int64, err error)
	// Compact rewrites the log so that it only contains live entries and returns the new size.
	Compact() (size int64, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The underlying cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same return code.
// This allows callers to match on the code only: errors.Is(err, store.ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message wrapping cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  cause,
	}
}

// Sentinel values to match errors by code with errors.Is
var (
	ErrNotFound   = NewError(RetCNotFound, "not found")
	ErrCorruption = NewError(RetCCorruption, "corrupted log")
	ErrEncoding   = NewError(RetCEncoding, "encoding error")
	ErrLock       = NewError(RetCLockError, "lock error")
	ErrIO         = NewError(RetCIOError, "io error")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess       RetCode = iota // 0: Command executed successfully.
	RetCInternalError                // 1: Command failed due to an internal error.
	RetCNotFound                     // 2: The key has no live entry.
	RetCCorruption                   // 3: The log contains a record that cannot be decoded.
	RetCEncoding                     // 4: The key or value cannot be represented in the log format.
	RetCLockError                    // 5: The advisory lock could not be acquired or released.
	RetCIOError                      // 6: Reading or writing the log failed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCNotFound:
		return "NotFound"
	case RetCCorruption:
		return "CorruptionError"
	case RetCEncoding:
		return "EncodingError"
	case RetCLockError:
		return "LockError"
	case RetCIOError:
		return "IOError"
	default:
		return "Unknown"
	}
}
