package lockmgr

import (
	"os"
)

// Mode selects the kind of advisory lock to take on a file
type Mode int

const (
	// Shared allows any number of concurrent shared holders
	Shared Mode = iota
	// Exclusive excludes every other holder, shared or exclusive
	Exclusive
)

func (m Mode) String() string {
	switch m {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// ILockManager hands out scoped advisory locks on a single file path.
type ILockManager interface {
	// Acquire opens the file (creating it if absent) and blocks until a lock of the given mode is held.
	Acquire(mode Mode) (*Lock, error)
	// TryAcquire is like Acquire but returns ErrWouldBlock instead of waiting for a conflicting holder.
	TryAcquire(mode Mode) (*Lock, error)
	// Path returns the path of the locked file
	Path() string
}

// Lock is a held advisory lock together with the descriptor it was taken on.
// Release must be called on every exit path, it is safe to call it more than once.
//
// Usage:
//
//	l, err := mgr.Acquire(lockmgr.Exclusive)
//	if err != nil {
//		return err
//	}
//	defer l.Release()
type Lock struct {
	file     *os.File
	mode     Mode
	released bool
}

// File returns the open file the lock is held on.
// The file must not be closed by the caller; use Release instead.
func (l *Lock) File() *os.File {
	return l.file
}

// Mode returns the mode the lock was acquired with
func (l *Lock) Mode() Mode {
	return l.mode
}
