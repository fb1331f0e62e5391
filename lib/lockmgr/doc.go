// Package lockmgr implements scoped advisory file locks based on flock(2).
// It is the only serialization mechanism of the lKV store: every store
// operation opens its own descriptor on the log file and holds a shared or an
// exclusive lock on it for the whole duration of the operation.
//
// Because flock locks belong to an open file description, two goroutines of
// the same process that each acquire a Lock conflict with each other exactly
// like two independent processes do. The locks are advisory, all participants
// must go through this package (or flock the file themselves) to be
// serialized.
//
// Core Functionality:
//   - Shared locks for readers, any number may be held at the same time
//   - Exclusive locks for writers, excluding all other holders
//   - Non blocking acquisition (TryAcquire) returning ErrWouldBlock
//   - Interrupted system calls (EINTR) are retried transparently
//
// Resource Handling:
//
//	A Lock owns the descriptor it was taken on. Release unlocks and closes the
//	descriptor exactly once and may be deferred directly after a successful
//	Acquire, so the lock is dropped on success, error and panic alike.
//
// Usage Example:
//
//	mgr := lockmgr.NewLockManager("/var/lib/lkv/data.log")
//
//	l, err := mgr.Acquire(lockmgr.Shared)
//	if err != nil {
//		return err
//	}
//	defer l.Release()
//
//	data, err := io.ReadAll(l.File())
//
// The package only builds on unix-like systems, it uses golang.org/x/sys/unix.
package lockmgr
