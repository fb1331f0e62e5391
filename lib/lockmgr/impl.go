package lockmgr

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by TryAcquire if the lock is held in a conflicting mode
var ErrWouldBlock = errors.New("lock is held by another owner")

const (
	fileMode = 0644
)

type lockMgrImpl struct {
	path string
}

// NewLockManager creates a lock manager for the file at path.
// It holds no state besides the path, so any number of managers (in any number
// of processes) may be created for the same file.
func NewLockManager(path string) ILockManager {
	return &lockMgrImpl{
		path: path,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr/interface.go)
// --------------------------------------------------------------------------

func (m *lockMgrImpl) Path() string {
	return m.path
}

func (m *lockMgrImpl) Acquire(mode Mode) (*Lock, error) {
	return m.acquire(mode, 0)
}

func (m *lockMgrImpl) TryAcquire(mode Mode) (*Lock, error) {
	return m.acquire(mode, unix.LOCK_NB)
}

// --------------------------------------------------------------------------
// Lock Methods
// --------------------------------------------------------------------------

// Release drops the lock and closes the underlying descriptor exactly once
func (l *Lock) Release() error {
	if l == nil || l.released {
		return nil
	}
	l.released = true

	unlockErr := retry(func() error {
		return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	})
	closeErr := l.file.Close()

	if unlockErr != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.file.Name(), unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", l.file.Name(), closeErr)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *lockMgrImpl) acquire(mode Mode, flags int) (*Lock, error) {
	how := unix.LOCK_SH
	if mode == Exclusive {
		how = unix.LOCK_EX
	}

	file, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE, fileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", m.path, err)
	}

	// each Lock owns its own open file description, so flock semantics hold
	// between goroutines of this process as well as between processes
	err = retry(func() error {
		return unix.Flock(int(file.Fd()), how|flags)
	})
	if err != nil {
		_ = file.Close()
		if flags&unix.LOCK_NB != 0 && errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("failed to acquire %s lock on %s: %w", mode, m.path, err)
	}

	return &Lock{
		file: file,
		mode: mode,
	}, nil
}
