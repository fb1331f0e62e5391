package lockmgr

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsRetryable reports whether err is a transient syscall failure (interrupted call)
// after which the same operation may simply be issued again.
func IsRetryable(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// retry runs fn until it returns nil or an error that is not retryable
func retry(fn func() error) error {
	for {
		err := fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
	}
}
