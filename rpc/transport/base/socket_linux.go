//go:build linux

package base

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ListenBacklog is the backlog of every listening socket
const ListenBacklog = 128

// ListenSocket creates a non-blocking, close-on-exec stream socket, applies
// setup (may be nil), binds it to sa and starts listening. On failure
// everything opened is closed again.
func ListenSocket(domain, proto int, sa unix.Sockaddr, setup func(fd int) error) (int, error) {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	fail := func(step string, err error) (int, error) {
		CloseFd(fd, "listener")
		return -1, fmt.Errorf("%s: %w", step, err)
	}

	if setup != nil {
		if err := setup(fd); err != nil {
			return fail("setup", err)
		}
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, ListenBacklog); err != nil {
		return fail("listen", err)
	}
	return fd, nil
}

// CloseFd closes fd and logs a failure
func CloseFd(fd int, name string) {
	if err := unix.Close(fd); err != nil {
		Logger.Errorf("failed to close %s: %v", name, err)
	}
}
