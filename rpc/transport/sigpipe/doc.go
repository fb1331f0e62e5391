// Package sigpipe bridges asynchronous OS signal delivery into a descriptor
// that can be multiplexed together with sockets (the self-pipe technique).
//
// New subscribes to the given signals with signal.Notify and starts a single
// goroutine that owns the write end of a non-blocking pipe. Each delivery is
// written as one byte holding the signal number. The read end (Fd) becomes
// readable exactly when at least one signal is pending and can be passed to an
// event loop, which decodes it with Read.
//
// There is no package-level state: the write end is handed to the forwarding
// goroutine once at construction and is closed by Close.
//
// Usage Example:
//
//	p, err := sigpipe.New(syscall.SIGUSR1, syscall.SIGTERM)
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	// register p.Fd() for EPOLLIN, then on readiness:
//	sig, ok, err := sigpipe.Read(p.Fd())
package sigpipe
