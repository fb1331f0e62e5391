//go:build linux

package sigpipe

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
)

var Logger = logger.GetLogger("sigpipe")

// Pipe turns OS signal deliveries into readable bytes on a descriptor.
// Every delivered signal is written as one byte (the signal number) to the
// write end, the read end can be registered in an epoll set.
type Pipe struct {
	readFd  int
	writeFd int
	sigCh   chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a pipe that becomes readable whenever one of sigs is delivered.
// The signals are no longer handled by their default action until Close is called.
func New(sigs ...os.Signal) (*Pipe, error) {
	if len(sigs) == 0 {
		return nil, errors.New("sigpipe: no signals given")
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("sigpipe: failed to create pipe: %w", err)
	}

	p := &Pipe{
		readFd:  fds[0],
		writeFd: fds[1],
		sigCh:   make(chan os.Signal, 16),
		done:    make(chan struct{}),
	}

	signal.Notify(p.sigCh, sigs...)

	// the forwarding goroutine is the only owner of the write end
	p.wg.Add(1)
	go p.forward()

	return p, nil
}

// Fd returns the read end of the pipe
func (p *Pipe) Fd() int {
	return p.readFd
}

// Close stops the signal subscription and closes both ends of the pipe.
// It is safe to call Close more than once.
func (p *Pipe) Close() error {
	var err error
	p.once.Do(func() {
		signal.Stop(p.sigCh)
		close(p.done)
		p.wg.Wait()

		err = errors.Join(unix.Close(p.writeFd), unix.Close(p.readFd))
	})
	return err
}

// forward writes one byte per received signal into the pipe
func (p *Pipe) forward() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		case sig := <-p.sigCh:
			s, ok := sig.(syscall.Signal)
			if !ok || s <= 0 || s > 255 {
				Logger.Warningf("dropping signal %v, it cannot be forwarded", sig)
				continue
			}
			if err := Write(p.writeFd, s); err != nil {
				Logger.Errorf("failed to forward signal %v: %v", sig, err)
			}
		}
	}
}

// --------------------------------------------------------------------------
// Wire helpers (shared by the writer and the event loop)
// --------------------------------------------------------------------------

// Write writes sig as a single byte to fd, retrying interrupted calls.
func Write(fd int, sig syscall.Signal) error {
	buf := []byte{byte(sig)}
	for {
		_, err := unix.Write(fd, buf)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return err
	}
}

// Read reads the next pending signal from fd.
// The boolean is false if no signal is pending (the descriptor is non-blocking).
// An error is returned if the write end was closed or reading failed.
func Read(fd int) (syscall.Signal, bool, error) {
	buf := make([]byte, 1)
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, false, nil
		case err != nil:
			return 0, false, err
		case n == 0:
			return 0, false, errors.New("sigpipe: write end closed")
		}
		return syscall.Signal(buf[0]), true, nil
	}
}
