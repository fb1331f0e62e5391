//go:build linux

package base

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/sigpipe"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"
)

var Logger = logger.GetLogger("transport")

const maxEvents = 16

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Socket creates a non-blocking, listening socket for config.Endpoint and
	// returns its descriptor and the bound address
	Socket(config common.ServerConfig) (fd int, addr net.Addr, err error)

	// UpgradeConnection applies transport specific options to an accepted connection
	UpgradeConnection(conn net.Conn) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the epoll based event loop shared by all socket transports
type serverTransport struct {
	connector  IServerConnector
	config     common.ServerConfig
	handler    transport.ServerHandleFunc
	onSignal   transport.SignalHandleFunc
	conns      *xsync.MapOf[uint64, net.Conn]
	nextConnID atomic.Uint64
	addrMu     sync.RWMutex
	addr       net.Addr
	ready      chan struct{}
	readyOnce  sync.Once
	started    atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new server transport listening on the socket created by connector
func NewBaseServerTransport(connector IServerConnector, config common.ServerConfig) transport.IRPCServerTransport {
	if config.Prompt == "" {
		config.Prompt = common.DefaultPrompt
	}
	return &serverTransport{
		connector: connector,
		config:    config,
		conns:     xsync.NewMapOf[uint64, net.Conn](),
		ready:     make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) RegisterSignalHandler(handler transport.SignalHandleFunc) {
	t.onSignal = handler
}

func (t *serverTransport) Addr() net.Addr {
	t.addrMu.RLock()
	defer t.addrMu.RUnlock()
	return t.addr
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) ActiveConnections() int {
	return t.conns.Size()
}

func (t *serverTransport) Listen(signalFd int) error {
	if t.handler == nil {
		return errors.New("no request handler registered")
	}
	if !t.started.CompareAndSwap(false, true) {
		return errors.New("transport is already listening")
	}

	// INIT
	listenFd, bound, err := t.connector.Socket(t.config)
	if err != nil {
		return fmt.Errorf("failed to create %s listener: %w", t.connector.GetName(), err)
	}
	defer CloseFd(listenFd, "listener")

	epollFd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("failed to create epoll set: %w", err)
	}
	defer CloseFd(epollFd, "epoll set")

	if err := epollAdd(epollFd, listenFd); err != nil {
		return fmt.Errorf("failed to register listener: %w", err)
	}
	if err := epollAdd(epollFd, signalFd); err != nil {
		return fmt.Errorf("failed to register signal descriptor: %w", err)
	}

	// LISTENING
	t.setAddr(bound)
	defer t.setAddr(nil)
	t.readyOnce.Do(func() { close(t.ready) })
	Logger.Infof("%s transport listening on %s", t.connector.GetName(), bound)

	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(epollFd, events, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll wait failed: %w", err)
		}

		for i := 0; i < n; i++ {
			switch int(events[i].Fd) {
			case signalFd:
				stop, err := t.handleSignal(signalFd)
				if err != nil {
					return err
				}
				if stop {
					// TERMINATED: running connections are not drained
					Logger.Infof("event loop stopped, %d connection(s) still open", t.conns.Size())
					return nil
				}
			case listenFd:
				if err := t.accept(listenFd); err != nil {
					return err
				}
			}
		}
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) setAddr(addr net.Addr) {
	t.addrMu.Lock()
	defer t.addrMu.Unlock()
	t.addr = addr
}

// handleSignal reads one pending signal and passes it to the signal handler
func (t *serverTransport) handleSignal(fd int) (bool, error) {
	sig, ok, err := sigpipe.Read(fd)
	if err != nil {
		return false, fmt.Errorf("failed to read signal descriptor: %w", err)
	}
	if !ok {
		return false, nil
	}

	if t.onSignal == nil {
		Logger.Warningf("ignoring signal %v, no signal handler registered", sig)
		return false, nil
	}
	return t.onSignal(sig), nil
}

// accept accepts one pending connection and starts its worker
func (t *serverTransport) accept(listenFd int) error {
	connFd, _, err := unix.Accept4(listenFd, unix.SOCK_CLOEXEC)
	if err != nil {
		if isTransientAcceptError(err) {
			Logger.Debugf("transient accept error: %v", err)
			return nil
		}
		return fmt.Errorf("accept failed: %w", err)
	}

	// net.FileConn duplicates the descriptor, the original is closed right away
	f := os.NewFile(uintptr(connFd), t.connector.GetName()+"-conn")
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		Logger.Errorf("failed to set up accepted connection: %v", err)
		return nil
	}

	if err := t.connector.UpgradeConnection(conn); err != nil {
		Logger.Warningf("failed to upgrade connection: %v", err)
	}

	id := t.nextConnID.Add(1)
	t.conns.Store(id, conn)
	go t.serve(id, conn)

	return nil
}

func epollAdd(epollFd, fd int) error {
	return unix.EpollCtl(epollFd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	})
}

// isTransientAcceptError reports whether an accept failure only affects the
// withdrawn connection and the loop should continue
func isTransientAcceptError(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EPROTO)
}
