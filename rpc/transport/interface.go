package transport

import (
	"net"
	"syscall"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles one request line.
// It is called by a server transport for every non-empty line a client sends
// (except the quit / exit commands) and returns the response line without its
// trailing newline. It must be safe for concurrent use.
type ServerHandleFunc func(line string) (resp string)

// SignalHandleFunc is called on the event loop for every OS signal that was
// delivered through the signal descriptor. Returning true stops the event loop.
type SignalHandleFunc func(sig syscall.Signal) (stop bool)

// IRPCServerTransport is the interface for the server side transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler called for every request line
	RegisterHandler(handler ServerHandleFunc)
	// RegisterSignalHandler registers the handler called for every pending signal
	RegisterSignalHandler(handler SignalHandleFunc)
	// Listen binds the configured endpoint and runs the event loop until the
	// signal handler asks it to stop. signalFd must become readable whenever a
	// signal is pending (see the sigpipe package).
	Listen(signalFd int) error
	// Addr returns the bound address, or nil if the transport is not listening
	Addr() net.Addr
	// Ready returns a channel that is closed once the transport accepts connections
	Ready() <-chan struct{}
	// ActiveConnections returns the number of connections with a running worker
	ActiveConnections() int
}
