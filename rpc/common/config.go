package common

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// --------------------------------------------------------------------------
// Signals
// --------------------------------------------------------------------------

var (
	// CompactSignal requests a compaction of the log from the event loop
	CompactSignal = syscall.SIGUSR1
	// TerminateSignals stop the event loop
	TerminateSignals = []syscall.Signal{syscall.SIGTERM, syscall.SIGINT}
)

// ServerSignals returns all signals the server subscribes to
func ServerSignals() []os.Signal {
	sigs := []os.Signal{CompactSignal}
	for _, sig := range TerminateSignals {
		sigs = append(sigs, sig)
	}
	return sigs
}

// IsTerminateSignal reports whether sig stops the server
func IsTerminateSignal(sig syscall.Signal) bool {
	for _, s := range TerminateSignals {
		if s == sig {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the lKV server.
type ServerConfig struct {
	// FilePath is the path of the log file backing the store
	FilePath string

	// Transport selects the socket type of the line protocol (tcp or unix)
	Transport string

	// Endpoint is the host:port (tcp) or socket path (unix) the line protocol listens on
	Endpoint string

	// Prompt is written before every read on a connection
	Prompt string

	// HTTPEndpoint is the host:port of the http admin endpoint serving
	// /metrics and /command (empty = disabled)
	HTTPEndpoint string

	// Logging configuration
	LogLevel string
}

const (
	DefaultPrompt    = "~> "
	DefaultEndpoint  = "localhost:8080"
	DefaultFilePath  = "lkv.log"
	DefaultTransport = TransportTCP

	TransportTCP  = "tcp"
	TransportUnix = "unix"
)

// ValidateTransport returns an error if name is not a known transport
func ValidateTransport(name string) error {
	switch name {
	case TransportTCP, TransportUnix:
		return nil
	default:
		return fmt.Errorf("invalid transport %s (expected %s or %s)", name, TransportTCP, TransportUnix)
	}
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Server settings
	addSection("Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Prompt", fmt.Sprintf("%q", c.Prompt))

	// Storage
	addSection("Storage")
	addField("Log File", c.FilePath)

	// Signals
	addSection("Signals")
	addField("Compact", CompactSignal.String())
	var names []string
	for _, sig := range TerminateSignals {
		names = append(names, sig.String())
	}
	addField("Terminate", strings.Join(names, ", "))

	// HTTP admin endpoint
	addSection("HTTP")
	if c.HTTPEndpoint == "" {
		addField("Endpoint", "disabled")
	} else {
		addField("Endpoint", c.HTTPEndpoint)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a line protocol client
type ClientConfig struct {
	Transport     string
	Endpoint      string
	TimeoutSecond int
	Prompt        string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("\nCLIENT CONFIGURATION\n")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
