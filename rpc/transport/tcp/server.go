//go:build linux

package tcp

import (
	"fmt"
	"net"

	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/base"
	"golang.org/x/sys/unix"
)

// serverConnector implements the IServerConnector interface for TCP sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "tcp"
}

func (c *serverConnector) Socket(config common.ServerConfig) (int, net.Addr, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", config.Endpoint)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to resolve %s: %w", config.Endpoint, err)
	}

	domain, sa := toSockaddr(tcpAddr)
	fd, err := base.ListenSocket(domain, unix.IPPROTO_TCP, sa, func(fd int) error {
		return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return -1, nil, fmt.Errorf("failed to listen on %s: %w", config.Endpoint, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		base.CloseFd(fd, "listener")
		return -1, nil, fmt.Errorf("failed to resolve bound address of %s: %w", config.Endpoint, err)
	}
	return fd, fromSockaddr(bound), nil
}

// UpgradeConnection applies socket options to accepted TCP connections.
// Responses are small and interactive, so Nagle's algorithm is disabled.
func (c *serverConnector) UpgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		return err
	}
	return tcpConn.SetKeepAlive(true)
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new TCP server transport listening on config.Endpoint (host:port)
func NewTCPServerTransport(config common.ServerConfig) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, config)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func toSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || addr.IP == nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa
}

func fromSockaddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(append([]byte(nil), a.Addr[:]...)), Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}
