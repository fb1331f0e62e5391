//go:build linux

package unix

import (
	"fmt"
	"net"
	"os"

	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/base"
	xunix "golang.org/x/sys/unix"
)

// serverConnector implements the IServerConnector interface for Unix sockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "unix"
}

func (c *serverConnector) Socket(config common.ServerConfig) (int, net.Addr, error) {
	socketPath := config.Endpoint

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return -1, nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	fd, err := base.ListenSocket(xunix.AF_UNIX, 0, &xunix.SockaddrUnix{Name: socketPath}, nil)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}

	return fd, &net.UnixAddr{Name: socketPath, Net: "unix"}, nil
}

func (c *serverConnector) UpgradeConnection(net.Conn) error {
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixServerTransport creates a new Unix server transport listening on the socket path config.Endpoint
func NewUnixServerTransport(config common.ServerConfig) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, config)
}
