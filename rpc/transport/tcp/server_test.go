//go:build linux

package tcp

import (
	"io"
	"net"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ValentinKolb/lKV/rpc/client"
	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/base"
	"github.com/ValentinKolb/lKV/rpc/transport/sigpipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type testServer struct {
	transport transport.IRPCServerTransport
	signalW   int
	done      chan error
	stopped   atomic.Bool
}

func echoHandler(line string) string {
	return "echo:" + line
}

func terminateOnly(sig syscall.Signal) bool {
	return common.IsTerminateSignal(sig)
}

// startServer runs a transport on a random port. Signals are injected
// through a private pipe instead of the process signal handlers.
func startServer(t *testing.T, handler transport.ServerHandleFunc, onSignal transport.SignalHandleFunc) *testServer {
	t.Helper()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC))

	tr := NewTCPServerTransport(common.ServerConfig{Endpoint: "127.0.0.1:0"})
	tr.RegisterHandler(handler)
	tr.RegisterSignalHandler(onSignal)

	ts := &testServer{transport: tr, signalW: fds[1], done: make(chan error, 1)}
	go func() { ts.done <- tr.Listen(fds[0]) }()

	select {
	case <-tr.Ready():
	case err := <-ts.done:
		t.Fatalf("listen returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("transport did not become ready")
	}

	t.Cleanup(func() {
		ts.stop(t)
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return ts
}

func (ts *testServer) signal(t *testing.T, sig syscall.Signal) {
	require.NoError(t, sigpipe.Write(ts.signalW, sig))
}

// stop terminates the event loop and returns the result of Listen
func (ts *testServer) stop(t *testing.T) error {
	if !ts.stopped.CompareAndSwap(false, true) {
		return nil
	}
	ts.signal(t, syscall.SIGTERM)
	select {
	case err := <-ts.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("event loop did not stop")
		return nil
	}
}

func (ts *testServer) dial(t *testing.T) *client.Conn {
	t.Helper()
	conn, err := client.Dial(common.ClientConfig{
		Endpoint:      ts.transport.Addr().String(),
		TimeoutSecond: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRequestResponse(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)
	conn := ts.dial(t)

	resp, err := conn.Do("hello world")
	require.NoError(t, err)
	assert.Equal(t, "echo:hello world", resp)

	// surrounding whitespace is trimmed
	resp, err = conn.Do("   padded \t")
	require.NoError(t, err)
	assert.Equal(t, "echo:padded", resp)

	// blank lines only produce a new prompt
	resp, err = conn.Do("   ")
	require.NoError(t, err)
	assert.Equal(t, "", resp)
}

func TestQuitAndExitCloseSilently(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)

	for _, verb := range []string{"quit", "exit", "  quit  "} {
		conn := ts.dial(t)
		resp, err := conn.Do(verb)
		assert.ErrorIs(t, err, io.EOF, verb)
		assert.Equal(t, "", resp, verb)
	}
}

func TestHangupWritesFarewell(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)
	conn := ts.dial(t)

	resp, err := conn.Hangup()
	require.NoError(t, err)
	assert.Equal(t, "bye", resp)
}

func TestFinalLineWithoutNewline(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)

	conn, err := net.Dial("tcp", ts.transport.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = io.WriteString(conn, "ping")
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	out, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "~> echo:ping\nbye\n", string(out))
}

func TestPanicEndsOnlyItsConnection(t *testing.T) {
	ts := startServer(t, func(line string) string {
		if line == "boom" {
			panic("boom")
		}
		return echoHandler(line)
	}, terminateOnly)

	healthy := ts.dial(t)
	failing := ts.dial(t)

	_, err := failing.Do("boom")
	assert.ErrorIs(t, err, io.EOF)

	resp, err := healthy.Do("still here")
	require.NoError(t, err)
	assert.Equal(t, "echo:still here", resp)
}

func TestLineTooLong(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)
	conn := ts.dial(t)

	_, err := conn.Do(strings.Repeat("x", base.MaxLineLength+1))
	assert.Error(t, err)

	// the server keeps serving other clients
	resp, err := ts.dial(t).Do("ok")
	require.NoError(t, err)
	assert.Equal(t, "echo:ok", resp)
}

func TestConcurrentClients(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)

	const clients = 16
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		conn := ts.dial(t)
		go func() {
			for j := 0; j < 50; j++ {
				resp, err := conn.Do("ping")
				if err == nil && resp != "echo:ping" {
					err = io.ErrUnexpectedEOF
				}
				if err != nil {
					errs <- err
					return
				}
			}
			errs <- nil
		}()
	}
	for i := 0; i < clients; i++ {
		require.NoError(t, <-errs)
	}
}

func TestActiveConnections(t *testing.T) {
	ts := startServer(t, echoHandler, terminateOnly)

	conn := ts.dial(t)
	assert.Eventually(t, func() bool { return ts.transport.ActiveConnections() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Quit())
	assert.Eventually(t, func() bool { return ts.transport.ActiveConnections() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSignalsReachHandler(t *testing.T) {
	received := make(chan syscall.Signal, 4)
	ts := startServer(t, echoHandler, func(sig syscall.Signal) bool {
		received <- sig
		return common.IsTerminateSignal(sig)
	})

	ts.signal(t, syscall.SIGUSR1)
	select {
	case sig := <-received:
		assert.Equal(t, syscall.SIGUSR1, sig)
	case <-time.After(5 * time.Second):
		t.Fatal("signal not delivered")
	}

	// the loop keeps accepting after a non terminating signal
	resp, err := ts.dial(t).Do("after signal")
	require.NoError(t, err)
	assert.Equal(t, "echo:after signal", resp)

	addr := ts.transport.Addr().String()
	require.NoError(t, ts.stop(t))
	assert.Equal(t, syscall.SIGTERM, <-received)
	assert.Nil(t, ts.transport.Addr())

	// the listener is closed once the loop stopped
	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestListenRequiresHandler(t *testing.T) {
	tr := NewTCPServerTransport(common.ServerConfig{Endpoint: "127.0.0.1:0"})
	assert.Error(t, tr.Listen(-1))
}

func TestListenRejectsBadEndpoint(t *testing.T) {
	tr := NewTCPServerTransport(common.ServerConfig{Endpoint: "not-an-endpoint"})
	tr.RegisterHandler(echoHandler)
	assert.Error(t, tr.Listen(-1))
}
