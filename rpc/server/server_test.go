//go:build linux

package server

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/ValentinKolb/lKV/lib/codec"
	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/ValentinKolb/lKV/lib/store/lstore"
	"github.com/ValentinKolb/lKV/rpc/client"
	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/sigpipe"
	"github.com/ValentinKolb/lKV/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type runningServer struct {
	server    *RPCServer
	transport transport.IRPCServerTransport
	store     store.IStore
	signalW   int
	stopped   chan struct{}
	err       error
}

func startRPCServer(t *testing.T) *runningServer {
	t.Helper()

	fds := make([]int, 2)
	require.NoError(t, unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC))

	config := common.ServerConfig{
		FilePath: filepath.Join(t.TempDir(), "lkv.log"),
		Endpoint: "127.0.0.1:0",
		Prompt:   common.DefaultPrompt,
		LogLevel: "error",
	}
	tr := tcp.NewTCPServerTransport(config)
	s := lstore.NewLogStore(config.FilePath)

	rs := &runningServer{
		server:    NewRPCServer(config, tr, NewIStoreServerAdapter(), s),
		transport: tr,
		store:     s,
		signalW:   fds[1],
		stopped:   make(chan struct{}),
	}
	go func() {
		rs.err = rs.server.Start(fds[0])
		close(rs.stopped)
	}()

	select {
	case <-tr.Ready():
	case <-rs.stopped:
		t.Fatalf("server stopped early: %v", rs.err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() {
		_ = sigpipe.Write(fds[1], syscall.SIGTERM)
		select {
		case <-rs.stopped:
		case <-time.After(5 * time.Second):
		}
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return rs
}

func (rs *runningServer) client(t *testing.T) *client.RPCStore {
	t.Helper()
	c, err := client.NewRPCStore(common.ClientConfig{
		Endpoint:      rs.transport.Addr().String(),
		TimeoutSecond: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestServerRoundTrip(t *testing.T) {
	rs := startRPCServer(t)
	c := rs.client(t)

	n, err := c.Set("a", "1")
	require.NoError(t, err)
	assert.Equal(t, codec.EncodedLen("a", "1"), n)

	value, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	_, err = c.Get("missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = c.Set("b", "two")
	require.NoError(t, err)
	require.NoError(t, c.Delete("a"))
	assert.ErrorIs(t, c.Delete("a"), store.ErrNotFound)

	dump, err := c.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "two"}, dump)

	size, err := c.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(codec.EncodedLen("a", "1")+codec.EncodedLen("b", "two")), size)

	size, err = c.Compact()
	require.NoError(t, err)
	assert.Equal(t, int64(codec.EncodedLen("b", "two")), size)
}

func TestServerClientsShareTheLog(t *testing.T) {
	rs := startRPCServer(t)
	first := rs.client(t)
	second := rs.client(t)

	_, err := first.Set("shared", "value")
	require.NoError(t, err)

	value, err := second.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	// the store used by the server sees the same file
	value, err = rs.store.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestServerCompactsOnSignal(t *testing.T) {
	rs := startRPCServer(t)
	c := rs.client(t)

	for i := 0; i < 5; i++ {
		_, err := c.Set("k", "v")
		require.NoError(t, err)
	}
	before, err := rs.store.Size()
	require.NoError(t, err)
	require.Equal(t, int64(5*codec.EncodedLen("k", "v")), before)

	require.NoError(t, sigpipe.Write(rs.signalW, common.CompactSignal))

	assert.Eventually(t, func() bool {
		size, err := rs.store.Size()
		return err == nil && size == int64(codec.EncodedLen("k", "v"))
	}, 5*time.Second, 10*time.Millisecond)

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestServerStopsOnTerminateSignal(t *testing.T) {
	for _, sig := range common.TerminateSignals {
		rs := startRPCServer(t)
		require.NoError(t, sigpipe.Write(rs.signalW, sig))

		select {
		case <-rs.stopped:
			assert.NoError(t, rs.err, sig.String())
		case <-time.After(5 * time.Second):
			t.Fatalf("server did not stop on %v", sig)
		}
	}
}

func TestServerIgnoresOtherSignals(t *testing.T) {
	rs := startRPCServer(t)
	require.NoError(t, sigpipe.Write(rs.signalW, syscall.SIGHUP))

	// still serving
	_, err := rs.client(t).Set("a", "1")
	require.NoError(t, err)
}

func TestServerMetrics(t *testing.T) {
	rs := startRPCServer(t)
	c := rs.client(t)

	_, err := c.Set("a", "1")
	require.NoError(t, err)
	_, err = c.Get("missing")
	require.Error(t, err)

	require.NoError(t, sigpipe.Write(rs.signalW, common.CompactSignal))

	assert.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		rs.server.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		body := rec.Body.String()
		return containsAll(body,
			`lkv_commands_total{verb="set"} 1`,
			`lkv_command_errors_total{verb="get"} 1`,
			`lkv_compactions_total 1`,
			`lkv_connections_active 1`,
			`lkv_log_size_bytes 11`,
		)
	}, 5*time.Second, 20*time.Millisecond)
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestServerHTTPCommandRoute(t *testing.T) {
	rs := startRPCServer(t)
	handler := rs.server.HTTPEndpoint().Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/command", strings.NewReader("set x 1")))
	assert.Equal(t, "wrote x=1. 11 bytes\n", rec.Body.String())

	// the line protocol sees the write
	value, err := rs.client(t).Get("x")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `lkv_commands_total{verb="set"} 1`)
}

func TestServerClientRejectsUnsafeArguments(t *testing.T) {
	rs := startRPCServer(t)
	c := rs.client(t)

	_, err := c.Set("b", "2")
	require.NoError(t, err)

	_, err = c.Set("a", "hello world")
	assert.ErrorIs(t, err, store.ErrEncoding)
	_, err = c.Set("a\nb", "1")
	assert.ErrorIs(t, err, store.ErrEncoding)
	_, err = c.Set("", "1")
	assert.ErrorIs(t, err, store.ErrEncoding)
	_, err = c.Get("x\ndelete b")
	assert.ErrorIs(t, err, store.ErrEncoding)
	assert.ErrorIs(t, c.Delete("b\tc"), store.ErrEncoding)

	// nothing reached the server
	dump, err := c.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, dump)
}

func TestServerGetReturnsAnyWord(t *testing.T) {
	rs := startRPCServer(t)
	c := rs.client(t)

	_, err := c.Set("k", "unrecognized")
	require.NoError(t, err)

	value, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "unrecognized", value)
}

func TestServerRejectsInvalidUTF8(t *testing.T) {
	rs := startRPCServer(t)

	conn, err := client.Dial(common.ClientConfig{
		Endpoint:      rs.transport.Addr().String(),
		TimeoutSecond: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := conn.Do("set a 1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp, "wrote "), resp)

	resp, err = conn.Do("set \xff v")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp, "error: "), resp)

	// valid requests keep working
	resp, err = conn.Do("set b 2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp, "wrote "), resp)

	dump, err := rs.store.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, dump)
}
