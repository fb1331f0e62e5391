package server

import (
	"net/http"
	"syscall"

	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	httpTransport "github.com/ValentinKolb/lKV/rpc/transport/http"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, a transport, the adapter handling the request lines and
// the store the adapter operates on.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(config),
//		server.NewIStoreServerAdapter(),
//		lstore.NewLogStore(config.FilePath),
//	)
//
//	if err := s.Start(pipe.Fd()); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	adapter IRPCServerAdapter,
	store store.IStore,
) *RPCServer {
	s := &RPCServer{
		config:    config,
		transport: transport,
		adapter:   adapter,
		store:     store,
		metrics:   metrics.NewSet(),
	}

	s.compactions = s.metrics.NewCounter("lkv_compactions_total")
	s.compactionErrors = s.metrics.NewCounter("lkv_compaction_errors_total")
	s.metrics.NewGauge("lkv_connections_active", func() float64 {
		return float64(transport.ActiveConnections())
	})
	s.metrics.NewGauge("lkv_log_size_bytes", func() float64 {
		size, err := store.Size()
		if err != nil {
			return 0
		}
		return float64(size)
	})

	Logger.Infof("Created RPC Server")
	return s
}

// RPCServer connects a transport to a store through an adapter and owns the
// signal policy of the event loop
type RPCServer struct {
	config           common.ServerConfig
	transport        transport.IRPCServerTransport
	adapter          IRPCServerAdapter
	store            store.IStore
	metrics          *metrics.Set
	compactions      *metrics.Counter
	compactionErrors *metrics.Counter
}

// Start registers the handlers and runs the transport until a terminate signal
// is read from signalFd. If an http endpoint is configured it is served for
// the lifetime of the call.
func (s *RPCServer) Start(signalFd int) error {
	Logger.Infof("%s", s.config.String())

	s.transport.RegisterHandler(s.handleLine)
	s.transport.RegisterSignalHandler(s.handleSignal)

	if s.config.HTTPEndpoint != "" {
		endpoint := s.HTTPEndpoint()
		if err := endpoint.Start(); err != nil {
			return err
		}
		defer func() {
			if err := endpoint.Close(); err != nil {
				Logger.Warningf("failed to close http endpoint: %v", err)
			}
		}()
	}

	return s.transport.Listen(signalFd)
}

// HTTPEndpoint returns a new, not yet started http endpoint serving the
// metrics of the server and the command route
func (s *RPCServer) HTTPEndpoint() *httpTransport.Endpoint {
	endpoint := httpTransport.NewHttpEndpoint(s.config)
	endpoint.HandleCommand(s.handleLine)
	endpoint.HandleMetrics(s.MetricsHandler())
	return endpoint
}

// MetricsHandler returns the http handler serving all server metrics
func (s *RPCServer) MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		metrics.WritePrometheus(w, true)
		s.metrics.WritePrometheus(w)
		s.adapter.WritePrometheus(w)
	})
}

func (s *RPCServer) handleLine(line string) string {
	return s.adapter.Handle(line, s.store)
}

// handleSignal runs on the event loop. Compaction is synchronous, so no
// connection is accepted while it runs.
func (s *RPCServer) handleSignal(sig syscall.Signal) bool {
	switch {
	case common.IsTerminateSignal(sig):
		Logger.Infof("received %v, shutting down", sig)
		return true
	case sig == common.CompactSignal:
		size, err := s.store.Compact()
		if err != nil {
			s.compactionErrors.Inc()
			Logger.Errorf("compaction failed: %v", err)
			return false
		}
		s.compactions.Inc()
		Logger.Infof("compacted log to %d bytes", size)
	default:
		Logger.Warningf("ignoring unexpected signal %v", sig)
	}
	return false
}
