package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/http")

// maxBodySize bounds the request line of POST /command
const maxBodySize = 1 << 20

// NewHttpEndpoint creates the http admin endpoint listening on config.HTTPEndpoint
func NewHttpEndpoint(config common.ServerConfig) *Endpoint {
	return &Endpoint{
		config: config,
		mux:    http.NewServeMux(),
	}
}

// Endpoint serves the admin routes of a server next to the line protocol:
//
//	GET  /metrics  prometheus metrics
//	POST /command  one request line as body, the response as plain text
type Endpoint struct {
	config   common.ServerConfig
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
}

// HandleCommand registers the handler of POST /command
func (e *Endpoint) HandleCommand(handler transport.ServerHandleFunc) {
	e.handle("POST /command", func(w http.ResponseWriter, r *http.Request) {
		handleCommand(handler, w, r)
	})
}

// HandleMetrics registers the handler of GET /metrics
func (e *Endpoint) HandleMetrics(handler http.Handler) {
	e.handle("GET /metrics", handler.ServeHTTP)
}

// Handler returns the router of all registered routes
func (e *Endpoint) Handler() http.Handler {
	return e.mux
}

// Start binds the endpoint and serves it in the background
func (e *Endpoint) Start() error {
	listener, err := net.Listen("tcp", e.config.HTTPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on http endpoint %s: %w", e.config.HTTPEndpoint, err)
	}
	e.listener = listener
	e.server = &http.Server{
		Handler:           e.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("http endpoint stopped: %v", err)
		}
	}()

	Logger.Infof("Starting HTTP endpoint on http://%s", listener.Addr())
	return nil
}

// Addr returns the bound address, or nil before Start
func (e *Endpoint) Addr() net.Addr {
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// Close stops the endpoint
func (e *Endpoint) Close() error {
	if e.server == nil {
		return nil
	}
	return e.server.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (e *Endpoint) handle(pattern string, handler http.HandlerFunc) {
	if e.config.LogLevel == "debug" {
		handler = loggerMiddleware(handler)
	}
	e.mux.HandleFunc(pattern, handler)
}

// handleCommand passes the request body as one line to handler and writes the response
func handleCommand(handler transport.ServerHandleFunc, w http.ResponseWriter, r *http.Request) {
	// Read request body
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	defer r.Body.Close()

	// Check if body could be read
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}

	line := strings.TrimSpace(string(body))
	if line == "" || strings.ContainsAny(line, "\r\n") {
		http.Error(w, "Body must be a single request line", http.StatusBadRequest)
		return
	}

	// Write response
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err = io.WriteString(w, handler(line)+"\n"); err != nil {
		Logger.Warningf("failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	}
}
