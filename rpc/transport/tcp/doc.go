// Package tcp implements the TCP socket transport of the lKV line protocol.
// It provides the TCP specific implementation of the base package's
// connector interface, the event loop and the connection workers live in base.
//
// The listening socket is created with SO_REUSEADDR. Accepted connections
// have Nagle's algorithm disabled and TCP keep-alive enabled.
//
// An endpoint with port 0 binds a random free port, the chosen address is
// available through Addr once the transport is ready.
package tcp
