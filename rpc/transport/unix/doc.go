// Package unix implements the lKV line protocol over Unix domain sockets for
// clients running on the same machine.
//
// This package provides the Unix socket specific connector of the base
// package, the event loop and the workers are shared with the tcp transport.
// The endpoint is the socket path, an existing file at that path is removed
// before binding.
package unix
