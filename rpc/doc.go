// Package rpc provides the network layer of lKV: the line protocol server,
// its transports and a client.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures, signal constants and logging.
//
//   - transport: The server transport abstraction with an epoll based event
//     loop (base) and pluggable sockets (tcp, unix), the signal bridge
//     (sigpipe) and the http admin endpoint (http).
//
//   - client: A line protocol client and a store.IStore implementation on
//     top of it.
//
//   - server: The command dispatcher and the server tying transport, store
//     and signal policy together.
package rpc
