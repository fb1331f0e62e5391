// Package transport defines the interfaces for the server side transport of
// lKV. A transport owns the listening socket and the event loop, hands every
// request line to a ServerHandleFunc and every pending OS signal to a
// SignalHandleFunc.
//
// Key Components:
//
//   - IRPCServerTransport: Interface for server-side transport implementations.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - SignalHandleFunc: Function type for signal handling callbacks, run on the
//     event loop itself.
//
// Implementations:
//   - base: epoll based accept/signal loop with one goroutine per connection
//   - tcp, unix: socket connectors for the base event loop
//   - sigpipe: the bridge turning OS signals into a pollable descriptor
//   - http: the admin endpoint (metrics, single commands) next to the line protocol
package transport
