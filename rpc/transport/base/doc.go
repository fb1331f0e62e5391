// Package base implements the event loop shared by the socket transports of
// lKV (tcp, unix). Transport specific work is injected with an
// IServerConnector that creates the listening socket and upgrades accepted
// connections.
//
// The event loop is a raw linux epoll set watching exactly two descriptors:
// the non-blocking listening socket and a signal descriptor (see the sigpipe
// package). Accepted sockets are wrapped in a net.Conn and handed to a
// dedicated worker goroutine, so no client can stall the loop or any other
// client. The loop runs through the states INIT, LISTENING and TERMINATED:
// any setup failure is returned from Listen, Listen returns nil once the
// signal handler asks to stop.
//
// Worker protocol:
//
//   - before every request the prompt (default "~> ") is written
//   - each non-empty trimmed line is passed to the registered handler and the
//     response is written followed by a newline
//   - "quit" or "exit" closes the connection without further output
//   - when the client closes its side the worker writes "bye" and exits
//
// Lines are limited to MaxLineLength (1 MiB). A panicking handler only ends
// its own connection. Accept errors that only affect the withdrawn connection
// (EAGAIN, EINTR, ECONNABORTED, EPROTO) are ignored, all others end the loop.
package base
