// Package common provides the configuration structures and utilities shared by
// the lKV server, its transports and its clients.
//
// The package focuses on:
//   - Configuration structures for client and server components
//   - The signals the server reacts to (compaction request, termination)
//   - Custom logging implementation integrated with dragonboat's logger package
//
// Key Components:
//
//   - ServerConfig: log file path, transport, listen endpoint, prompt, http endpoint and
//     log level of a server. String renders it for the startup log.
//
//   - ClientConfig: endpoint and timeout of a line protocol client.
//
//   - Signals: CompactSignal (SIGUSR1) triggers a compaction on the event loop,
//     TerminateSignals (SIGTERM, SIGINT) stop it.
//
//   - Logger: a logger.ILogger implementation producing "LEVEL | name | message"
//     lines. InitLoggers installs it as the dragonboat logger factory, so every
//     package can simply use logger.GetLogger("<name>").
package common
