// Package cmd implements the command-line interface of lKV. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Client commands for the store operations (get, set, delete, dump, size, compact, perf)
//   - serve: Command for starting and configuring the lKV server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See lkv -help for a list of all commands.
package cmd
