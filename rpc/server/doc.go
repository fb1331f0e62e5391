// Package server implements the line protocol server of lKV.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface of the command dispatcher, turning one
//     request line into one response against a store.IStore.
//
//   - NewIStoreServerAdapter: The dispatcher of the verbs get, set, delete,
//     dump, size, compact and help. Store errors are rendered as
//     "error: <message>", unknown verbs as "unrecognized".
//
//   - NewRPCServer: Connects a transport, an adapter and a store. The server
//     owns the signal policy: SIGUSR1 compacts the log on the event loop,
//     SIGTERM and SIGINT stop it. If an http endpoint is configured, the
//     same dispatcher is reachable with POST /command.
//
// Metrics (VictoriaMetrics, served on GET /metrics of the http endpoint if configured):
//
//	lkv_commands_total{verb="..."}
//	lkv_command_errors_total{verb="..."}
//	lkv_compactions_total
//	lkv_compaction_errors_total
//	lkv_connections_active
//	lkv_log_size_bytes
//
// Usage Example:
//
//	pipe, err := sigpipe.New(common.ServerSignals()...)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer pipe.Close()
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(config),
//	  server.NewIStoreServerAdapter(),
//	  lstore.NewLogStore(config.FilePath),
//	)
//
//	if err := s.Start(pipe.Fd()); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
package server
