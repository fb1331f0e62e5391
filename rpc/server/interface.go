package server

import (
	"io"

	"github.com/ValentinKolb/lKV/lib/store"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for turning request lines into responses
type IRPCServerAdapter interface {
	// Handle handles one request line and returns the response line.
	// Errors never escape, they are rendered into the response.
	Handle(line string, store store.IStore) (resp string)
	// WritePrometheus writes the adapter metrics in the prometheus text format
	WritePrometheus(w io.Writer)
}
