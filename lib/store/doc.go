// Package store provides the interface for key-value storage operations of lKV
// together with its unified error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for the operations served over the wire
//   - A structured error type carrying a return code
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining get, set, delete, dump,
//     size and compact. The command dispatcher of the rpc/server package only
//     ever talks to this interface.
//
//   - Error System: Every failure is reported as a *Error with a RetCode
//     (NotFound, CorruptionError, EncodingError, LockError, IOError, ...).
//     Errors match by code, so callers can write errors.Is(err, store.ErrNotFound)
//     independent of the message or the wrapped cause.
//
// Implementations:
//
//	- Log Store (lstore): a single-file, append-only log with tombstone deletion
//	  and compaction, serialized through advisory file locks.
//	  Available in the "github.com/ValentinKolb/lKV/lib/store/lstore" package.
//
// A reusable conformance suite for IStore implementations lives in the
// "github.com/ValentinKolb/lKV/lib/store/testing" package.
package store
