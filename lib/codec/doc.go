// Package codec implements the binary record format of the lKV log file.
//
// Every record ("entry") is laid out contiguously without padding:
//
//	+----------+-----------------+-------------------+-----------+-------------+
//	| liveness | key length      | value length      | key bytes | value bytes |
//	| 1 byte   | 4 bytes (u32 BE)| 4 bytes (u32 BE)  | klen      | vlen        |
//	+----------+-----------------+-------------------+-----------+-------------+
//
// The liveness byte is 1 for a live entry and 0 for a tombstone. It is the only
// field that is ever modified after the entry has been written; all other bytes
// are immutable until the log is compacted.
//
// Key Components:
//
//   - Encode: serializes a key/value pair into a new live entry.
//
//   - Decode: parses exactly one entry starting at a byte offset of a buffer,
//     rejecting truncated records and non UTF-8 payloads.
//
//   - Scanner: a forward, non-restartable cursor over all live entries of a
//     buffer. It is the single authority for what a log currently contains.
//
// The package is stateless and safe for concurrent use.
package codec
