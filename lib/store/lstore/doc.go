// Package lstore implements a single-file, append-only key-value store based on
// the store.IStore interface. All state lives in one log file, there is no
// in-memory index and no descriptor is kept open between operations.
//
// Key Features:
//   - Binary log format from the codec package
//   - Deletion by tombstoning (flipping the liveness byte of an entry in place)
//   - Compaction that rewrites the log with its live entries only
//   - Serialization through flock(2), valid across goroutines and processes
//
// Implementation Details:
//
//   - Reads: Get and Dump take a shared lock, read the whole file and scan it
//     forward. Since every completed Set and Delete leaves at most one live
//     entry per key, the first live match is authoritative.
//
//   - Writes: Set takes an exclusive lock for its whole duration. It tombstones
//     the current live entry of the key (if any) and appends the new entry at
//     the end of the file. Delete only tombstones. Encoding happens before the
//     lock is taken, an oversized entry is rejected without touching the file.
//
//   - Compaction: Compact takes an exclusive lock, re-encodes all live entries
//     and rewrites the same file in place (write prefix, truncate, fsync). The
//     inode never changes, so processes blocked on the lock continue to be
//     serialized against the compacted file.
//
//   - Size: Size is a plain stat of the log path and takes no lock.
//
// Crash Behavior:
//
//	Set is not atomic with respect to a crash between the tombstone write and
//	the append: the key can be left without a live entry. Compaction is not
//	atomic with respect to a crash between its write and its truncate. Both are
//	known limitations of the format.
//
// Usage Example:
//
//	s := lstore.NewLogStore("/var/lib/lkv/data.log")
//
//	if _, err := s.Set("user:1", "alice"); err != nil {
//		return err
//	}
//
//	value, err := s.Get("user:1")
//	if errors.Is(err, store.ErrNotFound) {
//		...
//	}
package lstore
