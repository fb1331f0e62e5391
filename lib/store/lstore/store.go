package lstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ValentinKolb/lKV/lib/codec"
	"github.com/ValentinKolb/lKV/lib/lockmgr"
	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	path  string
	locks lockmgr.ILockManager
}

// NewLogStore creates a store backed by the log file at path.
// The file is created on first use. No descriptor is kept open between calls,
// every operation opens the file and locks it for its own duration.
func NewLogStore(path string) store.IStore {
	return &storeImpl{
		path:  path,
		locks: lockmgr.NewLockManager(path),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) (string, error) {
	var value string
	err := s.withLock(lockmgr.Shared, "get", func(_ *os.File, data []byte) error {
		entry, found, err := codec.Find(data, key)
		if err != nil {
			return store.WrapError(store.RetCCorruption, "get: failed to scan log", err)
		}
		if !found {
			return notFound(key)
		}
		value = entry.Value
		return nil
	})
	return value, err
}

func (s *storeImpl) Dump() (map[string]string, error) {
	entries := make(map[string]string)
	err := s.withLock(lockmgr.Shared, "dump", func(_ *os.File, data []byte) error {
		sc := codec.NewScanner(data)
		for sc.Next() {
			e := sc.Entry()
			entries[e.Key] = e.Value
		}
		if err := sc.Err(); err != nil {
			return store.WrapError(store.RetCCorruption, "dump: failed to scan log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *storeImpl) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, store.WrapError(store.RetCIOError, "size: failed to stat log", err)
	}
	return info.Size(), nil
}

func (s *storeImpl) Set(key, value string) (int, error) {
	// encode before touching the file so an oversized entry leaves no partial state
	entry, err := codec.Encode(key, value)
	if err != nil {
		return 0, store.WrapError(store.RetCEncoding, "set: failed to encode entry", err)
	}

	written := 0
	err = s.withLock(lockmgr.Exclusive, "set", func(f *os.File, data []byte) error {
		old, found, err := codec.Find(data, key)
		if err != nil {
			return store.WrapError(store.RetCCorruption, "set: failed to scan log", err)
		}

		if found {
			if err := tombstone(f, old); err != nil {
				return store.WrapError(store.RetCIOError, "set: failed to tombstone previous entry", err)
			}
		}

		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return store.WrapError(store.RetCIOError, "set: failed to seek to end of log", err)
		}
		n, err := f.Write(entry)
		written = n
		if err != nil {
			return store.WrapError(store.RetCIOError, "set: failed to append entry", err)
		}

		Logger.Debugf("set key=%q (%d bytes, replaced=%t)", key, n, found)
		return nil
	})
	return written, err
}

func (s *storeImpl) Delete(key string) error {
	return s.withLock(lockmgr.Exclusive, "delete", func(f *os.File, data []byte) error {
		old, found, err := codec.Find(data, key)
		if err != nil {
			return store.WrapError(store.RetCCorruption, "delete: failed to scan log", err)
		}
		if !found {
			return notFound(key)
		}
		if err := tombstone(f, old); err != nil {
			return store.WrapError(store.RetCIOError, "delete: failed to tombstone entry", err)
		}

		Logger.Debugf("deleted key=%q at offset %d", key, old.Offset)
		return nil
	})
}

func (s *storeImpl) Compact() (int64, error) {
	var size int64
	err := s.withLock(lockmgr.Exclusive, "compact", func(f *os.File, data []byte) error {
		compacted := make([]byte, 0, len(data))
		sc := codec.NewScanner(data)
		for sc.Next() {
			e := sc.Entry()
			var err error
			if compacted, err = codec.AppendEncoded(compacted, e.Key, e.Value); err != nil {
				return store.WrapError(store.RetCEncoding, "compact: failed to encode entry", err)
			}
		}
		if err := sc.Err(); err != nil {
			return store.WrapError(store.RetCCorruption, "compact: failed to scan log", err)
		}

		// rewrite in place: the live entries keep their relative order and never
		// take more room than before, so writing the prefix and cutting the
		// remainder keeps the lock on the same inode other holders are waiting on
		if _, err := f.WriteAt(compacted, 0); err != nil {
			return store.WrapError(store.RetCIOError, "compact: failed to write compacted log", err)
		}
		if err := f.Truncate(int64(len(compacted))); err != nil {
			return store.WrapError(store.RetCIOError, "compact: failed to truncate log", err)
		}
		if err := f.Sync(); err != nil {
			return store.WrapError(store.RetCIOError, "compact: failed to sync log", err)
		}

		size = int64(len(compacted))
		Logger.Infof("compacted %s from %d to %d bytes", s.path, len(data), size)
		return nil
	})
	return size, err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// withLock opens the log, takes a lock of the given mode, reads the whole file
// and passes it to fn. The lock is released on every return path.
func (s *storeImpl) withLock(mode lockmgr.Mode, op string, fn func(f *os.File, data []byte) error) (err error) {
	l, err := s.locks.Acquire(mode)
	if err != nil {
		return store.WrapError(store.RetCLockError, fmt.Sprintf("%s: failed to acquire %s lock", op, mode), err)
	}
	defer func() {
		if releaseErr := l.Release(); releaseErr != nil {
			Logger.Errorf("%s: %v", op, releaseErr)
			if err == nil {
				err = store.WrapError(store.RetCLockError, op+": failed to release lock", releaseErr)
			}
		}
	}()

	data, err := io.ReadAll(l.File())
	if err != nil {
		return store.WrapError(store.RetCIOError, op+": failed to read log", err)
	}

	return fn(l.File(), data)
}

// tombstone flips the liveness byte of e to dead
func tombstone(f *os.File, e codec.Entry) error {
	_, err := f.WriteAt([]byte{codec.Dead}, int64(e.Offset))
	return err
}

func notFound(key string) error {
	return store.NewError(store.RetCNotFound, fmt.Sprintf("key %q not found", key))
}
