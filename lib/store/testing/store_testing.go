package testing

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ValentinKolb/lKV/lib/codec"
	"github.com/ValentinKolb/lKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory is a function that creates a store backed by the log file at path
type StoreFactory func(path string) store.IStore

// RunIStoreTests runs the conformance test suite for an IStore implementation.
func RunIStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory)
		})

		t.Run("SetOverwrites", func(t *testing.T) {
			testSetOverwrites(t, factory)
		})

		t.Run("DeleteThenGet", func(t *testing.T) {
			testDeleteThenGet(t, factory)
		})

		t.Run("DeleteMissing", func(t *testing.T) {
			testDeleteMissing(t, factory)
		})

		t.Run("EmptyStore", func(t *testing.T) {
			testEmptyStore(t, factory)
		})

		t.Run("Compact", func(t *testing.T) {
			testCompact(t, factory)
		})

		t.Run("IdempotentDump", func(t *testing.T) {
			testIdempotentDump(t, factory)
		})

		t.Run("AtMostOneLive", func(t *testing.T) {
			testAtMostOneLive(t, factory)
		})

		t.Run("Size", func(t *testing.T) {
			testSize(t, factory)
		})

		t.Run("Corruption", func(t *testing.T) {
			testCorruption(t, factory)
		})

		t.Run("RejectsInvalidUTF8", func(t *testing.T) {
			testRejectsInvalidUTF8(t, factory)
		})

		t.Run("SharedFile", func(t *testing.T) {
			testSharedFile(t, factory)
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory)
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, factory)
		})

		t.Run("ConcurrentCompaction", func(t *testing.T) {
			testConcurrentCompaction(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// newStore creates a store on a fresh log path inside the test's temp dir
func newStore(t testing.TB, factory StoreFactory) (store.IStore, string) {
	path := filepath.Join(t.TempDir(), "store.log")
	return factory(path), path
}

// rawEntries decodes every entry of the log at path, dead ones included
func rawEntries(t testing.TB, path string) []codec.Entry {
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []codec.Entry
	for offset := 0; offset < len(data); {
		e, err := codec.Decode(data, offset)
		require.NoError(t, err, "log must be fully decodable")
		entries = append(entries, e)
		offset += e.Len
	}
	return entries
}

// liveCount returns the number of live entries per key in the log at path
func liveCount(t testing.TB, path string) map[string]int {
	counts := make(map[string]int)
	for _, e := range rawEntries(t, path) {
		if e.Live {
			counts[e.Key]++
		}
	}
	return counts
}

func requireAtMostOneLive(t testing.TB, path string) {
	for key, n := range liveCount(t, path) {
		require.LessOrEqualf(t, n, 1, "key %q has %d live entries", key, n)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, factory StoreFactory) {
	s, _ := newStore(t, factory)

	n, err := s.Set("test-key", "test-value")
	require.NoError(t, err)
	assert.Equal(t, codec.EncodedLen("test-key", "test-value"), n)

	value, err := s.Get("test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)

	_, err = s.Get("nonexistent-key")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// unicode keys and values
	_, err = s.Set("schlüssel", "wert ✓")
	require.NoError(t, err)
	value, err = s.Get("schlüssel")
	require.NoError(t, err)
	assert.Equal(t, "wert ✓", value)
}

func testSetOverwrites(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	_, err := s.Set("a", "1")
	require.NoError(t, err)
	_, err = s.Set("a", "2")
	require.NoError(t, err)

	value, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2"}, dump)

	// the old entry is still on disk, but tombstoned
	entries := rawEntries(t, path)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Live)
	assert.Equal(t, "1", entries[0].Value)
	assert.True(t, entries[1].Live)
	assert.Equal(t, "2", entries[1].Value)
}

func testDeleteThenGet(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	_, err := s.Set("a", "1")
	require.NoError(t, err)
	_, err = s.Set("b", "2")
	require.NoError(t, err)

	require.NoError(t, s.Delete("a"))

	_, err = s.Get("a")
	assert.ErrorIs(t, err, store.ErrNotFound)

	value, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	// delete never appends
	assert.Len(t, rawEntries(t, path), 2)

	// a deleted key can be set again
	_, err = s.Set("a", "3")
	require.NoError(t, err)
	value, err = s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "3", value)
}

func testDeleteMissing(t *testing.T, factory StoreFactory) {
	s, _ := newStore(t, factory)

	err := s.Delete("missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Set("a", "1")
	require.NoError(t, err)
	require.NoError(t, s.Delete("a"))

	err = s.Delete("a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testEmptyStore(t *testing.T, factory StoreFactory) {
	s, _ := newStore(t, factory)

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Empty(t, dump)

	size, err := s.Compact()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	size, err = s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func testCompact(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	_, err := s.Set("a", "1")
	require.NoError(t, err)
	_, err = s.Set("a", "2")
	require.NoError(t, err)
	err = s.Delete("b")
	require.ErrorIs(t, err, store.ErrNotFound)

	before, err := s.Size()
	require.NoError(t, err)

	after, err := s.Compact()
	require.NoError(t, err)
	assert.Less(t, after, before)
	assert.Equal(t, int64(codec.EncodedLen("a", "2")), after)

	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, after, size)

	entries := rawEntries(t, path)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Live)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "2", entries[0].Value)

	// compacting a log without dead entries keeps its size
	again, err := s.Compact()
	require.NoError(t, err)
	assert.Equal(t, after, again)

	// the store stays fully usable after compaction
	_, err = s.Set("c", "3")
	require.NoError(t, err)
	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "c": "3"}, dump)
}

func testIdempotentDump(t *testing.T, factory StoreFactory) {
	s, _ := newStore(t, factory)

	for i := 0; i < 20; i++ {
		_, err := s.Set(fmt.Sprintf("key-%d", i%7), fmt.Sprintf("value-%d", i))
		require.NoError(t, err)
	}

	first, err := s.Dump()
	require.NoError(t, err)
	second, err := s.Dump()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 7)
}

func testAtMostOneLive(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	rng := rand.New(rand.NewSource(42))
	keys := []string{"a", "b", "c"}
	expected := make(map[string]string)

	for i := 0; i < 200; i++ {
		key := keys[rng.Intn(len(keys))]
		if rng.Intn(3) == 0 {
			err := s.Delete(key)
			if _, ok := expected[key]; ok {
				require.NoError(t, err)
				delete(expected, key)
			} else {
				require.ErrorIs(t, err, store.ErrNotFound)
			}
		} else {
			value := fmt.Sprintf("v%d", i)
			_, err := s.Set(key, value)
			require.NoError(t, err)
			expected[key] = value
		}

		requireAtMostOneLive(t, path)

		if i%50 == 49 {
			_, err := s.Compact()
			require.NoError(t, err)
			requireAtMostOneLive(t, path)
		}
	}

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Equal(t, expected, dump)
}

func testSize(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	// the log does not exist before the first write
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	total := 0
	for i := 0; i < 5; i++ {
		n, err := s.Set(fmt.Sprintf("k%d", i), "value")
		require.NoError(t, err)
		total += n
	}

	size, err = s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(total), size)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)
}

func testCorruption(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	_, err := s.Set("a", "1")
	require.NoError(t, err)

	// append a truncated header
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{codec.Live, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// the first live match is found before the damaged record
	value, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	_, err = s.Get("b")
	assert.ErrorIs(t, err, store.ErrCorruption)

	_, err = s.Dump()
	assert.ErrorIs(t, err, store.ErrCorruption)

	before, err := s.Size()
	require.NoError(t, err)

	// writes and compaction refuse to touch a corrupted log
	_, err = s.Set("b", "2")
	assert.ErrorIs(t, err, store.ErrCorruption)
	_, err = s.Compact()
	assert.ErrorIs(t, err, store.ErrCorruption)

	after, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testRejectsInvalidUTF8(t *testing.T, factory StoreFactory) {
	s, _ := newStore(t, factory)

	_, err := s.Set("a", "1")
	require.NoError(t, err)
	before, err := s.Size()
	require.NoError(t, err)

	_, err = s.Set("\xff", "v")
	assert.ErrorIs(t, err, store.ErrEncoding)
	_, err = s.Set("k", "bad\xfe")
	assert.ErrorIs(t, err, store.ErrEncoding)

	after, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected writes must not touch the log")

	// the log stays usable
	_, err = s.Set("b", "2")
	require.NoError(t, err)
	require.NoError(t, s.Delete("a"))
	_, err = s.Compact()
	require.NoError(t, err)

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b": "2"}, dump)
}

func testSharedFile(t *testing.T, factory StoreFactory) {
	first, path := newStore(t, factory)
	second := factory(path)

	_, err := first.Set("a", "1")
	require.NoError(t, err)

	value, err := second.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "1", value)

	_, err = second.Set("a", "2")
	require.NoError(t, err)

	value, err = first.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	requireAtMostOneLive(t, path)
}

func testConcurrentWriters(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	const writers = 8
	const writes = 25

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				// all writers fight over the same key
				n, err := s.Set("shared", fmt.Sprintf("w%d-%d", w, i))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				total += n
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	// no append was lost or interleaved
	size, err := s.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(total), size)

	entries := rawEntries(t, path)
	assert.Len(t, entries, writers*writes)
	assert.Equal(t, 1, liveCount(t, path)["shared"])
}

func testConcurrentReaders(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	written := make(map[string]bool)
	for i := 0; i < 50; i++ {
		written[fmt.Sprintf("value-%03d", i)] = true
	}
	_, err := s.Set("key", "value-000")
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// readers must always observe a complete value that has actually been written
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				value, err := s.Get("key")
				if !assert.NoError(t, err) {
					return
				}
				if !assert.True(t, written[value], "read unexpected value %q", value) {
					return
				}
			}
		}()
	}

	for i := 1; i < 50; i++ {
		_, err := s.Set("key", fmt.Sprintf("value-%03d", i))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	value, err := s.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value-049", value)
	requireAtMostOneLive(t, path)
}

func testConcurrentCompaction(t *testing.T, factory StoreFactory) {
	s, path := newStore(t, factory)

	const writers = 4
	const writes = 40

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", w)
			for i := 0; i < writes; i++ {
				_, err := s.Set(key, fmt.Sprintf("%d", i))
				if !assert.NoError(t, err) {
					return
				}
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_, err := s.Compact()
			if !assert.NoError(t, err) {
				return
			}
		}
	}()
	wg.Wait()

	expected := make(map[string]string)
	for w := 0; w < writers; w++ {
		expected[fmt.Sprintf("key-%d", w)] = fmt.Sprintf("%d", writes-1)
	}

	dump, err := s.Dump()
	require.NoError(t, err)
	assert.Equal(t, expected, dump)
	requireAtMostOneLive(t, path)
}
