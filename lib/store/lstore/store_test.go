package lstore

import (
	"testing"

	"github.com/ValentinKolb/lKV/lib/store"
	storetesting "github.com/ValentinKolb/lKV/lib/store/testing"
)

func Test(t *testing.T) {
	storetesting.RunIStoreTests(t, "LogStore", func(path string) store.IStore {
		return NewLogStore(path)
	})
}

func Benchmark(b *testing.B) {
	storetesting.RunIStoreBenchmarks(b, "LogStore", func(path string) store.IStore {
		return NewLogStore(path)
	})
}
