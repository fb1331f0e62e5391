package testing

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

// RunIStoreBenchmarks runs performance benchmarks for an IStore implementation.
// Every benchmark works on a fresh log file.
func RunIStoreBenchmarks(b *testing.B, name string, factory StoreFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			s := factory(filepath.Join(b.TempDir(), "bench.log"))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Set(fmt.Sprintf("key-%d", i%100), "value"); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run("Get", func(b *testing.B) {
			s := factory(filepath.Join(b.TempDir(), "bench.log"))
			for i := 0; i < 100; i++ {
				if _, err := s.Set(fmt.Sprintf("key-%d", i), "value"); err != nil {
					b.Fatal(err)
				}
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Get(fmt.Sprintf("key-%d", i%100)); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run("SetLargeValue", func(b *testing.B) {
			s := factory(filepath.Join(b.TempDir(), "bench.log"))
			value := strings.Repeat("x", 64*1024)
			// compact regularly, otherwise the log grows by 64 KB per iteration
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Set("large", value); err != nil {
					b.Fatal(err)
				}
				if i%64 == 63 {
					if _, err := s.Compact(); err != nil {
						b.Fatal(err)
					}
				}
			}
		})

		b.Run("Dump", func(b *testing.B) {
			s := factory(filepath.Join(b.TempDir(), "bench.log"))
			for i := 0; i < 1000; i++ {
				if _, err := s.Set(fmt.Sprintf("key-%d", i), "value"); err != nil {
					b.Fatal(err)
				}
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Dump(); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run("Compact", func(b *testing.B) {
			s := factory(filepath.Join(b.TempDir(), "bench.log"))
			for i := 0; i < 1000; i++ {
				if _, err := s.Set(fmt.Sprintf("key-%d", i%10), "value"); err != nil {
					b.Fatal(err)
				}
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.Compact(); err != nil {
					b.Fatal(err)
				}
			}
		})
	})
}
