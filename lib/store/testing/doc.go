// Package testing provides standardised tests and benchmarks for
// store implementations that satisfy the store.IStore interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the IStore contract,
//     including the on-disk invariants of log-structured stores
//   - benchmark: Performance tests for the common store operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(path string) store.IStore {
//		return lstore.NewLogStore(path)
//	}
//
//	// Running the standard test suite
//	storetesting.RunIStoreTests(t, "LogStore", factory)
//
//	// Running performance benchmarks
//	storetesting.RunIStoreBenchmarks(b, "LogStore", factory)
package testing
