// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the KVDB interface contract
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// The factory passed to the suites must open the same backing store on every
// call, the persistence tests rely on this to verify a close/open cycle.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.KVDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	testing.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	testing.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
