// Package db provides a standardized interface for persistent key-value
// database implementations. It defines a comprehensive KVDB interface that
// allows for consistent interaction with various database backends while
// abstracting implementation details.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Feature discovery through capability flags
//   - Durability and maintenance operations (Sync, Trim, ReKey)
//   - Standardized metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must
//     satisfy. It provides methods for basic operations (Set, SetIfUnset, Get,
//     Has, Delete, Keys), maintenance operations (Clear, Trim, ReKey,
//     ClearCache, Sync), size reporting (ActualSize, TotalSize) and metadata
//     retrieval (GetInfo).
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method. This
//     allows clients to discover supported operations at runtime.
//
//   - Implementation Identifiers: The Implementation type provides string
//     constants for different database backends (currently "willow").
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state, including the used log size (the MMKV
//     "actualSize" notion), the file size on disk, and implementation-specific
//     metadata. Note: Some statistics may be estimated since a precise
//     calculation can be expensive.
//
// This interface-driven approach allows applications to:
//   - Swap database implementations without code changes
//   - Gracefully handle operations not supported by specific implementations
//   - Maintain consistent behavior across different storage backends
//   - Collect standardized metrics for monitoring and management
//
// Note on Durability:
//   - Implementations may buffer appends. Sync establishes a durability point;
//     Close must imply a final Sync. Implementations that run in asynchronous
//     mode must still guarantee that the on-disk log is always a valid prefix
//     of the logical history (torn tails are allowed and must be discarded on
//     the next open).
//
// Note on Trim and Clear:
//   - Trim reclaims the space of overwritten and deleted records without
//     losing live data, Clear resets the instance to an empty state. Both
//     operations must be atomic with respect to crashes: after a crash either
//     the old or the new file content is visible, never a mix.
//
// Related Packages:
//
// The engines/willow package (github.com/ValentinKolb/mKV/lib/db/engines/willow)
// provides the file-backed implementation of the KVDB interface using an
// append-only, CRC-protected record log with an in-memory key directory,
// optional AES-GCM encryption and log compaction.
//
// The testing package (github.com/ValentinKolb/mKV/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy
// the db.KVDB interface:
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
