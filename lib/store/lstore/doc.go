// Package lstore implements a local, single-process key-value store based on
// the store.IStore interface. It provides a thin typed wrapper around any
// db.KVDB implementation: values are encoded as tagged unions before they are
// handed to the engine, the typed getters decode them and report a type
// mismatch as "not loaded" rather than as an error.
//
// Key Features:
//   - Typed access (boolean, number, string, buffer) over a raw byte engine
//   - Direct integration with db.KVDB implementations
//   - Feature detection to handle unsupported operations gracefully
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Value Encoding: Every value is serialized with a one byte type tag in
//     front of the payload (see store.EncodeValue). A getter first decodes the
//     stored bytes and then compares the tag against the requested type, so a
//     getString on a number slot yields loaded=false and no error.
//
//   - Feature Detection: Before executing operations, the store checks if the
//     underlying db.KVDB implementation supports the requested feature through
//     the SupportsFeature method. Unsupported operations return appropriate
//     error codes rather than failing silently or producing undefined behavior.
//
//   - Composition Architecture: The store follows a composition pattern where
//     the store.DBFactory factory function injects the underlying db.KVDB
//     implementation. This allows the store to work with any db.KVDB-compatible
//     engine without modification.
//
// Thread Safety:
//
//	All operations in the local store are thread-safe. The underlying db.KVDB
//	implementation is expected to provide its own thread safety guarantees for
//	the actual storage operations.
//
// Usage Example:
//
//	// Create a store with a willow database backend
//	factory := func() (db.KVDB, error) { return willow.Open(willow.DefaultOptions("settings")) }
//	st, err := lstore.NewLocalStore(factory)
//
//	// Store and retrieve a typed value
//	err = st.Set("volume", store.NumberValue(0.8))
//	volume, loaded, err := st.GetNumber("volume")
//
// For remote access to the same interface over a network, use the rpc/client
// package which implements store.IStore against an mKV server.
package lstore
