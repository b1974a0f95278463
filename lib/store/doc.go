// Package store provides a high-level, typed interface for key-value storage
// operations with unified error handling. It serves as an abstraction layer
// over the lower-level db.KVDB implementations, adding typed value handling
// and standardized error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for typed key-value operations across different backends
//   - A tagged union value type (Value) with a compact wire encoding
//   - Pluggable storage backend architecture through DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a key-value store. All implementations share this common interface, allowing
//     applications to switch between different storage backends without code changes.
//     Typed getters treat a type mismatch as a miss (loaded=false), never as an error.
//
//   - Value Type: A tagged union over boolean, number, string and buffer with
//     EncodeValue/DecodeValue for the on-disk and on-wire representation.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. This system allows applications to make informed
//     decisions based on specific error conditions rather than generic errors.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
// Implementations:
//
//	- Local Store (lstore): Works directly on a db.KVDB engine in the same
//	  process. Available in the "github.com/ValentinKolb/mKV/lib/store/lstore"
//	  package.
//
//	- RPC Client (rpc/client): Implements the same interface against a remote
//	  mKV server, so application code is oblivious to where the data lives.
package store
