// Package lockmgr implements a locking mechanism using
// key-value stores that implement the store.IStore interface. It provides
// a simple yet robust way to coordinate access to shared resources across
// multiple processes.
//
// The lockmgr only ever stores in the provided IStore and has no other internal
// state. Therefor it is safe to be created multiple times on the same store.
// It is even possible to create a new lockmgr for every acquire and or release
// operation. As long as the same store is used every time, all locks will
// work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Automatic lockmgr expiration through configurable timeouts
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic conditional operations
//	of the underlying store. Specifically:
//
//	- Lock Record: Each lock is stored as a buffer value holding a randomly
//	  generated 256 bit owner ID followed by a big endian unix deadline. A
//	  zero deadline marks a lock that never expires.
//
//	- Lock Acquisition: Attempts to create the key using SetIfUnset, which
//	  guarantees that only one requester can successfully create the key.
//
//	- Timeouts: Since the underlying store has no native expiry, the deadline
//	  is checked lazily: an acquire on a held lock whose deadline has passed
//	  steals the lock by overwriting the record and then verifying that the
//	  stored owner ID is its own. This prevents deadlocks if a client crashes.
//
//	- Safe Release: The ReleaseLock operation first verifies that the
//	  requester is the legitimate owner of the lockmgr by comparing owner IDs
//	  before executing the Delete operation.
//
// Thread Safety:
//
//	The lockmgr is as thread-safe as the underlying store.IStore
//	implementation. All operations are performed through the store interface,
//	which typically provides thread safety guarantees.
//
// Usage Example:
//
//	// Create a lockmgr provider with a store backend
//	lockProvider := lockmgr.NewLockManager(store)
//
//	// Acquire a lockmgr with a 30 second timeout
//	acquired, ownerID, err := lockProvider.AcquireLock("resource:123", 30)
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    // Release the lockmgr when done
//	    released, err := lockProvider.ReleaseLock("resource:123", ownerID)
//	    if err != nil {
//	        // Handle error
//	    }
//	}
//
// Security Considerations:
//
//	The lockmgr mechanism uses randomly generated owner IDs, which provides
//	reasonable protection against accidental lockmgr stealing. However, it is
//	not designed to resist malicious attacks, as an attacker with access to
//	the underlying store could potentially manipulate lockmgr data directly.
//
// Performance Impact:
//
//	Lock operations require 1-3 store operations each:
//	- AcquireLock: One SetIfUnset, plus a Get (and possibly a steal) on contention
//	- ReleaseLock: One Get followed by a conditional Delete
//
//	The performance characteristics therefore depend primarily on the
//	underlying store implementation.
package lockmgr
