// Package client implements RPC clients for mKV. It provides implementations
// of the store.IStore and lockmgr.ILockManager interfaces that communicate
// with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to store and lock manager implementations
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that creates a client implementing the store.IStore
//     interface. This client forwards all operations to remote servers via the configured
//     transport layer.
//
//   - NewRPCLockMgr: Factory function that creates a client implementing the
//     lockmgr.ILockManager interface for locking operations.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	  TimeoutSecond: 5,
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create store client
//	store, _ := client.NewRPCStore(100, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the store
//	store.Set("mykey", store.StringValue("myvalue"))
//	value, exists, _ := store.GetString("mykey")
//
//	// Create and use a lock manager
//	lockMgr, _ := client.NewRPCLockMgr(200, config, tcp.NewTCPClientTransport(), serializer)
//	acquired, ownerID, _ := lockMgr.AcquireLock("mylock", 30)
//	if acquired {
//	  lockMgr.ReleaseLock("mylock", ownerID)
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	All client implementations are thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
