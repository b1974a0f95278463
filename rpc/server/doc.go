// Package server implements the RPC server for mKV. It provides adapters for
// handling RPC requests to both store and lock manager services, along with
// the core server implementation that manages instances and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for both store and lock manager operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible instance configuration, any number of stores and lock managers
//     can be served by a single process
//   - Dynamic creation of stores and lock managers based on instance configuration
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for key-value
//     store operations, translating RPC requests to store.IStore method calls.
//
//   - NewLockManagerServerAdapter: Factory function creating an adapter for
//     locking operations, creating a lockmgr.ILockManager on top of the store.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Instances: []common.ServerInstance{
//	    {ShardID: 100, Type: common.InstanceTypeStore, Name: "main"},
//	    {ShardID: 200, Type: common.InstanceTypeLockManager, Name: "locks"},
//	  },
//	  DataDir: "/var/lib/mkv",
//	  Transport: common.ServerTransportConfig{
//	    Endpoint:      "0.0.0.0:8080",
//	    TimeoutSecond: 5,
//	  },
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Each instance is backed by its own willow log file named after the instance
// inside the configured data directory. Instances of type "store" expose the
// full typed key-value surface, instances of type "lockmgr" expose acquire
// and release operations layered on top of a store.
//
// The server records per-shard request counters and latency histograms, which
// the HTTP transport exposes under GET /metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Listen method is not thread-safe and should be called only once.
package server
