// Package common provides core data structures and utilities shared across
// the mKV system. It defines fundamental types, configuration structures,
// and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for inter-component communication
//   - Configuration structures for client and server components
//   - A shared logger factory with a process-wide log level
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between components,
//     with a flexible structure that adapts to different operation types.
//     Includes factory methods for creating various request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types in the
//     system, categorized into key-value operations, lock operations, and
//     control messages.
//
//   - ServerConfig: Configuration for server processes, including the served
//     storage instances, storage settings, network configuration and the wire
//     format. ParseInstances turns the CLI instance listing into typed values.
//
//   - ClientConfig: Configuration for client components, controlling connection
//     parameters, timeouts, and retry behavior.
//
//   - Logger: A zap based logger factory that gives every package a named
//     console logger sharing one process-wide log level.
package common
