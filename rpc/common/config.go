package common

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Server instance configuration
// --------------------------------------------------------------------------

// ServerInstanceType selects which adapter serves a shard
type ServerInstanceType string

const (
	InstanceTypeStore       ServerInstanceType = "store"
	InstanceTypeLockManager ServerInstanceType = "lockmgr"
)

// ServerInstance maps a shard id to a named storage instance. Clients address
// an instance by its shard id, the name selects the backing willow log file.
type ServerInstance struct {
	// ShardID is the id clients use to address this instance
	ShardID uint64
	// Type selects the adapter (store or lockmgr)
	Type ServerInstanceType
	// Name is the storage instance id (also the log file base name)
	Name string
}

// ParseInstances parses an instance listing of the form
//
//	"100=store(main),200=lockmgr(locks)"
//
// into ServerInstance values. Shard ids must be unique.
func ParseInstances(s string) ([]ServerInstance, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("no instances configured")
	}

	seen := make(map[uint64]bool)
	var instances []ServerInstance

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)

		shardStr, rest, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("invalid instance %q, expected <shardID>=<type>(<name>)", part)
		}
		shardID, err := strconv.ParseUint(strings.TrimSpace(shardStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard id in %q: %v", part, err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("duplicate shard id %d", shardID)
		}
		seen[shardID] = true

		typeStr, nameStr, found := strings.Cut(strings.TrimSpace(rest), "(")
		if !found || !strings.HasSuffix(nameStr, ")") {
			return nil, fmt.Errorf("invalid instance %q, expected <shardID>=<type>(<name>)", part)
		}
		name := strings.TrimSuffix(nameStr, ")")
		if name == "" {
			return nil, fmt.Errorf("empty instance name in %q", part)
		}

		instanceType := ServerInstanceType(typeStr)
		switch instanceType {
		case InstanceTypeStore, InstanceTypeLockManager:
		default:
			return nil, fmt.Errorf("unknown instance type %q in %q", typeStr, part)
		}

		instances = append(instances, ServerInstance{
			ShardID: shardID,
			Type:    instanceType,
			Name:    name,
		})
	}

	return instances, nil
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerTransportConfig holds the network settings of the server
type ServerTransportConfig struct {
	// Endpoint the server listens on (address:port or socket path)
	Endpoint string
	// TimeoutSecond is the per-request read/write deadline (0 = none)
	TimeoutSecond int64
	// WorkersPerConn limits concurrent request workers per connection
	WorkersPerConn int
}

// ServerConfig holds all configuration parameters for an mKV server.
type ServerConfig struct {
	// Instances served by this process, each on its own shard id
	Instances []ServerInstance

	// Storage parameters
	DataDir       string // Directory holding the log files
	EncryptionKey string // Optional encryption key applied to all store instances
	SyncWrites    bool   // true = fsync after every write

	// Wire format ("json", "gob" or "binary")
	Serializer string

	// Network settings
	Transport ServerTransportConfig

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))
	addField("Workers Per Conn", strconv.Itoa(c.Transport.WorkersPerConn))
	addField("Serializer", c.Serializer)

	// Storage
	addSection("Storage")
	addField("Data Directory", c.DataDir)
	addField("Encrypted", fmt.Sprintf("%t", c.EncryptionKey != ""))
	addField("Sync Writes", fmt.Sprintf("%t", c.SyncWrites))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Instances, sorted by shard id for consistent output
	addSection("Instances")
	instances := make([]ServerInstance, len(c.Instances))
	copy(instances, c.Instances)
	sort.Slice(instances, func(i, j int) bool { return instances[i].ShardID < instances[j].ShardID })
	for _, instance := range instances {
		addField(strconv.FormatUint(instance.ShardID, 10),
			fmt.Sprintf("%s(%s)", instance.Type, instance.Name))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientTransportConfig holds the network settings of the client
type ClientTransportConfig struct {
	// Endpoints to connect to, requests are load balanced across them
	Endpoints []string
	// RetryCount is the number of send attempts per request
	RetryCount int
	// ConnectionsPerEndpoint opens multiple connections to each endpoint
	ConnectionsPerEndpoint int
}

// ClientConfig holds all configuration parameters for an mKV client.
type ClientConfig struct {
	// Network settings
	Transport ClientTransportConfig

	// Wire format, must match the server ("json", "gob" or "binary")
	Serializer string

	// TimeoutSecond is the per-request deadline (0 = none)
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Serializer", c.Serializer)
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.Transport.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Transport.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
