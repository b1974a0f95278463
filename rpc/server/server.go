package server

import (
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/db/engines/willow"
	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/lib/store/lstore"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = common.CreateLogger("rpc")

// serverInstance is a struct that represents one served instance in the RPC
// server. It contains the store it encapsulates and the adapter that handles
// requests for the store
type serverInstance struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create instance map
	instanceMap := xsync.NewMapOf[uint64, serverInstance]()

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		instances:  instanceMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	instances  *xsync.MapOf[uint64, serverInstance]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(shardId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		start := time.Now()
		metrics.GetOrCreateCounter(fmt.Sprintf(`mkv_rpc_requests_total{shard="%d"}`, shardId)).Inc()

		// Get appropriate instance
		instance, ok := s.instances.Load(shardId)

		// Case instance does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "shard not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *instance.Adapter.Handle(&msg, instance.Store)
			}
		}

		if respMsg.MsgType == common.MsgTError || respMsg.Err != "" {
			metrics.GetOrCreateCounter(fmt.Sprintf(`mkv_rpc_errors_total{shard="%d"}`, shardId)).Inc()
		}
		metrics.GetOrCreateHistogram(fmt.Sprintf(`mkv_rpc_request_duration_seconds{shard="%d"}`, shardId)).UpdateDuration(start)

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			}
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	// CREATE INSTANCES

	/*
		Note: A single RPC Server can serve any number of instances. Each
		instance is a store or a lock manager backed by its own willow log
		file inside the configured data directory. The following loop creates
		all the instances and stores them for the RPC server.
	*/

	for _, instanceConfig := range s.config.Instances {

		// Function to create (or reopen) the database instance
		name := instanceConfig.Name
		dbFactory := func() (db.KVDB, error) {
			opts := willow.DefaultOptions(name)
			opts.Path = s.config.DataDir
			opts.SyncWrites = s.config.SyncWrites
			if s.config.EncryptionKey != "" {
				opts.EncryptionKey = []byte(s.config.EncryptionKey)
			}
			return willow.Open(opts)
		}

		// Create the backing store
		st, err := lstore.NewLocalStore(dbFactory)
		if err != nil {
			return fmt.Errorf("failed to create instance %q for shard %d: %w", name, instanceConfig.ShardID, err)
		}

		// Choose the appropriate adapter based on the instance type
		var adapter IRPCServerAdapter
		switch instanceConfig.Type {
		case common.InstanceTypeStore:
			adapter = NewIStoreServerAdapter()
		case common.InstanceTypeLockManager:
			adapter = NewLockManagerServerAdapter()
		default:
			return fmt.Errorf("invalid instance type: %s", instanceConfig.Type)
		}

		s.instances.Store(instanceConfig.ShardID, serverInstance{
			Store:   st,
			Adapter: adapter,
		})
		Logger.Infof("created %s instance %q for shard %d", instanceConfig.Type, name, instanceConfig.ShardID)
	}

	Logger.Infof("mKV setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the instances and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}
