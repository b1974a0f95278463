package client

import (
	"fmt"

	"github.com/ValentinKolb/mKV/lib/db"
	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(key string, value store.Value) (err error) {
	encoded, err := store.EncodeValue(value)
	if err != nil {
		return err
	}
	req := common.NewSetRequest(key, encoded)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) SetIfUnset(key string, value store.Value) (inserted bool, err error) {
	encoded, err := store.EncodeValue(value)
	if err != nil {
		return false, err
	}
	req := common.NewSetIfUnsetRequest(key, encoded)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Delete(key string) (err error) {
	req := common.NewDeleteRequest(key)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) GetBoolean(key string) (value bool, loaded bool, err error) {
	v, loaded, err := i.invokeGetKey(common.MsgTKVGetBoolean, key)
	if err != nil || !loaded {
		return false, false, err
	}
	return v.Boolean, true, nil
}

func (i *rpcStore) GetNumber(key string) (value float64, loaded bool, err error) {
	v, loaded, err := i.invokeGetKey(common.MsgTKVGetNumber, key)
	if err != nil || !loaded {
		return 0, false, err
	}
	return v.Number, true, nil
}

func (i *rpcStore) GetString(key string) (value string, loaded bool, err error) {
	v, loaded, err := i.invokeGetKey(common.MsgTKVGetString, key)
	if err != nil || !loaded {
		return "", false, err
	}
	return v.String, true, nil
}

func (i *rpcStore) GetBuffer(key string) (value []byte, loaded bool, err error) {
	v, loaded, err := i.invokeGetKey(common.MsgTKVGetBuffer, key)
	if err != nil || !loaded {
		return nil, false, err
	}
	return v.Buffer, true, nil
}

func (i *rpcStore) Get(key string) (value store.Value, loaded bool, err error) {
	return i.invokeGetKey(common.MsgTKVGet, key)
}

func (i *rpcStore) Contains(key string) (loaded bool, err error) {
	req := common.NewContainsRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) AllKeys() (keys []string, err error) {
	req := common.NewAllKeysRequest()
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (i *rpcStore) DeleteAll() (err error) {
	req := common.NewDeleteAllRequest()
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Recrypt(encryptionKey []byte) (err error) {
	req := common.NewRecryptRequest(encryptionKey)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Trim() (err error) {
	req := common.NewTrimRequest()
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Size() (size uint64, err error) {
	req := common.NewSizeRequest()
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Size, nil
}

// GetDBInfo is not implemented for rpc
func (i *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	return db.DatabaseInfo{}, fmt.Errorf("the GetDBInfo() method is not implemented in the rpc client adapter")
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invokeGetKey sends a typed get request and decodes the returned value
func (i *rpcStore) invokeGetKey(msgType common.MessageType, key string) (store.Value, bool, error) {
	req := common.NewGetRequest(msgType, key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return store.Value{}, false, err
	}
	if !resp.Ok {
		return store.Value{}, false, nil
	}
	value, err := store.DecodeValue(resp.Value)
	if err != nil {
		return store.Value{}, false, fmt.Errorf("RPC IStoreAdapter - Invalid value in response: %s", err)
	}
	return value, true, nil
}
