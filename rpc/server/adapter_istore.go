package server

import (
	"fmt"

	"github.com/ValentinKolb/mKV/lib/store"
	"github.com/ValentinKolb/mKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, st store.IStore) *common.Message {
	// Check for nil store
	if st == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		value, err := store.DecodeValue(req.Value)
		if err != nil {
			return common.NewErrorResponse(fmt.Sprintf("invalid value: %v", err))
		}
		return common.NewSetResponse(st.Set(req.Key, value))
	case common.MsgTKVSetIfUnset:
		value, err := store.DecodeValue(req.Value)
		if err != nil {
			return common.NewErrorResponse(fmt.Sprintf("invalid value: %v", err))
		}
		inserted, err := st.SetIfUnset(req.Key, value)
		return common.NewSetIfUnsetResponse(inserted, err)
	case common.MsgTKVDelete:
		return common.NewDeleteResponse(st.Delete(req.Key))
	case common.MsgTKVGetBoolean:
		v, ok, err := st.GetBoolean(req.Key)
		return typedGetResponse(req.MsgType, store.BooleanValue(v), ok, err)
	case common.MsgTKVGetNumber:
		v, ok, err := st.GetNumber(req.Key)
		return typedGetResponse(req.MsgType, store.NumberValue(v), ok, err)
	case common.MsgTKVGetString:
		v, ok, err := st.GetString(req.Key)
		return typedGetResponse(req.MsgType, store.StringValue(v), ok, err)
	case common.MsgTKVGetBuffer:
		v, ok, err := st.GetBuffer(req.Key)
		return typedGetResponse(req.MsgType, store.BufferValue(v), ok, err)
	case common.MsgTKVGet:
		v, ok, err := st.Get(req.Key)
		return typedGetResponse(req.MsgType, v, ok, err)
	case common.MsgTKVContains:
		ok, err := st.Contains(req.Key)
		return common.NewContainsResponse(ok, err)
	case common.MsgTKVAllKeys:
		keys, err := st.AllKeys()
		return common.NewAllKeysResponse(keys, err)
	case common.MsgTKVDeleteAll:
		return common.NewDeleteAllResponse(st.DeleteAll())
	case common.MsgTKVRecrypt:
		return common.NewRecryptResponse(st.Recrypt(req.Value))
	case common.MsgTKVTrim:
		return common.NewTrimResponse(st.Trim())
	case common.MsgTKVSize:
		size, err := st.Size()
		return common.NewSizeResponse(size, err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}

// typedGetResponse encodes the value of a successful lookup into the response.
// A miss (or type mismatch, which the store reports as a miss) carries no value.
func typedGetResponse(msgType common.MessageType, value store.Value, ok bool, err error) *common.Message {
	if err != nil || !ok {
		return common.NewGetResponse(msgType, nil, false, err)
	}
	encoded, encErr := store.EncodeValue(value)
	if encErr != nil {
		return common.NewErrorResponse(fmt.Sprintf("failed to encode value: %v", encErr))
	}
	return common.NewGetResponse(msgType, encoded, true, nil)
}
