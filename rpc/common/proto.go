package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key        string   `json:"key,omitempty"`         // Used for: Set, Get*, Contains, Delete, Acquire, Release
	Value      []byte   `json:"value,omitempty"`       // Used for: Set (request), Get* (response), Recrypt (request), Acquire (response)
	Keys       []string `json:"keys,omitempty"`        // Used for: AllKeys response
	Size       uint64   `json:"size,omitempty"`        // Used for: Size response
	TimeoutSec uint64   `json:"timeout_sec,omitempty"` // Used for: Acquire request

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Get*, Contains, SetIfUnset, Acquire, Release responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request. The value is an encoded store.Value.
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSet,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSetIfUnsetRequest creates a new SetIfUnset request
func NewSetIfUnsetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSetIfUnset,
		Key:     key,
		Value:   value,
	}
}

// NewSetIfUnsetResponse creates a new SetIfUnset response.
// Ok reports whether the pair was inserted.
func NewSetIfUnsetResponse(inserted bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSetIfUnset,
		Ok:      inserted,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDelete,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewGetRequest creates a new typed Get request. The message type selects
// which typed getter the server executes (MsgTKVGet for the untyped variant).
func NewGetRequest(msgType MessageType, key string) *Message {
	return &Message{
		MsgType: msgType,
		Key:     key,
	}
}

// NewGetResponse creates a new typed Get response. The value is an encoded
// store.Value, Ok reports whether a value of the requested type was found.
func NewGetResponse(msgType MessageType, value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Ok:      ok,
		Value:   value,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewContainsRequest creates a new Contains request
func NewContainsRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVContains,
		Key:     key,
	}
}

// NewContainsResponse creates a new Contains response
func NewContainsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVContains,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewAllKeysRequest creates a new AllKeys request
func NewAllKeysRequest() *Message {
	return &Message{
		MsgType: MsgTKVAllKeys,
	}
}

// NewAllKeysResponse creates a new AllKeys response
func NewAllKeysResponse(keys []string, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVAllKeys,
		Keys:    keys,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDeleteAllRequest creates a new DeleteAll request
func NewDeleteAllRequest() *Message {
	return &Message{
		MsgType: MsgTKVDeleteAll,
	}
}

// NewDeleteAllResponse creates a new DeleteAll response
func NewDeleteAllResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDeleteAll,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewRecryptRequest creates a new Recrypt request. The value holds the new
// encryption key, a nil value removes encryption.
func NewRecryptRequest(encryptionKey []byte) *Message {
	return &Message{
		MsgType: MsgTKVRecrypt,
		Value:   encryptionKey,
	}
}

// NewRecryptResponse creates a new Recrypt response
func NewRecryptResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVRecrypt,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewTrimRequest creates a new Trim request
func NewTrimRequest() *Message {
	return &Message{
		MsgType: MsgTKVTrim,
	}
}

// NewTrimResponse creates a new Trim response
func NewTrimResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVTrim,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSizeRequest creates a new Size request
func NewSizeRequest() *Message {
	return &Message{
		MsgType: MsgTKVSize,
	}
}

// NewSizeResponse creates a new Size response
func NewSizeResponse(size uint64, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSize,
		Size:    size,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewAcquireRequest creates a new Acquire request
func NewAcquireRequest(key string, timeoutSec uint64) *Message {
	return &Message{
		MsgType:    MsgTLCKAcquire,
		Key:        key,
		TimeoutSec: timeoutSec,
	}
}

// NewAcquireResponse creates a new Acquire response
func NewAcquireResponse(ok bool, ownerID []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKAcquire,
		Ok:      ok,
		Value:   ownerID,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewReleaseRequest creates a new Release request
func NewReleaseRequest(key string, ownerID []byte) *Message {
	return &Message{
		MsgType: MsgTLCKRelease,
		Key:     key,
		Value:   ownerID,
	}
}

// NewReleaseResponse creates a new Release response
func NewReleaseResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTLCKRelease,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVSet:
		return "set"
	case MsgTKVSetIfUnset:
		return "setIfUnset"
	case MsgTKVDelete:
		return "delete"
	case MsgTKVGetBoolean:
		return "getBoolean"
	case MsgTKVGetNumber:
		return "getNumber"
	case MsgTKVGetString:
		return "getString"
	case MsgTKVGetBuffer:
		return "getBuffer"
	case MsgTKVGet:
		return "get"
	case MsgTKVContains:
		return "contains"
	case MsgTKVAllKeys:
		return "allKeys"
	case MsgTKVDeleteAll:
		return "deleteAll"
	case MsgTKVRecrypt:
		return "recrypt"
	case MsgTKVTrim:
		return "trim"
	case MsgTKVSize:
		return "size"
	case MsgTLCKAcquire:
		return "acquire"
	case MsgTLCKRelease:
		return "release"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "set":
		*t = MsgTKVSet
	case "setIfUnset":
		*t = MsgTKVSetIfUnset
	case "delete":
		*t = MsgTKVDelete
	case "getBoolean":
		*t = MsgTKVGetBoolean
	case "getNumber":
		*t = MsgTKVGetNumber
	case "getString":
		*t = MsgTKVGetString
	case "getBuffer":
		*t = MsgTKVGetBuffer
	case "get":
		*t = MsgTKVGet
	case "contains":
		*t = MsgTKVContains
	case "allKeys":
		*t = MsgTKVAllKeys
	case "deleteAll":
		*t = MsgTKVDeleteAll
	case "recrypt":
		*t = MsgTKVRecrypt
	case "trim":
		*t = MsgTKVTrim
	case "size":
		*t = MsgTKVSize
	case "acquire":
		*t = MsgTLCKAcquire
	case "release":
		*t = MsgTLCKRelease
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVSet        // Set a key-value pair
	MsgTKVSetIfUnset // Set a key-value pair if not already set
	MsgTKVDelete     // Delete a key-value pair
	MsgTKVGetBoolean // Get a boolean by key
	MsgTKVGetNumber  // Get a number by key
	MsgTKVGetString  // Get a string by key
	MsgTKVGetBuffer  // Get a raw buffer by key
	MsgTKVGet        // Get a value by key regardless of type
	MsgTKVContains   // Check if a key exists
	MsgTKVAllKeys    // List all keys
	MsgTKVDeleteAll  // Remove all key-value pairs
	MsgTKVRecrypt    // Change the storage encryption key
	MsgTKVTrim       // Compact the backing storage
	MsgTKVSize       // Report the used storage size

	// ILockManager operations

	MsgTLCKAcquire // Acquire a lock
	MsgTLCKRelease // Release a lock

	// Custom operations

	MsgTCustom // Custom operation type
)
