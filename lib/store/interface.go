package store

import (
	"fmt"

	"github.com/ValentinKolb/mKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// IStore is the typed interface for interacting with a key-value store.
// Values are stored as tagged unions (see Value), the typed getters return
// loaded=false when the key is missing OR holds a value of a different type.
// A type mismatch is not an error.
type IStore interface {
	// Set inserts or updates a key-value pair.
	Set(key string, value Value) (err error)
	// SetIfUnset inserts a key-value pair if the key does not exist.
	// If the key already exists, the old value is not updated.
	// The boolean return value reports whether the pair was inserted.
	SetIfUnset(key string, value Value) (inserted bool, err error)
	// Delete deletes a key-value pair. Deleting a missing key is not an error.
	Delete(key string) (err error)

	// GetBoolean returns the boolean stored under key.
	GetBoolean(key string) (value bool, loaded bool, err error)
	// GetNumber returns the number stored under key.
	GetNumber(key string) (value float64, loaded bool, err error)
	// GetString returns the string stored under key.
	GetString(key string) (value string, loaded bool, err error)
	// GetBuffer returns the raw byte buffer stored under key.
	GetBuffer(key string) (value []byte, loaded bool, err error)
	// Get returns the value stored under key regardless of its type.
	Get(key string) (value Value, loaded bool, err error)

	// Contains returns whether a key exists in the store.
	Contains(key string) (loaded bool, err error)
	// AllKeys returns all keys currently present, in no particular order.
	AllKeys() (keys []string, err error)

	// DeleteAll removes every key-value pair from the store.
	DeleteAll() (err error)
	// Recrypt re-encrypts the backing storage with the given key.
	// A nil key removes encryption.
	Recrypt(encryptionKey []byte) (err error)
	// Trim compacts the backing storage and drops in-memory caches.
	Trim() (err error)
	// Size returns the number of bytes actually used by the store.
	Size() (size uint64, err error)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("KVStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new KVStoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
)
