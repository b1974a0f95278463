package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// --------------------------------------------------------------------------
// Value Type
// --------------------------------------------------------------------------

// ValueType tags the runtime type of a stored value
type ValueType uint8

const (
	TypeBoolean ValueType = iota + 1 // 1: boolean
	TypeNumber                       // 2: 64-bit float
	TypeString                       // 3: utf-8 string
	TypeBuffer                       // 4: raw bytes
)

func (t ValueType) String() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBuffer:
		return "buffer"
	default:
		return "unknown"
	}
}

// Value is a tagged union of the types a store can hold. Exactly one of the
// payload fields is meaningful, selected by Type. Use the constructors below
// instead of filling the struct by hand.
type Value struct {
	Type    ValueType
	Boolean bool
	Number  float64
	String  string
	Buffer  []byte
}

// Boolean wraps a bool as a store value
func BooleanValue(v bool) Value { return Value{Type: TypeBoolean, Boolean: v} }

// Number wraps a float64 as a store value
func NumberValue(v float64) Value { return Value{Type: TypeNumber, Number: v} }

// String wraps a string as a store value
func StringValue(v string) Value { return Value{Type: TypeString, String: v} }

// Buffer wraps raw bytes as a store value
func BufferValue(v []byte) Value { return Value{Type: TypeBuffer, Buffer: v} }

// --------------------------------------------------------------------------
// Wire Encoding
// --------------------------------------------------------------------------

// EncodeValue serializes a value as a one byte type tag followed by the
// type specific payload. Numbers are stored as big endian IEEE 754 bits.
func EncodeValue(v Value) ([]byte, error) {
	switch v.Type {
	case TypeBoolean:
		if v.Boolean {
			return []byte{byte(TypeBoolean), 1}, nil
		}
		return []byte{byte(TypeBoolean), 0}, nil
	case TypeNumber:
		buf := make([]byte, 9)
		buf[0] = byte(TypeNumber)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.Number))
		return buf, nil
	case TypeString:
		buf := make([]byte, 1+len(v.String))
		buf[0] = byte(TypeString)
		copy(buf[1:], v.String)
		return buf, nil
	case TypeBuffer:
		buf := make([]byte, 1+len(v.Buffer))
		buf[0] = byte(TypeBuffer)
		copy(buf[1:], v.Buffer)
		return buf, nil
	default:
		return nil, NewError(RetCInvalidOperation, fmt.Sprintf("cannot encode value of type %d", v.Type))
	}
}

// DecodeValue deserializes a value encoded by EncodeValue
func DecodeValue(data []byte) (Value, error) {
	if len(data) < 1 {
		return Value{}, NewError(RetCInternalError, "value payload is empty")
	}

	switch ValueType(data[0]) {
	case TypeBoolean:
		if len(data) != 2 {
			return Value{}, NewError(RetCInternalError, "malformed boolean payload")
		}
		return BooleanValue(data[1] != 0), nil
	case TypeNumber:
		if len(data) != 9 {
			return Value{}, NewError(RetCInternalError, "malformed number payload")
		}
		return NumberValue(math.Float64frombits(binary.BigEndian.Uint64(data[1:]))), nil
	case TypeString:
		return StringValue(string(data[1:])), nil
	case TypeBuffer:
		buf := make([]byte, len(data)-1)
		copy(buf, data[1:])
		return BufferValue(buf), nil
	default:
		return Value{}, NewError(RetCInternalError, fmt.Sprintf("unknown value type tag %d", data[0]))
	}
}
