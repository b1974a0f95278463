package store

import (
	"bytes"
	"math"
	"testing"
)

func TestValueRoundTrip(t *testing.T) {
	values := []Value{
		BooleanValue(true),
		BooleanValue(false),
		NumberValue(0),
		NumberValue(42.5),
		NumberValue(-1e300),
		NumberValue(math.Inf(1)),
		StringValue(""),
		StringValue("hello world"),
		StringValue("umlauts äöü and emoji \U0001F680"),
		BufferValue(nil),
		BufferValue([]byte{0, 1, 2, 255}),
	}

	for _, original := range values {
		encoded, err := EncodeValue(original)
		if err != nil {
			t.Fatalf("unexpected error encoding %v: %v", original, err)
		}

		decoded, err := DecodeValue(encoded)
		if err != nil {
			t.Fatalf("unexpected error decoding %v: %v", original, err)
		}

		if decoded.Type != original.Type {
			t.Errorf("type mismatch: expected %v, got %v", original.Type, decoded.Type)
		}

		switch original.Type {
		case TypeBoolean:
			if decoded.Boolean != original.Boolean {
				t.Errorf("boolean mismatch: expected %v, got %v", original.Boolean, decoded.Boolean)
			}
		case TypeNumber:
			if decoded.Number != original.Number {
				t.Errorf("number mismatch: expected %v, got %v", original.Number, decoded.Number)
			}
		case TypeString:
			if decoded.String != original.String {
				t.Errorf("string mismatch: expected %q, got %q", original.String, decoded.String)
			}
		case TypeBuffer:
			if !bytes.Equal(decoded.Buffer, original.Buffer) {
				t.Errorf("buffer mismatch: expected %v, got %v", original.Buffer, decoded.Buffer)
			}
		}
	}
}

func TestValueNaN(t *testing.T) {
	encoded, err := EncodeValue(NumberValue(math.NaN()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := DecodeValue(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(decoded.Number) {
		t.Errorf("expected NaN to survive the round trip, got %v", decoded.Number)
	}
}

func TestDecodeValueRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,                      // empty
		{},                       // empty
		{99},                     // unknown tag
		{byte(TypeBoolean)},      // boolean without payload
		{byte(TypeBoolean), 1, 2}, // boolean with trailing bytes
		{byte(TypeNumber), 1, 2}, // truncated number
	}

	for _, data := range cases {
		if _, err := DecodeValue(data); err == nil {
			t.Errorf("expected error decoding %v", data)
		}
	}
}

func TestDecodeBufferIsCopy(t *testing.T) {
	encoded, _ := EncodeValue(BufferValue([]byte{1, 2, 3}))
	decoded, _ := DecodeValue(encoded)

	decoded.Buffer[0] = 99
	again, _ := DecodeValue(encoded)
	if again.Buffer[0] != 1 {
		t.Errorf("DecodeValue must return a copy of the buffer payload")
	}
}
