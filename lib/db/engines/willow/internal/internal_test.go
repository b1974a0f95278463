package internal

import (
	"bytes"
	"errors"
	"testing"
)

// TestHeaderRoundTrip tests encoding and decoding of the file header
func TestHeaderRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt failed: %v", err)
	}

	h := Header{Version: Version, Flags: FlagEncrypted, Salt: salt}
	buf := EncodeHeader(h)

	if len(buf) != HeaderSize {
		t.Fatalf("expected header size %d, got %d", HeaderSize, len(buf))
	}

	decoded, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if decoded.Version != h.Version || decoded.Flags != h.Flags || decoded.Salt != h.Salt {
		t.Errorf("decoded header does not match: %+v vs %+v", decoded, h)
	}
	if !decoded.Encrypted() {
		t.Error("expected Encrypted() to be true")
	}
}

// TestDecodeHeaderBadMagic tests that a wrong magic number is rejected
func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	copy(buf, "NOTWILLO")
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

// TestDecodeHeaderBadVersion tests that an unknown version is rejected
func TestDecodeHeaderBadVersion(t *testing.T) {
	buf := EncodeHeader(Header{Version: Version})
	buf[8] = Version + 1
	if _, err := DecodeHeader(buf); !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}

// TestRecordRoundTrip tests plaintext record encoding and decoding
func TestRecordRoundTrip(t *testing.T) {
	cases := []Record{
		{Op: OpSet, Key: "hello", Value: []byte("world")},
		{Op: OpSet, Key: "empty-value", Value: nil},
		{Op: OpDelete, Key: "gone"},
		{Op: OpSet, Key: "big", Value: bytes.Repeat([]byte("x"), 1<<16)},
	}

	for _, rec := range cases {
		frame, err := EncodeRecord(rec, nil)
		if err != nil {
			t.Fatalf("EncodeRecord(%q) failed: %v", rec.Key, err)
		}

		decoded, err := DecodeFrame(frame, nil)
		if err != nil {
			t.Fatalf("DecodeFrame(%q) failed: %v", rec.Key, err)
		}
		if decoded.Op != rec.Op || decoded.Key != rec.Key || !bytes.Equal(decoded.Value, rec.Value) {
			t.Errorf("record %q did not survive round trip", rec.Key)
		}
	}
}

// TestRecordChecksum tests that a flipped payload bit is detected
func TestRecordChecksum(t *testing.T) {
	frame, err := EncodeRecord(Record{Op: OpSet, Key: "k", Value: []byte("v")}, nil)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	frame[len(frame)-1] ^= 0xFF
	if _, err := DecodeFrame(frame, nil); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
}

// TestRecordTruncated tests that short frames are rejected
func TestRecordTruncated(t *testing.T) {
	frame, err := EncodeRecord(Record{Op: OpSet, Key: "key", Value: []byte("value")}, nil)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	for _, cut := range []int{1, FrameHeadSize - 1, len(frame) - 1} {
		if _, err := DecodeFrame(frame[:cut], nil); !errors.Is(err, ErrTruncated) {
			t.Errorf("cut=%d: expected ErrTruncated, got %v", cut, err)
		}
	}
}

// TestEncryptedRoundTrip tests sealing and unsealing of records
func TestEncryptedRoundTrip(t *testing.T) {
	salt, _ := NewSalt()
	aead, err := NewAEAD([]byte("hunter2"), salt)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}

	rec := Record{Op: OpSet, Key: "secret", Value: []byte("payload")}
	frame, err := EncodeRecord(rec, aead)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	// The plaintext must not appear in the stored frame
	if bytes.Contains(frame, []byte("payload")) || bytes.Contains(frame, []byte("secret")) {
		t.Error("plaintext leaked into encrypted frame")
	}

	decoded, err := DecodeFrame(frame, aead)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if decoded.Key != rec.Key || !bytes.Equal(decoded.Value, rec.Value) {
		t.Error("encrypted record did not survive round trip")
	}
}

// TestWrongKey tests that a record sealed with one key cannot be opened with another
func TestWrongKey(t *testing.T) {
	salt, _ := NewSalt()
	aead1, _ := NewAEAD([]byte("key-one"), salt)
	aead2, _ := NewAEAD([]byte("key-two"), salt)

	frame, err := EncodeRecord(Record{Op: OpSet, Key: "k", Value: []byte("v")}, aead1)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	if _, err := DecodeFrame(frame, aead2); !errors.Is(err, ErrCipher) {
		t.Errorf("expected ErrCipher, got %v", err)
	}
}

// TestKeyTooLong tests the 16 byte user key limit
func TestKeyTooLong(t *testing.T) {
	salt, _ := NewSalt()
	if _, err := NewAEAD(bytes.Repeat([]byte("a"), MaxUserKeyLen+1), salt); !errors.Is(err, ErrKeyTooLong) {
		t.Errorf("expected ErrKeyTooLong, got %v", err)
	}

	// Exactly 16 bytes is allowed
	if aead, err := NewAEAD(bytes.Repeat([]byte("a"), MaxUserKeyLen), salt); err != nil || aead == nil {
		t.Errorf("16 byte key should be accepted, got %v", err)
	}
}

// TestEmptyKeyYieldsNilAEAD tests that no key means plaintext
func TestEmptyKeyYieldsNilAEAD(t *testing.T) {
	salt, _ := NewSalt()
	aead, err := NewAEAD(nil, salt)
	if err != nil || aead != nil {
		t.Errorf("expected nil AEAD for empty key, got %v / %v", aead, err)
	}
}
