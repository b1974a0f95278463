package internal

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// --------------------------------------------------------------------------
// File Header
// --------------------------------------------------------------------------

// Constants for the on-disk format
const (
	Magic         = "WILLOWKV" // File format identifier
	Version       = 1          // Log format version
	HeaderSize    = 32         // Fixed header: magic(8) version(1) flags(1) salt(16) reserved(6)
	FrameHeadSize = 8          // Per-record frame: length(4) crc(4)
	SaltSize      = 16
)

// Header flag bits
const (
	FlagEncrypted uint8 = 1 << 0
)

var (
	ErrBadMagic   = errors.New("invalid file format: magic number mismatch")
	ErrBadVersion = errors.New("unsupported log format version")
	ErrChecksum   = errors.New("record checksum mismatch")
	ErrTruncated  = errors.New("truncated record")
	ErrCipher     = errors.New("cannot decrypt record")
)

// Header is the fixed-size prefix of every log file.
type Header struct {
	Version uint8
	Flags   uint8
	Salt    [SaltSize]byte
}

// Encrypted reports whether the log was written with an encryption key.
func (h Header) Encrypted() bool {
	return h.Flags&FlagEncrypted != 0
}

// EncodeHeader serializes the header into a HeaderSize byte slice.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[:8], Magic)
	buf[8] = h.Version
	buf[9] = h.Flags
	copy(buf[10:10+SaltSize], h.Salt[:])
	return buf
}

// DecodeHeader parses and validates a file header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrTruncated
	}
	if string(buf[:8]) != Magic {
		return Header{}, ErrBadMagic
	}
	h := Header{
		Version: buf[8],
		Flags:   buf[9],
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: %d (expected %d)", ErrBadVersion, h.Version, Version)
	}
	copy(h.Salt[:], buf[10:10+SaltSize])
	return h, nil
}

// --------------------------------------------------------------------------
// Record Codec
// --------------------------------------------------------------------------

// Op identifies the type of a log record.
type Op uint8

const (
	OpSet    Op = 1 // key now holds the record's value
	OpDelete Op = 2 // key no longer holds a value
)

func (op Op) String() string {
	switch op {
	case OpSet:
		return "Set"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Record is a decoded log record.
type Record struct {
	Op    Op
	Key   string
	Value []byte
}

// EncodeRecord serializes a record into a full frame:
//
//	[length u32][crc32 u32][payload]
//
// The payload is [op u8][keyLen u16][key][value], sealed with the AEAD when one
// is provided (random nonce prepended to the ciphertext). The CRC-32 (IEEE) is
// computed over the stored payload bytes, so frame integrity can be verified
// without the encryption key.
func EncodeRecord(rec Record, aead cipher.AEAD) ([]byte, error) {
	if len(rec.Key) > 0xFFFF {
		return nil, fmt.Errorf("key too long: %d bytes", len(rec.Key))
	}

	payload := make([]byte, 3+len(rec.Key)+len(rec.Value))
	payload[0] = byte(rec.Op)
	binary.BigEndian.PutUint16(payload[1:3], uint16(len(rec.Key)))
	copy(payload[3:], rec.Key)
	copy(payload[3+len(rec.Key):], rec.Value)

	if aead != nil {
		sealed, err := Seal(aead, payload)
		if err != nil {
			return nil, err
		}
		payload = sealed
	}

	frame := make([]byte, FrameHeadSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	copy(frame[FrameHeadSize:], payload)
	return frame, nil
}

// DecodeFrame parses a full frame as produced by EncodeRecord.
// The buffer must contain exactly one frame.
func DecodeFrame(frame []byte, aead cipher.AEAD) (Record, error) {
	if len(frame) < FrameHeadSize {
		return Record{}, ErrTruncated
	}
	length := binary.BigEndian.Uint32(frame[0:4])
	if len(frame) < FrameHeadSize+int(length) {
		return Record{}, ErrTruncated
	}
	payload := frame[FrameHeadSize : FrameHeadSize+int(length)]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(frame[4:8]) {
		return Record{}, ErrChecksum
	}
	return decodePayload(payload, aead)
}

// decodePayload unseals (if needed) and parses the payload of a frame.
func decodePayload(payload []byte, aead cipher.AEAD) (Record, error) {
	if aead != nil {
		plain, err := Open(aead, payload)
		if err != nil {
			return Record{}, err
		}
		payload = plain
	}

	if len(payload) < 3 {
		return Record{}, ErrTruncated
	}

	op := Op(payload[0])
	keyLen := int(binary.BigEndian.Uint16(payload[1:3]))
	if len(payload) < 3+keyLen {
		return Record{}, ErrTruncated
	}

	rec := Record{
		Op:  op,
		Key: string(payload[3 : 3+keyLen]),
	}

	// Copy the value so the record does not alias the read buffer
	value := payload[3+keyLen:]
	if len(value) > 0 {
		rec.Value = make([]byte, len(value))
		copy(rec.Value, value)
	}

	return rec, nil
}
