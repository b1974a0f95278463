package lockmgr

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"
)

const (
	ownerIDLength = 32                            // Owner ID length in bytes (256 bit random value)
	recordLength  = ownerIDLength + 8             // Owner ID plus big endian unix deadline
)

var errMalformedLock = errors.New("malformed lock record")

// generateOwnerID creates a new unique owner ID
// The owner ID is a random byte slice of length 256 bit.
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDLength)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}

// encodeLock serializes a lock record as ownerID || deadline.
// A timeout of zero encodes a zero deadline, meaning the lock never expires.
func encodeLock(ownerID []byte, timeoutSec uint64) []byte {
	record := make([]byte, recordLength)
	copy(record, ownerID)
	if timeoutSec > 0 {
		deadline := time.Now().Add(time.Duration(timeoutSec) * time.Second).Unix()
		binary.BigEndian.PutUint64(record[ownerIDLength:], uint64(deadline))
	}
	return record
}

// decodeLock splits a lock record into owner ID and deadline
func decodeLock(record []byte) (ownerID []byte, deadline int64, err error) {
	if len(record) != recordLength {
		return nil, 0, errMalformedLock
	}
	return record[:ownerIDLength], int64(binary.BigEndian.Uint64(record[ownerIDLength:])), nil
}

// expired reports whether a lock deadline has passed. A zero deadline never expires.
func expired(deadline int64) bool {
	return deadline != 0 && time.Now().Unix() > deadline
}
