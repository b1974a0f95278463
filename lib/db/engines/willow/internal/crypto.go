package internal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// --------------------------------------------------------------------------
// Key Derivation and AEAD Sealing
// --------------------------------------------------------------------------

// MaxUserKeyLen is the maximum length of a user-supplied encryption key.
// MMKV-compatible instances accept keys of at most 16 bytes; the actual
// AES-256 key is derived from the user key and the per-file salt via
// HKDF-SHA256, so short user keys still drive a full-length cipher key.
const MaxUserKeyLen = 16

const (
	aeadKeyLen = 32 // AES-256
	hkdfInfo   = "willow.aead.v1"
)

var (
	// ErrKeyTooLong is returned when the user key exceeds MaxUserKeyLen.
	ErrKeyTooLong = errors.New("encryption key is longer than 16 bytes")
)

// NewAEAD derives an AES-256-GCM cipher from a user key and the file salt.
// A nil or empty user key yields a nil AEAD (plaintext log).
func NewAEAD(userKey []byte, salt [SaltSize]byte) (cipher.AEAD, error) {
	if len(userKey) == 0 {
		return nil, nil
	}
	if len(userKey) > MaxUserKeyLen {
		return nil, ErrKeyTooLong
	}

	key := make([]byte, aeadKeyLen)
	kdf := hkdf.New(sha256.New, userKey, salt[:], []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// NewSalt creates a fresh random salt for a new log file.
func NewSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	_, err := rand.Read(salt[:])
	return salt, err
}

// Seal encrypts a payload with a random nonce. The nonce is prepended to the
// ciphertext so the stored payload is self-contained.
func Seal(aead cipher.AEAD, plain []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts a stored payload produced by Seal.
func Open(aead cipher.AEAD, stored []byte) ([]byte, error) {
	if len(stored) < aead.NonceSize() {
		return nil, ErrCipher
	}
	nonce, ciphertext := stored[:aead.NonceSize()], stored[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCipher
	}
	return plain, nil
}
