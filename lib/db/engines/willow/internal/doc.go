// Package internal implements the on-disk format of the willow engine.
//
// A willow log file consists of a fixed 32 byte header followed by a sequence
// of append-only record frames:
//
//	header:  magic(8) version(1) flags(1) salt(16) reserved(6)
//	frame:   length(4, big endian) crc32(4, IEEE) payload(length)
//	payload: op(1) keyLen(2) key(keyLen) value(rest)
//
// When the instance is encrypted the payload is sealed with AES-256-GCM (the
// random nonce is prepended to the ciphertext) before the CRC is computed, so
// torn or corrupted frames can be detected without the encryption key. The
// AES key is derived from the user key (at most 16 bytes) and the per-file
// salt via HKDF-SHA256.
//
// The package only deals with encoding and decoding; file management, the key
// directory and recovery live in the willow package itself.
package internal
