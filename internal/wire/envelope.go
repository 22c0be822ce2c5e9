package wire

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// NonceSize is the GCM nonce length appended after the sealed payload.
const NonceSize = 12

// ErrSealedFrameTooShort is returned by Open when the input is shorter
// than a nonce, so no valid AEAD frame could possibly be present.
var ErrSealedFrameTooShort = errors.New("wire: sealed frame shorter than nonce")

// Seal encrypts plaintext under key with a freshly generated random
// 12-byte nonce using AES-256-GCM, returning
// ciphertext || tag || nonce.
func Seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wire: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wire: new gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("wire: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	return append(sealed, nonce...), nil
}

// Open splits the trailing 12 bytes off sealed as the nonce and decrypts
// the remainder (ciphertext||tag) under key. Any authentication failure
// or malformed input is reported as a single error; the control-plane
// handshake then terminates the connection, while the inbound data-plane
// forwarder drops the datagram and keeps the session.
func Open(key, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize {
		return nil, ErrSealedFrameTooShort
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("wire: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wire: new gcm: %w", err)
	}

	split := len(sealed) - NonceSize
	ciphertext, nonce := sealed[:split], sealed[split:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: open: %w", err)
	}
	return plaintext, nil
}

// XOR applies the keystream transform out[i] = in[i] ^ key[i % len(key)].
// It is its own inverse, so the same call encodes and decodes, and is
// used by the DNS relay (C5) to obfuscate queries and answers against a
// static shared key.
func XOR(data, key []byte) []byte {
	if len(key) == 0 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
