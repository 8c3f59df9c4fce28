package kdf

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the derived key length in bytes (ChaCha20-Poly1305 key).
	KeySize = 32

	// SaltSize is the salt length written into the container header.
	SaltSize = 16

	// DefaultIterations is the PBKDF2 iteration count used for new containers.
	DefaultIterations = 600_000

	// MinIterations is the lowest iteration count accepted for both
	// encryption and decryption.
	MinIterations = 100_000
)

var (
	ErrEmptySalt     = errors.New("kdf: salt must not be empty")
	ErrLowIterations = fmt.Errorf("kdf: iteration count below minimum %d", MinIterations)
	ErrEmptyPassword = errors.New("kdf: password must not be empty")
)

// Derive computes a 32-byte key from password and salt using
// PBKDF2-HMAC-SHA256. It is deterministic: identical inputs yield an
// identical key. The caller owns the returned slice and should pass it
// to Zero once the key is no longer needed.
func Derive(password, salt []byte, iterations int) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(salt) == 0 {
		return nil, ErrEmptySalt
	}
	if iterations < MinIterations {
		return nil, ErrLowIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), nil
}

// Zero overwrites b with zeroes. Used to scrub derived keys and password
// buffers once an operation completes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
