// Package crypt implements the sealbox container format: password-derived
// ChaCha20-Poly1305 encryption of byte buffers and of chunked streams.
package crypt

import (
	"bufio"
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/akiel/sealbox/internal/kdf"
)

const (
	NonceSize = chacha20poly1305.NonceSize
	TagSize   = chacha20poly1305.Overhead

	// DefaultChunkSize is the streaming chunk size.
	DefaultChunkSize = 64 * 1024
	MinChunkSize     = 4 * 1024
	MaxChunkSize     = 64 * 1024 * 1024

	// DefaultMaxBuffer caps whole-file (in-memory) operation size.
	DefaultMaxBuffer = 1 << 30
)

// ErrDecryptionFailed covers authentication tag mismatch, a malformed or
// tampered container, and wrong-password failures. No partial plaintext
// is ever produced alongside it.
var ErrDecryptionFailed = errors.New("decryption failed")

// ErrTooLarge is returned when a buffer exceeds the in-memory ceiling.
var ErrTooLarge = errors.New("input exceeds in-memory buffer ceiling")

// ProgressFunc receives cumulative progress for streaming operations.
// It is side-effect only; errors cannot be signalled through it.
type ProgressFunc func(done, total int64)

// Codec encrypts and decrypts sealbox containers.
type Codec struct {
	iterations int
	chunkSize  int
	compress   bool
	maxBuffer  int64
}

// Option configures a Codec.
type Option func(*Codec)

// WithIterations sets the PBKDF2 iteration count for new containers.
// The count is rounded up to a multiple of 1000 to fit the header encoding.
func WithIterations(n int) Option {
	return func(c *Codec) { c.iterations = n }
}

// WithChunkSize sets the streaming chunk size.
func WithChunkSize(n int) Option {
	return func(c *Codec) { c.chunkSize = n }
}

// WithCompression enables LZ4 compression of whole-file payloads.
func WithCompression(enabled bool) Option {
	return func(c *Codec) { c.compress = enabled }
}

// WithMaxBuffer sets the whole-file in-memory size ceiling.
func WithMaxBuffer(n int64) Option {
	return func(c *Codec) { c.maxBuffer = n }
}

// New creates a Codec, validating option values.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{
		iterations: kdf.DefaultIterations,
		chunkSize:  DefaultChunkSize,
		maxBuffer:  DefaultMaxBuffer,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.iterations < kdf.MinIterations {
		return nil, fmt.Errorf("iterations %d below minimum %d", c.iterations, kdf.MinIterations)
	}
	if rem := c.iterations % 1000; rem != 0 {
		c.iterations += 1000 - rem
	}
	if c.chunkSize < MinChunkSize || c.chunkSize > MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d outside [%d, %d]", c.chunkSize, MinChunkSize, MaxChunkSize)
	}
	if c.maxBuffer <= 0 {
		return nil, fmt.Errorf("max buffer must be positive, got %d", c.maxBuffer)
	}
	return c, nil
}

// ChunkSize returns the configured streaming chunk size.
func (c *Codec) ChunkSize() int { return c.chunkSize }

// Encrypt seals plaintext into a whole-file container. Every call
// generates a fresh salt and nonce, so encrypting the same plaintext
// twice yields different bytes.
func (c *Codec) Encrypt(plaintext, password []byte) ([]byte, error) {
	if int64(len(plaintext)) > c.maxBuffer {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(plaintext))
	}

	salt, err := randomBytes(kdf.SaltSize)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	var flags byte
	payload := plaintext
	if c.compress {
		if packed, ok := compressPayload(plaintext); ok {
			payload = packed
			flags |= FlagCompressed
		}
	}

	h := &Header{
		Version:    FormatVersion,
		Flags:      flags,
		Iterations: c.iterations,
		Salt:       salt,
	}
	headerRaw := h.encode()

	aead, err := c.newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	rec, err := sealRecord(aead, payload, headerRaw)
	if err != nil {
		return nil, err
	}
	return append(headerRaw, rec...), nil
}

// Decrypt opens a container produced by Encrypt or EncryptStream,
// returning the plaintext. Any tag mismatch, truncation, or header
// tampering yields ErrDecryptionFailed with no output.
func (c *Codec) Decrypt(data, password []byte) ([]byte, error) {
	var out bytes.Buffer
	if _, err := c.DecryptStream(context.Background(), bytes.NewReader(data), &out, password, 0, nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *Codec) newAEAD(password, salt []byte) (cipher.AEAD, error) {
	return c.newAEADIter(password, salt, c.iterations)
}

func (c *Codec) newAEADIter(password, salt []byte, iterations int) (cipher.AEAD, error) {
	key, err := kdf.Derive(password, salt, iterations)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	defer kdf.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return aead, nil
}

// sealRecord encrypts one payload under a fresh random nonce and frames
// it as [nonce][length][ciphertext||tag].
func sealRecord(aead cipher.AEAD, plaintext, ad []byte) ([]byte, error) {
	nonce, err := randomBytes(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ct := aead.Seal(nil, nonce, plaintext, ad)

	rec := make([]byte, 0, NonceSize+4+len(ct))
	rec = append(rec, nonce...)
	rec = binary.BigEndian.AppendUint32(rec, uint32(len(ct)))
	rec = append(rec, ct...)
	return rec, nil
}

// readRecord reads one framed record. maxLen bounds the ciphertext
// length a header-declared chunk size permits.
func readRecord(r *bufio.Reader, maxLen int) (nonce, ct []byte, err error) {
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated record", ErrDecryptionFailed)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated record", ErrDecryptionFailed)
	}
	n := int(binary.BigEndian.Uint32(lenBuf[:]))
	if n < TagSize || n > maxLen {
		return nil, nil, fmt.Errorf("%w: invalid record length %d", ErrDecryptionFailed, n)
	}

	ct = make([]byte, n)
	if _, err := io.ReadFull(r, ct); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated record", ErrDecryptionFailed)
	}
	return nonce, ct, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
