package crypt

import (
	"bufio"
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/akiel/sealbox/internal/kdf"
)

// StreamInfo describes a completed stream operation.
type StreamInfo struct {
	Streamed bool  // container was in chunked mode
	Bytes    int64 // plaintext bytes processed
}

// EncryptStream seals src into a chunked container written to dst. Each
// chunk carries its own random nonce and is authenticated independently,
// with the chunk index and a final-chunk marker bound as associated
// data. total is the expected plaintext size, used only for progress
// reporting.
func (c *Codec) EncryptStream(ctx context.Context, src io.Reader, dst io.Writer, password []byte, total int64, progress ProgressFunc) error {
	salt, err := randomBytes(kdf.SaltSize)
	if err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	h := &Header{
		Version:    FormatVersion,
		Flags:      FlagStream,
		Iterations: c.iterations,
		Salt:       salt,
		ChunkSize:  c.chunkSize,
	}
	headerRaw := h.encode()

	aead, err := c.newAEAD(password, salt)
	if err != nil {
		return err
	}

	if _, err := dst.Write(headerRaw); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	br := bufio.NewReaderSize(src, c.chunkSize)
	buf := make([]byte, c.chunkSize)
	var (
		index uint64
		done  int64
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := io.ReadFull(br, buf)
		last := false
		switch {
		case rerr == nil:
			// Full chunk; peek to learn whether it is the final one.
			if _, perr := br.Peek(1); perr == io.EOF {
				last = true
			} else if perr != nil {
				return fmt.Errorf("read chunk: %w", perr)
			}
		case errors.Is(rerr, io.ErrUnexpectedEOF):
			last = true
		case errors.Is(rerr, io.EOF):
			// No bytes at all. Still emit one authenticated empty final
			// chunk so the container proves the plaintext ended here.
			last = true
			n = 0
		default:
			return fmt.Errorf("read chunk: %w", rerr)
		}

		rec, err := sealRecord(aead, buf[:n], chunkAD(headerRaw, index, last))
		if err != nil {
			return err
		}
		if _, err := dst.Write(rec); err != nil {
			return fmt.Errorf("write chunk: %w", err)
		}

		done += int64(n)
		if progress != nil {
			progress(done, total)
		}
		if last {
			return nil
		}
		index++
	}
}

// DecryptStream opens a container from src and writes the plaintext to
// dst, dispatching on the header's mode flag. Chunks are verified
// strictly in order; a chunk whose tag fails aborts the whole operation
// before any of that chunk's plaintext is emitted. total is the
// container size for progress reporting, zero when unknown.
func (c *Codec) DecryptStream(ctx context.Context, src io.Reader, dst io.Writer, password []byte, total int64, progress ProgressFunc) (*StreamInfo, error) {
	br := bufio.NewReaderSize(src, c.chunkSize)

	h, headerRaw, err := readHeader(br)
	if err != nil {
		return nil, err
	}

	aead, err := c.newAEADIter(password, h.Salt, h.Iterations)
	if err != nil {
		return nil, err
	}

	if !h.Streamed() {
		n, err := c.decryptWhole(br, dst, aead, h, headerRaw)
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(total, total)
		}
		return &StreamInfo{Streamed: false, Bytes: n}, nil
	}

	info := &StreamInfo{Streamed: true}
	var index uint64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		nonce, ct, err := readRecord(br, h.ChunkSize+TagSize)
		if err != nil {
			return nil, err
		}

		// EOF after this record means it must have been sealed as the
		// final chunk; a container truncated at a record boundary fails
		// authentication here.
		last := false
		if _, perr := br.Peek(1); perr == io.EOF {
			last = true
		} else if perr != nil {
			return nil, fmt.Errorf("read container: %w", perr)
		}

		plaintext, err := aead.Open(nil, nonce, ct, chunkAD(headerRaw, index, last))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d", ErrDecryptionFailed, index)
		}
		if _, err := dst.Write(plaintext); err != nil {
			return nil, fmt.Errorf("write plaintext: %w", err)
		}

		info.Bytes += int64(len(plaintext))
		if progress != nil {
			progress(info.Bytes, total)
		}
		if last {
			return info, nil
		}
		index++
	}
}

func (c *Codec) decryptWhole(br *bufio.Reader, dst io.Writer, aead cipher.AEAD, h *Header, headerRaw []byte) (int64, error) {
	maxLen := int(c.maxBuffer) + TagSize
	nonce, ct, err := readRecord(br, maxLen)
	if err != nil {
		return 0, err
	}
	if _, perr := br.Peek(1); perr != io.EOF {
		return 0, fmt.Errorf("%w: trailing data after record", ErrDecryptionFailed)
	}

	payload, err := aead.Open(nil, nonce, ct, headerRaw)
	if err != nil {
		return 0, ErrDecryptionFailed
	}

	if h.Compressed() {
		payload, err = decompressPayload(payload)
		if err != nil {
			return 0, err
		}
	}

	if _, err := dst.Write(payload); err != nil {
		return 0, fmt.Errorf("write plaintext: %w", err)
	}
	return int64(len(payload)), nil
}
