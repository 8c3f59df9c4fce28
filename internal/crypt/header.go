package crypt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/akiel/sealbox/internal/kdf"
)

// Container format:
//
//	[1B version][1B flags][2B iterations/1000 BE][16B salt]
//	[4B chunk size BE]                 (streaming only)
//	per record: [12B nonce][4B length BE][ciphertext||tag]
//
// The raw header bytes are bound into every record as AEAD associated
// data, so a container whose header was tampered with fails to open.
const (
	FormatVersion = 1

	// FlagStream marks a chunked container; FlagCompressed marks an
	// LZ4-compressed whole-file payload.
	FlagStream     = 0x01
	FlagCompressed = 0x02

	flagsKnown = FlagStream | FlagCompressed

	headerBaseSize = 1 + 1 + 2 + kdf.SaltSize
)

// Header holds the decoded container preamble.
type Header struct {
	Version    byte
	Flags      byte
	Iterations int
	Salt       []byte
	ChunkSize  int // valid only when Streamed
}

func (h *Header) Streamed() bool   { return h.Flags&FlagStream != 0 }
func (h *Header) Compressed() bool { return h.Flags&FlagCompressed != 0 }

// encode serializes the header. The returned bytes double as the AEAD
// associated data prefix for every record in the container.
func (h *Header) encode() []byte {
	size := headerBaseSize
	if h.Streamed() {
		size += 4
	}
	buf := make([]byte, 0, size)
	buf = append(buf, h.Version, h.Flags)
	buf = binary.BigEndian.AppendUint16(buf, uint16(h.Iterations/1000))
	buf = append(buf, h.Salt...)
	if h.Streamed() {
		buf = binary.BigEndian.AppendUint32(buf, uint32(h.ChunkSize))
	}
	return buf
}

// readHeader decodes and validates a container header, returning the
// header and its raw byte encoding.
func readHeader(r *bufio.Reader) (*Header, []byte, error) {
	raw := make([]byte, headerBaseSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: truncated header", ErrDecryptionFailed)
	}

	h := &Header{
		Version:    raw[0],
		Flags:      raw[1],
		Iterations: int(binary.BigEndian.Uint16(raw[2:4])) * 1000,
		Salt:       raw[4 : 4+kdf.SaltSize],
	}
	if h.Version != FormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format version %d", ErrDecryptionFailed, h.Version)
	}
	if h.Flags&^byte(flagsKnown) != 0 {
		return nil, nil, fmt.Errorf("%w: unknown header flags %#02x", ErrDecryptionFailed, h.Flags)
	}
	if h.Streamed() && h.Compressed() {
		return nil, nil, fmt.Errorf("%w: invalid flag combination %#02x", ErrDecryptionFailed, h.Flags)
	}
	if h.Iterations < kdf.MinIterations {
		return nil, nil, fmt.Errorf("%w: iteration count %d below minimum", ErrDecryptionFailed, h.Iterations)
	}

	if h.Streamed() {
		ext := make([]byte, 4)
		if _, err := io.ReadFull(r, ext); err != nil {
			return nil, nil, fmt.Errorf("%w: truncated header", ErrDecryptionFailed)
		}
		h.ChunkSize = int(binary.BigEndian.Uint32(ext))
		if h.ChunkSize < MinChunkSize || h.ChunkSize > MaxChunkSize {
			return nil, nil, fmt.Errorf("%w: invalid chunk size %d", ErrDecryptionFailed, h.ChunkSize)
		}
		raw = append(raw, ext...)
	}

	return h, raw, nil
}

// chunkAD builds the associated data for one streaming chunk: the raw
// header followed by the chunk index and a final-chunk marker. Binding
// the index rejects reordered records; binding the marker rejects
// containers truncated at a record boundary.
func chunkAD(headerRaw []byte, index uint64, last bool) []byte {
	ad := make([]byte, 0, len(headerRaw)+9)
	ad = append(ad, headerRaw...)
	ad = binary.BigEndian.AppendUint64(ad, index)
	if last {
		ad = append(ad, 1)
	} else {
		ad = append(ad, 0)
	}
	return ad
}
