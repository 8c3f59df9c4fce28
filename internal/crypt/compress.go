package crypt

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// maxDecompressedSize bounds what a compressed payload may claim as its
// original length, so a corrupted header cannot trigger a huge allocation.
const maxDecompressedSize = DefaultMaxBuffer

// compressPayload LZ4-block-compresses plaintext, prefixing the original
// length. Returns false when compression does not shrink the payload
// (including empty or incompressible input), in which case the plaintext
// is stored as-is.
func compressPayload(plaintext []byte) ([]byte, bool) {
	if len(plaintext) == 0 {
		return nil, false
	}

	buf := make([]byte, 4+lz4.CompressBlockBound(len(plaintext)))
	n, err := lz4.CompressBlock(plaintext, buf[4:], nil)
	if err != nil || n == 0 || 4+n >= len(plaintext) {
		return nil, false
	}

	binary.BigEndian.PutUint32(buf[:4], uint32(len(plaintext)))
	return buf[:4+n], true
}

// decompressPayload reverses compressPayload. The payload has already
// been authenticated, so failures here indicate a format bug rather than
// tampering, but they are still surfaced as decryption failures.
func decompressPayload(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: compressed payload too short", ErrDecryptionFailed)
	}
	size := int(binary.BigEndian.Uint32(payload[:4]))
	if size > maxDecompressedSize {
		return nil, fmt.Errorf("%w: compressed payload claims %d bytes", ErrDecryptionFailed, size)
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(payload[4:], out)
	if err != nil || n != size {
		return nil, fmt.Errorf("%w: corrupt compressed payload", ErrDecryptionFailed)
	}
	return out, nil
}
