package resolve

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// HashFile computes the BLAKE3 digest of the file at path, hex-encoded.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FilesIdentical reports whether two files have identical content,
// comparing sizes first and BLAKE3 digests only when sizes match.
// Supports skip-if-identical policies on top of the Skip strategy.
func FilesIdentical(a, b string) (bool, error) {
	infoA, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if infoA.Size() != infoB.Size() {
		return false, nil
	}

	hashA, err := HashFile(a)
	if err != nil {
		return false, err
	}
	hashB, err := HashFile(b)
	if err != nil {
		return false, err
	}
	return hashA == hashB, nil
}
