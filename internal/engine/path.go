package engine

import (
	"path/filepath"
	"strings"
)

// SealSuffix is appended to encrypted output names.
const SealSuffix = ".sealed"

// openSuffix marks a decrypted output whose input did not carry
// SealSuffix, so an unrelated same-named file is never overwritten
// silently.
const openSuffix = ".opened"

// EncryptedPath derives the encrypted output path for input, relocating
// into outputDir when set. Pure; performs no I/O.
func EncryptedPath(input, outputDir string) string {
	out := input + SealSuffix
	if outputDir != "" {
		out = filepath.Join(outputDir, filepath.Base(out))
	}
	return out
}

// DecryptedPath derives the decrypted output path for input: the
// SealSuffix is stripped when present, otherwise openSuffix is appended.
// Pure; performs no I/O.
func DecryptedPath(input, outputDir string) string {
	var out string
	if strings.HasSuffix(input, SealSuffix) {
		out = strings.TrimSuffix(input, SealSuffix)
	} else {
		out = input + openSuffix
	}
	if outputDir != "" {
		out = filepath.Join(outputDir, filepath.Base(out))
	}
	return out
}
