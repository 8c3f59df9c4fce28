//go:build !linux

// Package platform holds the thin OS-specific layer under the engine.
package platform

import "os"

// Preallocate is a no-op on non-Linux platforms (fallocate is Linux-only).
func Preallocate(_ *os.File, _ int64) {}
