package fileset

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSize parses a human-readable size string into bytes, for the
// --chunk-size and --stream-threshold flags. Supports: 100, 100B, 100K,
// 100M, 100G, 100T (case-insensitive), using powers of 1024.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	multiplier := int64(1)
	numStr := s
	switch strings.ToUpper(s[len(s)-1:]) {
	case "B":
		numStr = s[:len(s)-1]
	case "K":
		multiplier = 1 << 10
		numStr = s[:len(s)-1]
	case "M":
		multiplier = 1 << 20
		numStr = s[:len(s)-1]
	case "G":
		multiplier = 1 << 30
		numStr = s[:len(s)-1]
	case "T":
		multiplier = 1 << 40
		numStr = s[:len(s)-1]
	}

	if numStr == "" {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	// Integer first, then float for inputs like "1.5G".
	if n, err := strconv.ParseInt(numStr, 10, 64); err == nil {
		return n * multiplier, nil
	}
	f, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size: %q", s)
	}
	return int64(f * float64(multiplier)), nil
}
