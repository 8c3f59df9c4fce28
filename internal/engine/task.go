package engine

import (
	"os"
	"time"
)

// Op selects the batch direction.
type Op int

const (
	OpEncrypt Op = iota
	OpDecrypt
)

func (o Op) String() string {
	if o == OpDecrypt {
		return "decrypt"
	}
	return "encrypt"
}

// FileTask describes a single file operation.
type FileTask struct {
	InputPath  string
	OutputPath string
	Size       int64
	Mode       os.FileMode
	ModTime    time.Time
	Stream     bool // encrypt in chunked mode (size over threshold, or forced)
}

// FileResult is the per-file outcome. A skipped file counts as a
// success: the conflict policy did its job.
type FileResult struct {
	InputPath    string
	OutputPath   string
	BackupPath   string
	Success      bool
	Skipped      bool
	Streamed     bool
	OriginalSize int64
	ResultSize   int64
	Err          error
}

// Result aggregates a whole batch. Files preserves input order
// regardless of completion order. Successful + Failed == Total.
type Result struct {
	Total      int
	Successful int
	Failed     int
	Skipped    int
	Streamed   int
	BytesIn    int64
	BytesOut   int64
	Elapsed    time.Duration
	Files      []FileResult
	Err        error // batch-level error (validation, cancellation)
}
