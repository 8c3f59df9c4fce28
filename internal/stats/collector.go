// Package stats tracks aggregate batch counters using lock-free atomics.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector accumulates batch-wide counters. Safe for concurrent use by
// all file workers.
type Collector struct {
	filesProcessed atomic.Int64
	filesFailed    atomic.Int64
	filesSkipped   atomic.Int64
	filesStreamed  atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	bytesTotal     atomic.Int64
	filesTotal     atomic.Int64
	startTime      time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the batch totals once task building completes.
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesProcessed(n int64) { c.filesProcessed.Add(n) }
func (c *Collector) AddFilesFailed(n int64)    { c.filesFailed.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)   { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesStreamed(n int64)  { c.filesStreamed.Add(n) }
func (c *Collector) AddBytesIn(n int64)        { c.bytesIn.Add(n) }
func (c *Collector) AddBytesOut(n int64)       { c.bytesOut.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesProcessed int64
	FilesFailed    int64
	FilesSkipped   int64
	FilesStreamed  int64
	BytesIn        int64
	BytesOut       int64
	BytesTotal     int64
	FilesTotal     int64
	Elapsed        time.Duration
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesProcessed: c.filesProcessed.Load(),
		FilesFailed:    c.filesFailed.Load(),
		FilesSkipped:   c.filesSkipped.Load(),
		FilesStreamed:  c.filesStreamed.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		FilesTotal:     c.filesTotal.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"processed=%d failed=%d skipped=%d streamed=%d in=%d out=%d",
		s.FilesProcessed, s.FilesFailed, s.FilesSkipped, s.FilesStreamed,
		s.BytesIn, s.BytesOut,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
