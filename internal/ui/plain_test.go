package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/akiel/sealbox/internal/event"
	"github.com/akiel/sealbox/internal/stats"
)

func TestPlainPresenterFileCompleted(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan event.Event, 10)
	events <- event.Event{Type: event.FileCompleted, Path: "dir/file.txt", OutputPath: "dir/file.txt.sealed", BytesDone: 1024}
	events <- event.Event{Type: event.FileCompleted, Path: "dir/big.bin", OutputPath: "dir/big.bin.sealed", BytesDone: 1024 * 1024 * 100, Streamed: true}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "dir/file.txt.sealed")
	assert.NotContains(t, lines[0], "streamed")
	assert.Contains(t, lines[1], "dir/big.bin.sealed")
	assert.Contains(t, lines[1], "streamed")
}

func TestPlainPresenterFileFailed(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.FileFailed, Path: "fail.txt", Error: assert.AnError}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	assert.Contains(t, out.String(), "fail.txt")
	assert.Contains(t, out.String(), assert.AnError.Error())
}

func TestPlainPresenterFileSkipped(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.FileSkipped, Path: "skip.txt"}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	assert.Contains(t, out.String(), "skip.txt")
	assert.Contains(t, out.String(), "skipped")
}

func TestPlainPresenterVerboseConflict(t *testing.T) {
	var out bytes.Buffer
	var errOut bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &errOut, stats: collector, verbose: true}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.ConflictResolved, Path: "a.txt", OutputPath: "a.txt (1).sealed"}
	events <- event.Event{Type: event.BackupCreated, OutputPath: "a.txt.sealed.bak"}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)

	assert.Contains(t, out.String(), "conflict: a.txt -> a.txt (1).sealed")
	assert.Contains(t, out.String(), "backup: a.txt.sealed.bak")
}

func TestPlainPresenterQuietOnConflictByDefault(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()

	p := &plainPresenter{w: &out, errW: &bytes.Buffer{}, stats: collector}

	events := make(chan event.Event, 5)
	events <- event.Event{Type: event.ConflictResolved, Path: "a.txt"}
	events <- event.Event{Type: event.FileStarted, Path: "a.txt"}
	close(events)

	err := p.Run(events)
	assert.NoError(t, err)
	assert.Empty(t, out.String())
}

func TestPlainPresenterSummary(t *testing.T) {
	collector := stats.NewCollector()
	collector.AddFilesProcessed(100)
	collector.AddBytesIn(1024 * 1024)

	p := &plainPresenter{stats: collector}
	s := p.Summary()
	assert.Contains(t, s, "files 100")
	assert.Contains(t, s, "errors 0")
}

func TestQuietPresenterSilent(t *testing.T) {
	collector := stats.NewCollector()
	p := NewPresenter(Config{Quiet: true, Stats: collector})

	events := make(chan event.Event, 2)
	events <- event.Event{Type: event.FileCompleted, Path: "x"}
	close(events)

	assert.NoError(t, p.Run(events))
	assert.Empty(t, p.Summary())
}
