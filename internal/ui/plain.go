package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/akiel/sealbox/internal/event"
	"github.com/akiel/sealbox/internal/stats"
)

// plainPresenter outputs one line per completed file to stdout,
// and periodic progress to stderr.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	verbose bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.FileCompleted:
		mode := ""
		if ev.Streamed {
			mode = "  streamed"
		}
		fmt.Fprintf(p.w, "%s -> %s  %s%s\n", ev.Path, ev.OutputPath, FormatBytes(ev.BytesDone), mode)
	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s\n", ev.Path, errMsg)
	case event.FileSkipped:
		fmt.Fprintf(p.w, "%s  skipped (output exists)\n", ev.Path)
	case event.ConflictResolved:
		if p.verbose {
			fmt.Fprintf(p.w, "conflict: %s -> %s\n", ev.Path, ev.OutputPath)
		}
	case event.BackupCreated:
		if p.verbose {
			fmt.Fprintf(p.w, "backup: %s\n", ev.OutputPath)
		}
	case event.FileStarted:
		if p.verbose {
			fmt.Fprintf(p.w, "start: %s\n", ev.Path)
		}
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesIn) / float64(snap.BytesTotal) * 100
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files\n",
			pct,
			FormatBytes(snap.BytesIn), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesProcessed), FormatCount(snap.FilesTotal),
		)
	} else {
		fmt.Fprintf(p.errW, "progress: %s done %s files\n",
			FormatBytes(snap.BytesIn),
			FormatCount(snap.FilesProcessed),
		)
	}
}

func (p *plainPresenter) Summary() string {
	return completionSummary(p.stats.Snapshot())
}
