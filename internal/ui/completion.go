package ui

import (
	"fmt"

	"github.com/akiel/sealbox/internal/stats"
)

// completionSummary builds a final summary line from a snapshot.
// Format: done ✓  files 48  in 2.1 GiB  out 2.1 GiB  avg 641 MB/s  time 3m 17s  errors 0
func completionSummary(snap stats.Snapshot) string {
	avgSpeed := 0.0
	if snap.Elapsed.Seconds() > 0 {
		avgSpeed = float64(snap.BytesIn) / snap.Elapsed.Seconds()
	}

	icon := "✓"
	if snap.FilesFailed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  files %s  in %s  out %s  avg %s  time %s",
		icon,
		FormatCount(snap.FilesProcessed),
		FormatBytes(snap.BytesIn),
		FormatBytes(snap.BytesOut),
		FormatRate(avgSpeed),
		FormatDuration(snap.Elapsed),
	)

	if snap.FilesSkipped > 0 {
		base += fmt.Sprintf("  skipped %s", FormatCount(snap.FilesSkipped))
	}
	if snap.FilesStreamed > 0 {
		base += fmt.Sprintf("  streamed %s", FormatCount(snap.FilesStreamed))
	}

	base += fmt.Sprintf("  errors %d", snap.FilesFailed)

	return base
}
