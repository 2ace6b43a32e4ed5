package ui

import (
	"fmt"

	"github.com/bamsammich/mirrorsync/internal/stats"
)

// CompletionSummary builds a final summary line from a snapshot.
// Format: done ✓  up 12 (3.1 MiB)  down 0 (0 B)  deleted 2  time 4s  errors 0
func CompletionSummary(snap stats.Snapshot) string {
	icon := "✓"
	if snap.Failed > 0 {
		icon = "✗"
	}

	base := fmt.Sprintf("done %s  up %s (%s)  down %s (%s)  deleted %s",
		icon,
		FormatCount(snap.Uploaded), FormatBytes(snap.BytesUp),
		FormatCount(snap.Downloaded), FormatBytes(snap.BytesDown),
		FormatCount(snap.Deleted),
	)
	if snap.Skipped > 0 {
		base += fmt.Sprintf("  unchanged %s", FormatCount(snap.Skipped))
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 && snap.BytesUp+snap.BytesDown > 0 {
		base += fmt.Sprintf("  avg %s", FormatRate(float64(snap.BytesUp+snap.BytesDown)/secs))
	}
	base += fmt.Sprintf("  time %s  errors %d", FormatDuration(snap.Elapsed), snap.Failed)

	return styleSummary.Render(base)
}
