package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/mirrorsync/internal/stats"
)

// plainPresenter outputs one line per applied change to w, and periodic
// progress to errW during long runs.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	verbose bool
}

func (p *plainPresenter) Run(events <-chan Event) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			ticks++
			if ticks%5 == 0 {
				p.printProgress()
			}
		}
	}
}

func (p *plainPresenter) handleEvent(ev Event) {
	path := FormatPath(ev.Path)
	switch ev.Type {
	case Uploaded:
		fmt.Fprintf(p.w, "%s %s  %s\n", styleUpload.Render(actionMarker("upload")), path, FormatBytes(ev.Size))
	case Downloaded:
		fmt.Fprintf(p.w, "%s %s  %s\n", styleDownload.Render(actionMarker("download")), path, FormatBytes(ev.Size))
	case Deleted:
		fmt.Fprintf(p.w, "%s %s\n", styleDelete.Render(actionMarker("delete")), path)
	case DirCreated:
		fmt.Fprintf(p.w, "%s %s/\n", styleDir.Render("+"), path)
	case Skipped:
		if p.verbose {
			fmt.Fprintf(p.w, "%s\n", styleMuted.Render("= "+path+"  unchanged"))
		}
	case TaskFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.errW, "%s %s\n", styleError.Render("failed:"), errMsg)
	case VerifyFailed:
		fmt.Fprintf(p.w, "%s %s\n", styleError.Render("MISMATCH:"), path)
	case ListCompleted:
		if p.verbose {
			fmt.Fprintf(p.errW, "%s\n", styleMuted.Render(fmt.Sprintf("listed %s (%d entries)", path, ev.Size)))
		}
	case SnapshotLoadFailed:
		fmt.Fprintf(p.errW, "%s sync state discarded: %v\n", styleError.Render("warning:"), ev.Error)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.TasksTotal == 0 {
		return
	}
	fmt.Fprintf(p.errW, "progress: %s/%s items  up %s  down %s  %s\n",
		FormatCount(snap.Done()), FormatCount(snap.TasksTotal),
		FormatBytes(snap.BytesUp), FormatBytes(snap.BytesDown),
		FormatRate(p.stats.RollingSpeed(5)),
	)
}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
