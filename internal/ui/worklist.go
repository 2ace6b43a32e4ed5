package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/mirrorsync/internal/engine"
	"github.com/bamsammich/mirrorsync/internal/mirror"
)

// PrintWorklist writes one line per item in execution order, followed by a
// count. An empty worklist prints "up to date".
func PrintWorklist(w io.Writer, wl *engine.Worklist) {
	items := wl.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, styleMuted.Render("up to date"))
		return
	}

	counts := make(map[engine.Action]int)
	for _, it := range items {
		action := it.Action.String()
		marker := actionStyle(action).Render(actionMarker(action))
		fmt.Fprintf(w, "%s %-8s %s\n", marker, action, FormatPath(it.Path))
		counts[it.Action]++
	}

	fmt.Fprintf(w, "%s item(s): %d upload, %d download, %d delete\n",
		FormatCount(int64(len(items))),
		counts[engine.ActionUpload], counts[engine.ActionDownload], counts[engine.ActionDelete])
}

// PrintJournal writes journal entries, newest first.
func PrintJournal(w io.Writer, entries []engine.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, styleMuted.Render("no history"))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s %-8s %s  %s\n",
			styleMuted.Render(e.Time.Local().Format(time.DateTime)),
			actionStyle(e.Action).Render(actionMarker(e.Action)),
			e.Action,
			FormatPath(e.Path),
			FormatBytes(e.Size),
		)
	}
}

// PrintMirror writes the cached remote tree, one path per line, without
// contacting the server.
func PrintMirror(w io.Writer, eng *engine.Engine) {
	eng.Walk(func(p string, n mirror.Node) {
		suffix := ""
		if n.IsDir() {
			suffix = "/"
		}
		synced := styleMuted.Render("never synced")
		if !n.LocalSyncedAt.IsZero() {
			synced = n.LocalSyncedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s%s  %s  %s  %s\n", FormatPath(p), suffix, n.Kind, FormatBytes(n.Size), synced)
	})
}
