package ui

import "github.com/bamsammich/mirrorsync/internal/stats"

// quietPresenter consumes events but produces no output.
type quietPresenter struct {
	stats *stats.Collector
}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
		// Counts live on the collector; nothing to render.
	}
	return nil
}

func (p *quietPresenter) Summary() string {
	return ""
}
