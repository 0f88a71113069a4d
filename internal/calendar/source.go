// Package calendar collects busy intervals from every provider the free
// time search consumes: the local event store, alarms, fixed-time tasks
// and external ICS subscriptions.
package calendar

import (
	"context"
	"sync"
	"time"

	"planline/internal/interval"
	"planline/internal/log"
)

// Source produces busy intervals for a user within a date range.
type Source interface {
	Name() string
	FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error)
}

// Warning reports a source that failed and was treated as empty.
type Warning struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FetchAll fans out to every source concurrently and joins before
// returning. A failed source degrades to an empty busy set with a warning
// instead of failing the whole computation.
func FetchAll(ctx context.Context, sources []Source, userID string, rangeStart, rangeEnd time.Time) ([][]interval.Busy, []Warning) {
	busy := make([][]interval.Busy, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			busy[i], errs[i] = src.FetchBusy(ctx, userID, rangeStart, rangeEnd)
		}(i, src)
	}
	wg.Wait()

	var warnings []Warning
	for i, err := range errs {
		if err == nil {
			continue
		}
		log.Error("busy source unavailable, continuing without it", err, "source", sources[i].Name())
		busy[i] = nil
		warnings = append(warnings, Warning{Source: sources[i].Name(), Error: err.Error()})
	}
	return busy, warnings
}
