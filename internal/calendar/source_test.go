package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"planline/internal/interval"
)

type failingSource struct {
	name string
	err  error
}

func (s failingSource) Name() string { return s.name }

func (s failingSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	return nil, s.err
}

func TestFetchAllDegradesFailedSource(t *testing.T) {
	healthy := &countingSource{busy: []interval.Busy{{
		Kind:  interval.BusyEvent,
		Start: time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 3, 11, 0, 0, 0, time.UTC),
	}}}
	broken := failingSource{name: "ics:team", err: errors.New("connection refused")}

	rangeStart := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	busy, warnings := FetchAll(context.Background(), []Source{healthy, broken}, "u1", rangeStart, rangeEnd)

	if len(busy) != 2 {
		t.Fatalf("expected a busy slot per source, got %d", len(busy))
	}
	if len(busy[0]) != 1 {
		t.Fatalf("healthy source lost its intervals: %+v", busy[0])
	}
	if busy[1] != nil {
		t.Fatalf("failed source should contribute an empty set, got %+v", busy[1])
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %+v, want exactly one", warnings)
	}
	if warnings[0].Source != "ics:team" {
		t.Fatalf("warning source = %q, want ics:team", warnings[0].Source)
	}
	if warnings[0].Error != "connection refused" {
		t.Fatalf("warning error = %q", warnings[0].Error)
	}
}

func TestFetchAllNoWarningsWhenAllSucceed(t *testing.T) {
	busy, warnings := FetchAll(context.Background(), []Source{&countingSource{}}, "u1",
		time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC))
	if len(busy) != 1 || len(warnings) != 0 {
		t.Fatalf("busy = %+v, warnings = %+v", busy, warnings)
	}
}
