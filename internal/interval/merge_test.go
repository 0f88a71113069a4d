package interval

import (
	"testing"
	"time"
)

func at(t *testing.T, day string, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, time.UTC)
	if err != nil {
		t.Fatalf("parse %s %s: %v", day, clock, err)
	}
	return ts
}

func TestMergeBuffersAndMerges(t *testing.T) {
	ws := at(t, "2024-06-03", "10:00")
	we := at(t, "2024-06-03", "17:00")
	busy := []Interval{{Start: at(t, "2024-06-03", "12:00"), End: at(t, "2024-06-03", "12:30")}}
	got := Merge(busy, 30*time.Minute, ws, we)
	if len(got) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(got))
	}
	if !got[0].Start.Equal(at(t, "2024-06-03", "11:30")) || !got[0].End.Equal(at(t, "2024-06-03", "13:00")) {
		t.Fatalf("expected 11:30-13:00, got %v-%v", got[0].Start, got[0].End)
	}
}

func TestMergeTouchingIntervalsStaySeparate(t *testing.T) {
	// Exact-touch boundary: next.Start == curr.End does not merge.
	ws := at(t, "2024-06-03", "00:00")
	we := at(t, "2024-06-03", "23:59")
	busy := []Interval{
		{Start: at(t, "2024-06-03", "09:00"), End: at(t, "2024-06-03", "09:05")},
		{Start: at(t, "2024-06-03", "09:05"), End: at(t, "2024-06-03", "09:10")},
	}
	got := Merge(busy, 0, ws, we)
	if len(got) != 2 {
		t.Fatalf("touching intervals must stay separate, got %d merged", len(got))
	}
	if !got[0].End.Equal(got[1].Start) {
		t.Fatalf("expected zero gap between %v and %v", got[0].End, got[1].Start)
	}
}

func TestMergeOverlapAbsorbsContained(t *testing.T) {
	ws := at(t, "2024-06-03", "00:00")
	we := at(t, "2024-06-04", "00:00")
	busy := []Interval{
		{Start: at(t, "2024-06-03", "09:00"), End: at(t, "2024-06-03", "12:00")},
		{Start: at(t, "2024-06-03", "10:00"), End: at(t, "2024-06-03", "11:00")},
		{Start: at(t, "2024-06-03", "11:30"), End: at(t, "2024-06-03", "13:00")},
	}
	got := Merge(busy, 0, ws, we)
	if len(got) != 1 {
		t.Fatalf("expected single merged interval, got %d", len(got))
	}
	if !got[0].Start.Equal(at(t, "2024-06-03", "09:00")) || !got[0].End.Equal(at(t, "2024-06-03", "13:00")) {
		t.Fatalf("expected 09:00-13:00, got %v-%v", got[0].Start, got[0].End)
	}
}

func TestMergeDropsIntervalsOutsideWindow(t *testing.T) {
	ws := at(t, "2024-06-03", "10:00")
	we := at(t, "2024-06-03", "17:00")
	busy := []Interval{
		{Start: at(t, "2024-06-03", "08:00"), End: at(t, "2024-06-03", "09:00")},
		{Start: at(t, "2024-06-03", "18:00"), End: at(t, "2024-06-03", "19:00")},
		// Ends exactly at window start: no overlap, dropped.
		{Start: at(t, "2024-06-03", "09:30"), End: at(t, "2024-06-03", "10:00")},
		{Start: at(t, "2024-06-03", "12:00"), End: at(t, "2024-06-03", "12:30")},
	}
	got := Merge(busy, 0, ws, we)
	if len(got) != 1 {
		t.Fatalf("expected 1 interval inside window, got %d", len(got))
	}
}

func TestMergeOutputSortedAndDisjoint(t *testing.T) {
	ws := at(t, "2024-06-03", "00:00")
	we := at(t, "2024-06-04", "00:00")
	busy := []Interval{
		{Start: at(t, "2024-06-03", "15:00"), End: at(t, "2024-06-03", "16:00")},
		{Start: at(t, "2024-06-03", "09:00"), End: at(t, "2024-06-03", "09:45")},
		{Start: at(t, "2024-06-03", "09:30"), End: at(t, "2024-06-03", "10:15")},
		{Start: at(t, "2024-06-03", "12:00"), End: at(t, "2024-06-03", "12:00")},
	}
	got := Merge(busy, 5*time.Minute, ws, we)
	for i := 1; i < len(got); i++ {
		if got[i].Start.Before(got[i-1].End) {
			t.Fatalf("intervals %d and %d overlap: %v %v", i-1, i, got[i-1], got[i])
		}
	}
	for _, iv := range got {
		if !iv.End.After(ws) || !iv.Start.Before(we) {
			t.Fatalf("interval %v outside window", iv)
		}
	}
}

func TestBusyVariantNormalization(t *testing.T) {
	point := at(t, "2024-06-03", "07:30")
	b := AlarmBusy(point)
	iv := b.Interval()
	if !iv.Start.Equal(point) || !iv.End.Equal(point) {
		t.Fatalf("alarm must be a zero-width point, got %v-%v", iv.Start, iv.End)
	}
	// Inverted task range collapses to a point instead of corrupting the sweep.
	inv := TaskBusy(at(t, "2024-06-03", "12:00"), at(t, "2024-06-03", "11:00")).Interval()
	if !inv.End.Equal(inv.Start) {
		t.Fatalf("inverted range must collapse, got %v-%v", inv.Start, inv.End)
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"24:00", 1440, false},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"09:30junk", 0, true},
		{"09:30:00", 0, true},
		{"9:15 ", 0, true},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", c.in)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
	}
}
