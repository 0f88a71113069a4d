package interval

import (
	"strings"
	"time"
)

// FreeSlot is a gap inside a day's search window with duration >= the
// configured minimum.
type FreeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotConfig holds the parameters of one free-slot extraction.
type SlotConfig struct {
	// RangeStart and RangeEnd are whole days, inclusive on both ends.
	RangeStart time.Time
	RangeEnd   time.Time

	// Weekdays restricts which days are searched. A nil or empty set
	// means every weekday is allowed.
	Weekdays map[time.Weekday]bool

	// WindowStartMin and WindowEndMin bound each day's search window,
	// in minutes since midnight. A day whose window is empty or inverted
	// contributes zero slots; it does not fail the whole range.
	WindowStartMin int
	WindowEndMin   int

	Margin      time.Duration
	MinDuration time.Duration

	// Busy holds intervals grouped by source. Grouping is irrelevant to
	// the result; it exists so callers can hand over per-source fetches
	// without flattening first.
	Busy [][]Interval

	// Location anchors day boundaries. Defaults to time.Local.
	Location *time.Location
}

// FindFreeSlots sweeps every allowed day in the range, merges the buffered
// busy intervals against the day's window and emits the gaps of at least
// MinDuration. The function is pure: identical inputs give identical output.
func FindFreeSlots(cfg SlotConfig) []FreeSlot {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	var flat []Interval
	for _, src := range cfg.Busy {
		flat = append(flat, src...)
	}

	first := dayStart(cfg.RangeStart, loc)
	last := dayStart(cfg.RangeEnd, loc)

	var slots []FreeSlot
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if len(cfg.Weekdays) > 0 && !cfg.Weekdays[day.Weekday()] {
			continue
		}
		ws := day.Add(time.Duration(cfg.WindowStartMin) * time.Minute)
		we := day.Add(time.Duration(cfg.WindowEndMin) * time.Minute)
		if !we.After(ws) {
			continue
		}
		merged := Merge(flat, cfg.Margin, ws, we)
		pointer := ws
		for _, busy := range merged {
			if pointer.Before(busy.Start) && busy.Start.Sub(pointer) >= cfg.MinDuration {
				slots = append(slots, FreeSlot{Start: pointer, End: busy.Start})
			}
			if busy.End.After(pointer) {
				pointer = busy.End
			}
		}
		if pointer.Before(we) && we.Sub(pointer) >= cfg.MinDuration {
			slots = append(slots, FreeSlot{Start: pointer, End: we})
		}
	}
	return slots
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// FormatSlots renders slots one per line as "M/d(E) HH:mm 〜 HH:mm",
// in day then slot order, ready for the clipboard.
func FormatSlots(slots []FreeSlot) string {
	lines := make([]string, 0, len(slots))
	for _, s := range slots {
		lines = append(lines, FormatSlot(s))
	}
	return strings.Join(lines, "\n")
}

// FormatSlot renders a single slot line.
func FormatSlot(s FreeSlot) string {
	return s.Start.Format("1/2(Mon) 15:04") + " 〜 " + s.End.Format("15:04")
}
