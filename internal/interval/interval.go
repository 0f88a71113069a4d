package interval

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Interval is a half-open-agnostic busy time range with Start <= End.
// A zero-width interval (Start == End) is a point, used for alarms.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// BusyKind discriminates the origin of a busy interval.
type BusyKind string

const (
	BusyEvent BusyKind = "event"
	BusyTask  BusyKind = "task"
	BusyAlarm BusyKind = "alarm"
)

// Busy is the tagged variant produced by interval sources. It is converted
// into a plain Interval once, at the source boundary, so the algorithms
// never branch on field presence.
type Busy struct {
	Kind  BusyKind
	Start time.Time
	End   time.Time
}

// EventBusy wraps a calendar event time range.
func EventBusy(start, end time.Time) Busy {
	return Busy{Kind: BusyEvent, Start: start, End: end}
}

// TaskBusy wraps a task with a fixed time range ending at its deadline.
func TaskBusy(start, deadline time.Time) Busy {
	return Busy{Kind: BusyTask, Start: start, End: deadline}
}

// AlarmBusy wraps an alarm as a zero-width point in time.
func AlarmBusy(at time.Time) Busy {
	return Busy{Kind: BusyAlarm, Start: at, End: at}
}

// Interval normalizes the variant into a plain interval. Inverted ranges
// are collapsed to a point at Start so malformed source data cannot break
// the merge invariant.
func (b Busy) Interval() Interval {
	if b.End.Before(b.Start) {
		return Interval{Start: b.Start, End: b.Start}
	}
	return Interval{Start: b.Start, End: b.End}
}

// Flatten converts busy variants from several sources into one interval list.
func Flatten(sources [][]Busy) []Interval {
	var out []Interval
	for _, src := range sources {
		for _, b := range src {
			out = append(out, b.Interval())
		}
	}
	return out
}

// ParseClock parses a "HH:mm" time-of-day into minutes since midnight.
// The whole string must be the clock value; trailing garbage is rejected.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}
