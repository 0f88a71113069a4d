package paint

import (
	"sort"
	"time"
)

// CreateEventRequest is one compiled run, ready for an event sink.
type CreateEventRequest struct {
	Title string    `json:"title"`
	Memo  string    `json:"memo,omitempty"`
	Color ColorKey  `json:"color"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Compile run-length-encodes the grid into the minimal list of contiguous
// same-color blocks and converts each into an absolute-time create request.
// Emission follows ascending day order, then slot order within a day; runs
// never span a day boundary. No zero-length request is ever produced.
func Compile(g Grid, p Palette, loc *time.Location) ([]CreateEventRequest, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var reqs []CreateEventRequest
	for _, key := range keys {
		cells := g[key]
		d, _ := time.ParseInLocation(DateKeyLayout, key, loc)
		base := time.Date(d.Year(), d.Month(), d.Day(), p.startHour(), 0, 0, 0, loc)

		runStart := -1
		var runColor ColorKey
		flush := func(end int) {
			reqs = append(reqs, CreateEventRequest{
				Title: p.TitleFor(runColor),
				Color: runColor,
				Start: base.Add(time.Duration(runStart*SlotMinutes) * time.Minute),
				End:   base.Add(time.Duration(end*SlotMinutes) * time.Minute),
			})
			runStart = -1
		}
		for i := 0; i < SlotsPerDay; i++ {
			c := cells[i]
			switch {
			case c.transparent():
				if runStart >= 0 {
					flush(i)
				}
			case runStart < 0:
				runStart, runColor = i, c
			case c != runColor:
				flush(i)
				runStart, runColor = i, c
			}
		}
		if runStart >= 0 {
			flush(SlotsPerDay)
		}
	}
	return reqs, nil
}
