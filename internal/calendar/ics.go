package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"planline/internal/interval"
	"planline/internal/log"
)

// occurrenceCap bounds RRULE expansion per event so a malformed rule
// cannot blow up a request.
const occurrenceCap = 1000

// ICSSource subscribes to one external ICS feed. The feed is read-only;
// its events only contribute busy intervals.
type ICSSource struct {
	ID     string
	Label  string
	URL    string
	Client *http.Client
}

func NewICSSource(id, label, url string) *ICSSource {
	return &ICSSource{
		ID:     id,
		Label:  label,
		URL:    url,
		Client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *ICSSource) Name() string {
	if s.Label != "" {
		return "ics:" + s.Label
	}
	return "ics:" + s.ID
}

func (s *ICSSource) FetchBusy(ctx context.Context, _ string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ics %s: %w", s.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch ics %s: status %d", s.ID, resp.StatusCode)
	}
	cal, err := ical.ParseCalendar(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse ics %s: %w", s.ID, err)
	}

	var busy []interval.Busy
	for _, ve := range cal.Events() {
		occ, err := expandVEvent(ve, rangeStart, rangeEnd)
		if err != nil {
			// A single broken VEVENT must not sink the whole feed.
			log.Error("ics event skipped", err, "source", s.ID)
			continue
		}
		busy = append(busy, occ...)
	}
	return busy, nil
}

// expandVEvent turns one VEVENT into busy intervals inside the range,
// expanding RRULE recurrences and honoring EXDATE exclusions.
func expandVEvent(ve *ical.VEvent, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	start, err := ve.GetStartAt()
	if err != nil {
		return nil, fmt.Errorf("missing DTSTART")
	}
	end, err := ve.GetEndAt()
	if err != nil || end.Before(start) {
		end = start
	}

	rawRRule := ""
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rawRRule = p.Value
	}
	if rawRRule == "" {
		if end.After(rangeStart) && start.Before(rangeEnd) {
			return []interval.Busy{interval.EventBusy(start, end)}, nil
		}
		return nil, nil
	}

	r, err := rrule.StrToRRule(rawRRule)
	if err != nil {
		return nil, fmt.Errorf("parse RRULE %q: %w", rawRRule, err)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if ex, err := parseICSTime(strings.TrimSpace(part)); err == nil {
				set.ExDate(ex.In(start.Location()))
			}
		}
	}

	dur := end.Sub(start)
	occTimes := set.Between(rangeStart.In(start.Location()), rangeEnd.In(start.Location()), true)
	if len(occTimes) > occurrenceCap {
		occTimes = occTimes[:occurrenceCap]
	}
	busy := make([]interval.Busy, 0, len(occTimes))
	for _, occStart := range occTimes {
		busy = append(busy, interval.EventBusy(occStart, occStart.Add(dur)))
	}
	return busy, nil
}

func parseICSTime(v string) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, fmt.Errorf("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.Parse("20060102T150405", v)
	default:
		return time.Parse("20060102", v)
	}
}
