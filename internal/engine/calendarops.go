package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"planline/internal/calendar"
	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/interval"
	"planline/internal/paint"
)

// EventCreateOptions are parameters for creating a calendar event.
type EventCreateOptions struct {
	ID      string
	UserID  string
	Title   string
	Memo    string
	Color   string
	StartAt string
	EndAt   string
	Source  string
}

func (e Engine) CreateEvent(ctx context.Context, opts EventCreateOptions) (domain.Event, error) {
	if opts.Title == "" {
		return domain.Event{}, errors.New("title is required")
	}
	start, err := time.Parse(time.RFC3339, opts.StartAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid start_at %q", opts.StartAt)
	}
	end, err := time.Parse(time.RFC3339, opts.EndAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("invalid end_at %q", opts.EndAt)
	}
	if !end.After(start) {
		return domain.Event{}, errors.New("end_at must be after start_at")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := timestamp(e.now())
	ev := domain.Event{
		ID:        id,
		UserID:    e.user(opts.UserID),
		Title:     opts.Title,
		Memo:      opts.Memo,
		Color:     opts.Color,
		StartAt:   timestamp(start),
		EndAt:     timestamp(end),
		Source:    opts.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertEvent(ctx, ev); err != nil {
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := e.logActivity(ctx, "event.create", ev.UserID, "event", ev.ID, events.Payload{"title": ev.Title, "source": ev.Source}); err != nil {
		return domain.Event{}, err
	}
	e.Cache.Invalidate(ev.UserID)
	return ev, nil
}

// EventUpdateOptions carries partial event updates; nil means keep.
type EventUpdateOptions struct {
	ID      string
	Title   *string
	Memo    *string
	Color   *string
	StartAt *string
	EndAt   *string
}

func (e Engine) UpdateEvent(ctx context.Context, opts EventUpdateOptions) (domain.Event, error) {
	ev, err := e.Repo.GetEvent(ctx, opts.ID)
	if err != nil {
		return domain.Event{}, err
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Event{}, errors.New("title is required")
		}
		ev.Title = *opts.Title
	}
	if opts.Memo != nil {
		ev.Memo = *opts.Memo
	}
	if opts.Color != nil {
		ev.Color = *opts.Color
	}
	if opts.StartAt != nil {
		t, err := time.Parse(time.RFC3339, *opts.StartAt)
		if err != nil {
			return domain.Event{}, fmt.Errorf("invalid start_at %q", *opts.StartAt)
		}
		ev.StartAt = timestamp(t)
	}
	if opts.EndAt != nil {
		t, err := time.Parse(time.RFC3339, *opts.EndAt)
		if err != nil {
			return domain.Event{}, fmt.Errorf("invalid end_at %q", *opts.EndAt)
		}
		ev.EndAt = timestamp(t)
	}
	if ev.EndAt <= ev.StartAt {
		return domain.Event{}, errors.New("end_at must be after start_at")
	}
	ev.UpdatedAt = timestamp(e.now())
	if err := e.Repo.UpdateEvent(ctx, ev); err != nil {
		return domain.Event{}, err
	}
	e.Cache.Invalidate(ev.UserID)
	return ev, nil
}

func (e Engine) DeleteEvent(ctx context.Context, id string) error {
	ev, err := e.Repo.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteEvent(ctx, id); err != nil {
		return err
	}
	e.Cache.Invalidate(ev.UserID)
	return nil
}

// FreeSlotOptions parameterize one free-slot search. Unset fields fall
// back to the configured defaults; the minute counts are pointers so an
// explicit zero is distinguishable from absent.
type FreeSlotOptions struct {
	UserID             string
	RangeStart         string // 2006-01-02
	RangeEnd           string // 2006-01-02
	Weekdays           []int  // 0=Sunday .. 6=Saturday
	WindowStart        string // HH:mm
	WindowEnd          string // HH:mm
	MarginMinutes      *int
	MinDurationMinutes *int
}

type FreeSlotResult struct {
	Slots    []interval.FreeSlot `json:"slots"`
	Text     string              `json:"text"`
	Warnings []calendar.Warning  `json:"warnings,omitempty"`
}

// FindFreeSlots fans out to every busy source and sweeps the gaps.
// Defaults come from config; a failed source degrades to a warning
// rather than failing the whole search.
func (e Engine) FindFreeSlots(ctx context.Context, opts FreeSlotOptions) (FreeSlotResult, error) {
	loc := e.Config.Location()
	if opts.RangeStart == "" || opts.RangeEnd == "" {
		return FreeSlotResult{}, errors.New("range_start and range_end are required")
	}
	rangeStart, err := time.ParseInLocation("2006-01-02", opts.RangeStart, loc)
	if err != nil {
		return FreeSlotResult{}, fmt.Errorf("invalid range_start %q", opts.RangeStart)
	}
	rangeEnd, err := time.ParseInLocation("2006-01-02", opts.RangeEnd, loc)
	if err != nil {
		return FreeSlotResult{}, fmt.Errorf("invalid range_end %q", opts.RangeEnd)
	}
	if rangeEnd.Before(rangeStart) {
		return FreeSlotResult{}, errors.New("range_end must not precede range_start")
	}

	windowStart := opts.WindowStart
	if windowStart == "" {
		windowStart = e.Config.FreeSlots.WindowStart
	}
	windowEnd := opts.WindowEnd
	if windowEnd == "" {
		windowEnd = e.Config.FreeSlots.WindowEnd
	}
	wsMin, err := interval.ParseClock(windowStart)
	if err != nil {
		return FreeSlotResult{}, fmt.Errorf("invalid window_start: %w", err)
	}
	weMin, err := interval.ParseClock(windowEnd)
	if err != nil {
		return FreeSlotResult{}, fmt.Errorf("invalid window_end: %w", err)
	}

	margin := e.Config.FreeSlots.MarginMinutes
	if opts.MarginMinutes != nil {
		margin = *opts.MarginMinutes
	}
	if margin < 0 {
		return FreeSlotResult{}, errors.New("margin_minutes must not be negative")
	}
	minDur := e.Config.FreeSlots.MinDurationMinutes
	if opts.MinDurationMinutes != nil {
		minDur = *opts.MinDurationMinutes
	}
	if minDur < 0 {
		return FreeSlotResult{}, errors.New("min_duration_minutes must not be negative")
	}
	days := opts.Weekdays
	if len(days) == 0 {
		days = e.Config.FreeSlots.Weekdays
	}
	weekdays := map[time.Weekday]bool{}
	for _, d := range days {
		if d < 0 || d > 6 {
			return FreeSlotResult{}, fmt.Errorf("invalid weekday %d", d)
		}
		weekdays[time.Weekday(d)] = true
	}

	userID := e.user(opts.UserID)
	// Fetch one day past the range end so buffered intervals that spill
	// over midnight are still seen.
	fetchStart := rangeStart.AddDate(0, 0, -1)
	fetchEnd := rangeEnd.AddDate(0, 0, 2)
	perSource, warnings := calendar.FetchAll(ctx, e.Sources, userID, fetchStart, fetchEnd)

	busy := make([][]interval.Interval, 0, len(perSource))
	for _, src := range perSource {
		busy = append(busy, interval.Flatten([][]interval.Busy{src}))
	}

	slots := interval.FindFreeSlots(interval.SlotConfig{
		RangeStart:     rangeStart,
		RangeEnd:       rangeEnd,
		Weekdays:       weekdays,
		WindowStartMin: wsMin,
		WindowEndMin:   weMin,
		Margin:         time.Duration(margin) * time.Minute,
		MinDuration:    time.Duration(minDur) * time.Minute,
		Busy:           busy,
		Location:       loc,
	})
	return FreeSlotResult{
		Slots:    slots,
		Text:     interval.FormatSlots(slots),
		Warnings: warnings,
	}, nil
}

// paintSink adapts event creation to the submitter, stamping paint
// provenance on every created event.
type paintSink struct {
	eng    Engine
	userID string
}

func (s paintSink) CreateEvent(ctx context.Context, req paint.CreateEventRequest) (string, error) {
	ev, err := s.eng.CreateEvent(ctx, EventCreateOptions{
		UserID:  s.userID,
		Title:   req.Title,
		Memo:    req.Memo,
		Color:   string(req.Color),
		StartAt: timestamp(req.Start),
		EndAt:   timestamp(req.End),
		Source:  "paint",
	})
	if err != nil {
		return "", err
	}
	return ev.ID, nil
}

// BulkCreateEvents compiles a painted grid and creates the resulting
// events one at a time. On failure the returned cursor points at the
// first request not yet created, so the same grid can be resubmitted
// with that cursor to resume.
func (e Engine) BulkCreateEvents(ctx context.Context, userID string, grid paint.Grid, cursor int) (paint.SubmitResult, error) {
	reqs, err := paint.Compile(grid, e.Config.PaintPalette(), e.Config.Location())
	if err != nil {
		return paint.SubmitResult{}, err
	}
	sub := paint.Submitter{Sink: paintSink{eng: e, userID: e.user(userID)}}
	return sub.Submit(ctx, reqs, cursor)
}
