package calendar

import (
	"context"
	"fmt"
	"time"

	"planline/internal/interval"
	"planline/internal/repo"
)

// EventSource reads busy intervals from the local event store.
type EventSource struct {
	Repo repo.Repo
}

func (EventSource) Name() string { return "events" }

func (s EventSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	events, err := s.Repo.ListEvents(ctx, repo.EventFilters{
		UserID:     userID,
		RangeStart: rangeStart.UTC().Format(time.RFC3339),
		RangeEnd:   rangeEnd.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var busy []interval.Busy
	for _, e := range events {
		start, err := time.Parse(time.RFC3339, e.StartAt)
		if err != nil {
			return nil, fmt.Errorf("event %s start: %w", e.ID, err)
		}
		end, err := time.Parse(time.RFC3339, e.EndAt)
		if err != nil {
			return nil, fmt.Errorf("event %s end: %w", e.ID, err)
		}
		busy = append(busy, interval.EventBusy(start, end))
	}
	return busy, nil
}

// AlarmSource turns alarms into zero-width busy points. Repeating alarms
// are expanded onto every matching weekday inside the range.
type AlarmSource struct {
	Repo repo.Repo
}

func (AlarmSource) Name() string { return "alarms" }

func (s AlarmSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	alarms, err := s.Repo.ListEnabledAlarmsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	loc := rangeStart.Location()
	var busy []interval.Busy
	for _, a := range alarms {
		at, err := time.Parse(time.RFC3339, a.At)
		if err != nil {
			return nil, fmt.Errorf("alarm %s at: %w", a.ID, err)
		}
		if a.RepeatMask == 0 {
			if !at.Before(rangeStart) && at.Before(rangeEnd) {
				busy = append(busy, interval.AlarmBusy(at))
			}
			continue
		}
		at = at.In(loc)
		for day := rangeStart; day.Before(rangeEnd); day = day.AddDate(0, 0, 1) {
			if a.RepeatMask&(1<<uint(day.Weekday())) == 0 {
				continue
			}
			point := time.Date(day.Year(), day.Month(), day.Day(), at.Hour(), at.Minute(), 0, 0, loc)
			if !point.Before(rangeStart) && point.Before(rangeEnd) {
				busy = append(busy, interval.AlarmBusy(point))
			}
		}
	}
	return busy, nil
}

// TaskSource contributes tasks that occupy a fixed time range. Tasks with
// only a deadline are not busy time.
type TaskSource struct {
	Repo repo.Repo
}

func (TaskSource) Name() string { return "tasks" }

func (s TaskSource) FetchBusy(ctx context.Context, userID string, rangeStart, rangeEnd time.Time) ([]interval.Busy, error) {
	tasks, err := s.Repo.ListTimedTasks(ctx, userID, rangeStart.UTC().Format(time.RFC3339), rangeEnd.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list timed tasks: %w", err)
	}
	var busy []interval.Busy
	for _, t := range tasks {
		start, err := time.Parse(time.RFC3339, *t.StartAt)
		if err != nil {
			return nil, fmt.Errorf("task %s start: %w", t.ID, err)
		}
		end, err := time.Parse(time.RFC3339, *t.EndAt)
		if err != nil {
			return nil, fmt.Errorf("task %s end: %w", t.ID, err)
		}
		busy = append(busy, interval.TaskBusy(start, end))
	}
	return busy, nil
}
