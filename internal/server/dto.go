package server

import (
	"fmt"

	"planline/internal/calendar"
	"planline/internal/domain"
	"planline/internal/paint"
)

// Request payloads

type ChecklistItemRequest struct {
	Text     string `json:"text"`
	Checked  bool   `json:"checked,omitempty"`
	IsPaused bool   `json:"is_paused,omitempty"`
}

type CreateTaskRequest struct {
	ID        *string                `json:"id,omitempty"`
	UserID    *string                `json:"user_id,omitempty"`
	Title     string                 `json:"title"`
	Memo      *string                `json:"memo,omitempty"`
	Deadline  *string                `json:"deadline,omitempty" format:"date-time"`
	StartAt   *string                `json:"start_at,omitempty" format:"date-time"`
	EndAt     *string                `json:"end_at,omitempty" format:"date-time"`
	Checklist []ChecklistItemRequest `json:"checklist,omitempty"`
}

type UpdateTaskRequest struct {
	Title     *string                `json:"title,omitempty"`
	Memo      *string                `json:"memo,omitempty"`
	Deadline  *string                `json:"deadline,omitempty" format:"date-time"`
	StartAt   *string                `json:"start_at,omitempty" format:"date-time"`
	EndAt     *string                `json:"end_at,omitempty" format:"date-time"`
	Checklist []ChecklistItemRequest `json:"checklist,omitempty"`
	Completed *bool                  `json:"completed,omitempty"`
}

type CreateMemoRequest struct {
	ID     *string `json:"id,omitempty"`
	UserID *string `json:"user_id,omitempty"`
	Body   string  `json:"body"`
	Pinned bool    `json:"pinned,omitempty"`
}

type UpdateMemoRequest struct {
	Body   *string `json:"body,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

type CreateAttachmentRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Path        string `json:"path"`
}

type CreateAlarmRequest struct {
	ID         *string `json:"id,omitempty"`
	UserID     *string `json:"user_id,omitempty"`
	Label      string  `json:"label,omitempty"`
	At         string  `json:"at" format:"date-time"`
	RepeatMask int     `json:"repeat_mask,omitempty" minimum:"0" maximum:"127"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

type UpdateAlarmRequest struct {
	Label      *string `json:"label,omitempty"`
	At         *string `json:"at,omitempty" format:"date-time"`
	RepeatMask *int    `json:"repeat_mask,omitempty" minimum:"0" maximum:"127"`
	Enabled    *bool   `json:"enabled,omitempty"`
}

type CreateEventRequest struct {
	ID      *string `json:"id,omitempty"`
	UserID  *string `json:"user_id,omitempty"`
	Title   string  `json:"title"`
	Memo    *string `json:"memo,omitempty"`
	Color   *string `json:"color,omitempty"`
	StartAt string  `json:"start_at" format:"date-time"`
	EndAt   string  `json:"end_at" format:"date-time"`
}

type UpdateEventRequest struct {
	Title   *string `json:"title,omitempty"`
	Memo    *string `json:"memo,omitempty"`
	Color   *string `json:"color,omitempty"`
	StartAt *string `json:"start_at,omitempty" format:"date-time"`
	EndAt   *string `json:"end_at,omitempty" format:"date-time"`
}

type FreeSlotsRequest struct {
	UserID             *string `json:"user_id,omitempty"`
	RangeStart         string  `json:"range_start"`
	RangeEnd           string  `json:"range_end"`
	Weekdays           []int   `json:"weekdays,omitempty"`
	WindowStart        *string `json:"window_start,omitempty"`
	WindowEnd          *string `json:"window_end,omitempty"`
	MarginMinutes      *int    `json:"margin_minutes,omitempty"`
	MinDurationMinutes *int    `json:"min_duration_minutes,omitempty"`
}

// PaintRunRequest paints slots [start, end) of one day a single color.
type PaintRunRequest struct {
	Start int    `json:"start" minimum:"0" maximum:"287"`
	End   int    `json:"end" minimum:"1" maximum:"288"`
	Color string `json:"color"`
}

type BulkEventsRequest struct {
	UserID *string                      `json:"user_id,omitempty"`
	Grid   map[string][]PaintRunRequest `json:"grid"`
	Cursor int                          `json:"cursor,omitempty" minimum:"0"`
}

type RegularTaskConfigRequest struct {
	UserID    *string                `json:"user_id,omitempty"`
	Checklist []ChecklistItemRequest `json:"checklist"`
}

// Response payloads

type FreeSlotResponse struct {
	Start string `json:"start" format:"date-time"`
	End   string `json:"end" format:"date-time"`
}

type FreeSlotsResponse struct {
	Slots    []FreeSlotResponse `json:"slots"`
	Text     string             `json:"text"`
	Warnings []WarningResponse  `json:"warnings,omitempty"`
}

type WarningResponse struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type BulkEventsResponse struct {
	CreatedIDs []string `json:"created_ids"`
	Cursor     int      `json:"cursor"`
}

type StatusResponse struct {
	OpenTasks     int `json:"open_tasks"`
	Memos         int `json:"memos"`
	EnabledAlarms int `json:"enabled_alarms"`
	Events        int `json:"events"`
}

func checklistFromRequest(items []ChecklistItemRequest) []domain.ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]domain.ChecklistItem, len(items))
	for i, it := range items {
		out[i] = domain.ChecklistItem{Text: it.Text, Checked: it.Checked, IsPaused: it.IsPaused}
	}
	return out
}

func warningResponses(warnings []calendar.Warning) []WarningResponse {
	out := make([]WarningResponse, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, WarningResponse{Source: w.Source, Error: w.Error})
	}
	return out
}

// gridFromRequest expands the sparse wire form into full day cells.
func gridFromRequest(wire map[string][]PaintRunRequest) (paint.Grid, error) {
	g := make(paint.Grid, len(wire))
	for day, runs := range wire {
		var cells paint.DayCells
		for _, run := range runs {
			if run.Start < 0 || run.End > paint.SlotsPerDay || run.Start >= run.End {
				return nil, fmt.Errorf("invalid run %d-%d on %s", run.Start, run.End, day)
			}
			for i := run.Start; i < run.End; i++ {
				cells[i] = paint.ColorKey(run.Color)
			}
		}
		g[day] = cells
	}
	return g, nil
}
