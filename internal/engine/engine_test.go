package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/migrate"
	"planline/internal/paint"
	"planline/internal/repo"
)

func newTestEngine(t *testing.T) Engine {
	t.Helper()
	conn, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Normalize()
	eng := New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC) }
	return eng
}

func TestCreateTaskRequiresPairedTimes(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateTask(ctx, TaskCreateOptions{Title: "half timed", StartAt: "2024-06-03T10:00:00Z"})
	if err == nil {
		t.Fatal("expected error for start_at without end_at")
	}

	task, err := eng.CreateTask(ctx, TaskCreateOptions{
		Title:   "timed",
		StartAt: "2024-06-03T10:00:00Z",
		EndAt:   "2024-06-03T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.UserID != eng.Config.DefaultUser {
		t.Fatalf("user = %q, want default", task.UserID)
	}
	got, err := eng.Repo.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartAt == nil || *got.StartAt != "2024-06-03T10:00:00Z" {
		t.Fatalf("start_at = %v", got.StartAt)
	}
}

func TestToggleChecklistItem(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	task, err := eng.CreateTask(ctx, TaskCreateOptions{
		Title: "packing",
		Checklist: []domain.ChecklistItem{
			{Text: "passport"},
			{Text: "charger"},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task, err = eng.ToggleChecklistItem(ctx, task.ID, 1)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if task.Checklist[0].Checked || !task.Checklist[1].Checked {
		t.Fatalf("checklist = %+v", task.Checklist)
	}
	if _, err := eng.ToggleChecklistItem(ctx, task.ID, 5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestGenerateRegularTasksIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.UpsertRegularTaskConfig(ctx, "", domain.RegularDaily, []domain.ChecklistItem{
		{Text: "stretch"},
		{Text: "journal", Checked: true},
		{Text: "skipped", IsPaused: true},
	})
	if err != nil {
		t.Fatalf("upsert daily: %v", err)
	}
	_, err = eng.UpsertRegularTaskConfig(ctx, "", domain.RegularWeekly, []domain.ChecklistItem{
		{Text: "review week"},
	})
	if err != nil {
		t.Fatalf("upsert weekly: %v", err)
	}

	// 2024-06-03 is a Monday.
	now := time.Date(2024, 6, 3, 0, 5, 0, 0, time.UTC)
	created, err := eng.GenerateRegularTasks(ctx, now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d tasks, want 2", len(created))
	}

	var daily, weekly domain.Task
	for _, c := range created {
		if strings.HasPrefix(c.Title, "デイリー") {
			daily = c
		} else {
			weekly = c
		}
	}
	if daily.Title != "デイリータスク 6/3" {
		t.Fatalf("daily title = %q", daily.Title)
	}
	if len(daily.Checklist) != 2 {
		t.Fatalf("daily checklist = %+v", daily.Checklist)
	}
	for _, it := range daily.Checklist {
		if it.Checked || it.IsPaused {
			t.Fatalf("checklist item not reset: %+v", it)
		}
	}
	if daily.Deadline == nil || *daily.Deadline != "2024-06-04T03:59:00Z" {
		t.Fatalf("daily deadline = %v", daily.Deadline)
	}
	if weekly.Title != "ウィークリータスク 6月第1週" {
		t.Fatalf("weekly title = %q", weekly.Title)
	}
	if weekly.Deadline == nil || *weekly.Deadline != "2024-06-10T03:59:00Z" {
		t.Fatalf("weekly deadline = %v", weekly.Deadline)
	}

	// Same day again: nothing new.
	again, err := eng.GenerateRegularTasks(ctx, now.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("regenerated %d tasks, want 0", len(again))
	}

	// Thursday of the same week: a new daily, but the weekly holds.
	thursday := time.Date(2024, 6, 6, 0, 5, 0, 0, time.UTC)
	more, err := eng.GenerateRegularTasks(ctx, thursday)
	if err != nil {
		t.Fatalf("generate thursday: %v", err)
	}
	if len(more) != 1 || !strings.HasPrefix(more[0].Title, "デイリー") {
		t.Fatalf("thursday created %+v", more)
	}
}

func TestGenerateRegularTasksSkipsAllPaused(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.UpsertRegularTaskConfig(ctx, "", domain.RegularDaily, []domain.ChecklistItem{
		{Text: "a", IsPaused: true},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	created, err := eng.GenerateRegularTasks(ctx, time.Date(2024, 6, 3, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("created %+v, want none", created)
	}
}

func TestWeeklyScheduleCrossesSunday(t *testing.T) {
	// Sunday belongs to the week anchored at the previous Monday.
	sunday := time.Date(2024, 6, 9, 10, 0, 0, 0, time.UTC)
	title, deadline := regularSchedule(domain.RegularWeekly, sunday)
	if title != "ウィークリータスク 6月第1週" {
		t.Fatalf("title = %q", title)
	}
	if !deadline.Equal(time.Date(2024, 6, 10, 3, 59, 0, 0, time.UTC)) {
		t.Fatalf("deadline = %v", deadline)
	}
}

func minutes(n int) *int { return &n }

func TestFindFreeSlotsThroughEngine(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.CreateEvent(ctx, EventCreateOptions{
		Title:   "standup",
		StartAt: "2024-06-03T10:00:00Z",
		EndAt:   "2024-06-03T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	_, err = eng.CreateTask(ctx, TaskCreateOptions{
		Title:   "focus block",
		StartAt: "2024-06-03T14:00:00Z",
		EndAt:   "2024-06-03T16:00:00Z",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	res, err := eng.FindFreeSlots(ctx, FreeSlotOptions{
		RangeStart:         "2024-06-03",
		RangeEnd:           "2024-06-03",
		WindowStart:        "09:00",
		WindowEnd:          "18:00",
		MarginMinutes:      minutes(30),
		MinDurationMinutes: minutes(60),
	})
	if err != nil {
		t.Fatalf("free slots: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings = %+v", res.Warnings)
	}
	// Event buffered to 09:30-11:00, task to 13:30-16:30.
	want := []string{
		"2024-06-03T11:00:00Z 2024-06-03T13:30:00Z",
		"2024-06-03T16:30:00Z 2024-06-03T18:00:00Z",
	}
	if len(res.Slots) != len(want) {
		t.Fatalf("slots = %+v", res.Slots)
	}
	for i, s := range res.Slots {
		got := s.Start.UTC().Format(time.RFC3339) + " " + s.End.UTC().Format(time.RFC3339)
		if got != want[i] {
			t.Fatalf("slot %d = %q, want %q", i, got, want[i])
		}
	}
	if !strings.Contains(res.Text, "6/3(Mon) 11:00 〜 13:30") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestFindFreeSlotsExplicitZeroMargin(t *testing.T) {
	eng := newTestEngine(t)
	eng.Config.FreeSlots.MarginMinutes = 30
	ctx := context.Background()

	_, err := eng.CreateEvent(ctx, EventCreateOptions{
		Title:   "lunch",
		StartAt: "2024-06-03T12:00:00Z",
		EndAt:   "2024-06-03T12:30:00Z",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	// An explicit zero must win over the configured default, so the busy
	// block stays unbuffered.
	res, err := eng.FindFreeSlots(ctx, FreeSlotOptions{
		RangeStart:         "2024-06-03",
		RangeEnd:           "2024-06-03",
		WindowStart:        "10:00",
		WindowEnd:          "17:00",
		MarginMinutes:      minutes(0),
		MinDurationMinutes: minutes(60),
	})
	if err != nil {
		t.Fatalf("free slots: %v", err)
	}
	want := []string{
		"2024-06-03T10:00:00Z 2024-06-03T12:00:00Z",
		"2024-06-03T12:30:00Z 2024-06-03T17:00:00Z",
	}
	if len(res.Slots) != len(want) {
		t.Fatalf("slots = %+v", res.Slots)
	}
	for i, s := range res.Slots {
		got := s.Start.UTC().Format(time.RFC3339) + " " + s.End.UTC().Format(time.RFC3339)
		if got != want[i] {
			t.Fatalf("slot %d = %q, want %q", i, got, want[i])
		}
	}

	// Leaving the fields nil falls back to the configured margin.
	res, err = eng.FindFreeSlots(ctx, FreeSlotOptions{
		RangeStart:  "2024-06-03",
		RangeEnd:    "2024-06-03",
		WindowStart: "10:00",
		WindowEnd:   "17:00",
	})
	if err != nil {
		t.Fatalf("free slots: %v", err)
	}
	if len(res.Slots) == 0 || !res.Slots[0].End.Equal(time.Date(2024, 6, 3, 11, 30, 0, 0, time.UTC)) {
		t.Fatalf("default margin not applied: slots = %+v", res.Slots)
	}
}

func TestBulkCreateEvents(t *testing.T) {
	eng := newTestEngine(t)
	eng.Config.Paint.Palette["red"] = "deep work"
	ctx := context.Background()

	var cells paint.DayCells
	for i := 72; i < 84; i++ { // 10:00-11:00 at the 04:00 start hour
		cells[i] = paint.ColorRed
	}
	grid := paint.Grid{"2024-06-03": cells}

	res, err := eng.BulkCreateEvents(ctx, "", grid, 0)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if len(res.CreatedIDs) != 1 {
		t.Fatalf("created %d events, want 1", len(res.CreatedIDs))
	}
	ev, err := eng.Repo.GetEvent(ctx, res.CreatedIDs[0])
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if ev.StartAt != "2024-06-03T10:00:00Z" || ev.EndAt != "2024-06-03T11:00:00Z" {
		t.Fatalf("event range = %s..%s", ev.StartAt, ev.EndAt)
	}
	if ev.Source != "paint" {
		t.Fatalf("source = %q", ev.Source)
	}
}

func TestDeleteEventNotFound(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.DeleteEvent(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
