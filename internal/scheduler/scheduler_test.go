package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
)

type captureNotifier struct {
	sent []domain.Notification
}

func (*captureNotifier) Channel() string { return "capture" }
func (c *captureNotifier) Notify(_ context.Context, n domain.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *captureNotifier) {
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
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 6, 3, 7, 0, 30, 0, time.UTC) }
	rec := &captureNotifier{}
	return New(eng, rec), rec
}

func TestSweepFiresOneShotOnce(t *testing.T) {
	s, rec := newTestScheduler(t)
	ctx := context.Background()

	_, err := s.Engine.CreateAlarm(ctx, engine.AlarmCreateOptions{
		Label: "dentist",
		At:    "2024-06-03T07:00:00Z",
	})
	if err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	now := time.Date(2024, 6, 3, 7, 0, 30, 0, time.UTC)
	if err := s.SweepAlarms(ctx, now); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].Title != "dentist" {
		t.Fatalf("sent = %+v", rec.sent)
	}

	// The next sweep sees last_fired_at and stays silent.
	if err := s.SweepAlarms(ctx, now.Add(time.Minute)); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(rec.sent))
	}
}

func TestSweepSkipsFutureAndDisabled(t *testing.T) {
	s, rec := newTestScheduler(t)
	ctx := context.Background()

	if _, err := s.Engine.CreateAlarm(ctx, engine.AlarmCreateOptions{
		Label: "later",
		At:    "2024-06-03T09:00:00Z",
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	off := false
	if _, err := s.Engine.CreateAlarm(ctx, engine.AlarmCreateOptions{
		Label:   "muted",
		At:      "2024-06-03T06:00:00Z",
		Enabled: &off,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.SweepAlarms(ctx, time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(rec.sent) != 0 {
		t.Fatalf("sent = %+v", rec.sent)
	}
}

func TestRepeatingAlarmFiresPerMaskedWeekday(t *testing.T) {
	s, rec := newTestScheduler(t)
	ctx := context.Background()

	// Monday and Wednesday, 07:00.
	mask := (1 << int(time.Monday)) | (1 << int(time.Wednesday))
	if _, err := s.Engine.CreateAlarm(ctx, engine.AlarmCreateOptions{
		Label:      "gym",
		At:         "2024-01-01T07:00:00Z",
		RepeatMask: mask,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	monday := time.Date(2024, 6, 3, 7, 0, 10, 0, time.UTC)
	if err := s.SweepAlarms(ctx, monday); err != nil {
		t.Fatalf("monday sweep: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("monday sent = %+v", rec.sent)
	}

	// Later the same Monday: already fired.
	if err := s.SweepAlarms(ctx, monday.Add(2*time.Hour)); err != nil {
		t.Fatalf("resweep: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("resweep sent %d", len(rec.sent))
	}

	// Tuesday is not in the mask.
	if err := s.SweepAlarms(ctx, monday.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("tuesday sweep: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("tuesday sent %d", len(rec.sent))
	}

	// Wednesday fires again.
	if err := s.SweepAlarms(ctx, monday.AddDate(0, 0, 2)); err != nil {
		t.Fatalf("wednesday sweep: %v", err)
	}
	if len(rec.sent) != 2 {
		t.Fatalf("wednesday sent %d", len(rec.sent))
	}
}

func TestAlarmDueBeforeTimeOfDay(t *testing.T) {
	a := domain.Alarm{
		At:         "2024-01-01T07:00:00Z",
		RepeatMask: 1 << int(time.Monday),
	}
	now := time.Date(2024, 6, 3, 6, 59, 0, 0, time.UTC)
	if _, due, err := alarmDue(a, now, time.UTC); err != nil || due {
		t.Fatalf("due = %v, err = %v", due, err)
	}
}

func TestSendDigestSummarizesDay(t *testing.T) {
	s, rec := newTestScheduler(t)
	ctx := context.Background()

	if _, err := s.Engine.CreateEvent(ctx, engine.EventCreateOptions{
		Title:   "standup",
		StartAt: "2024-06-03T10:00:00Z",
		EndAt:   "2024-06-03T10:15:00Z",
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := s.Engine.CreateTask(ctx, engine.TaskCreateOptions{
		Title:    "send invoice",
		Deadline: "2024-06-03T18:00:00Z",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := s.SendDigest(ctx, time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC)); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Fatalf("sent = %+v", rec.sent)
	}
	d := rec.sent[0]
	if d.Kind != "digest" {
		t.Fatalf("kind = %q", d.Kind)
	}
	for _, want := range []string{"1件の予定 / 1件のタスク", "10:00 standup", "・send invoice"} {
		if !strings.Contains(d.Body, want) {
			t.Fatalf("body %q missing %q", d.Body, want)
		}
	}

	ns, err := s.Engine.Repo.ListNotifications(ctx, s.Engine.Config.DefaultUser, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(ns) != 1 {
		t.Fatalf("stored %d notifications", len(ns))
	}
}
