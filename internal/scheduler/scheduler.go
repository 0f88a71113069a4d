package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/interval"
	"planline/internal/log"
	"planline/internal/notify"
	"planline/internal/repo"
)

// Scheduler runs the background jobs: a per-minute alarm sweep, the
// daily digest, and regular task generation just after midnight.
type Scheduler struct {
	Engine   engine.Engine
	Notifier notify.Notifier

	cron *cron.Cron
}

func New(eng engine.Engine, notifier notify.Notifier) *Scheduler {
	return &Scheduler{
		Engine:   eng,
		Notifier: notifier,
		cron:     cron.New(cron.WithLocation(eng.Config.Location())),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		if err := s.SweepAlarms(ctx, s.Engine.Now()); err != nil {
			log.Error("alarm sweep failed", err)
		}
	}); err != nil {
		return err
	}

	digestMin, err := interval.ParseClock(s.Engine.Config.Digest.At)
	if err != nil {
		return fmt.Errorf("digest time: %w", err)
	}
	spec := fmt.Sprintf("%d %d * * *", digestMin%60, digestMin/60)
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.SendDigest(ctx, s.Engine.Now()); err != nil {
			log.Error("digest failed", err)
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc("5 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Engine.GenerateRegularTasks(ctx, s.Engine.Now()); err != nil {
			log.Error("regular task generation failed", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("scheduler started", "digest_at", s.Engine.Config.Digest.At)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepAlarms fires every enabled alarm whose fire moment has passed and
// was not already delivered. MarkAlarmFired is a guarded update, so
// overlapping sweeps deliver at most once per fire moment.
func (s *Scheduler) SweepAlarms(ctx context.Context, now time.Time) error {
	loc := s.Engine.Config.Location()
	now = now.In(loc)
	alarms, err := s.Engine.Repo.ListEnabledAlarms(ctx)
	if err != nil {
		return err
	}
	var first error
	for _, a := range alarms {
		fireAt, due, err := alarmDue(a, now, loc)
		if err != nil {
			log.Error("bad alarm record", err, "alarm", a.ID)
			continue
		}
		if !due {
			continue
		}
		err = s.Engine.Repo.MarkAlarmFired(ctx, a.ID, fireAt.UTC().Format(time.RFC3339))
		if errors.Is(err, repo.ErrNotFound) {
			continue // another sweep got there first
		}
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		if err := s.deliver(ctx, a, now); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s *Scheduler) deliver(ctx context.Context, a domain.Alarm, now time.Time) error {
	title := a.Label
	if title == "" {
		title = "アラーム"
	}
	n := domain.Notification{
		UserID:  a.UserID,
		Kind:    "alarm",
		Title:   title,
		Channel: s.Notifier.Channel(),
		SentAt:  now.UTC().Format(time.RFC3339),
	}
	if err := s.Engine.Repo.InsertNotification(ctx, n); err != nil {
		return err
	}
	return s.Notifier.Notify(ctx, n)
}

// alarmDue resolves the most recent fire moment for an alarm, if any.
// A one-shot fires once when At has passed. A repeating alarm fires at
// At's time of day on each weekday whose mask bit is set; LastFiredAt
// gates redelivery of the same moment.
func alarmDue(a domain.Alarm, now time.Time, loc *time.Location) (time.Time, bool, error) {
	at, err := time.Parse(time.RFC3339, a.At)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid at %q", a.At)
	}
	at = at.In(loc)

	if a.RepeatMask == 0 {
		return at, !at.After(now) && a.LastFiredAt == nil, nil
	}

	if a.RepeatMask&(1<<int(now.Weekday())) == 0 {
		return time.Time{}, false, nil
	}
	fire := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), at.Second(), 0, loc)
	if fire.After(now) {
		return time.Time{}, false, nil
	}
	if a.LastFiredAt != nil {
		last, err := time.Parse(time.RFC3339, *a.LastFiredAt)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid last_fired_at %q", *a.LastFiredAt)
		}
		if !last.Before(fire) {
			return time.Time{}, false, nil
		}
	}
	return fire, true, nil
}

// SendDigest notifies one summary of today's events and tasks due today.
func (s *Scheduler) SendDigest(ctx context.Context, now time.Time) error {
	loc := s.Engine.Config.Location()
	now = now.In(loc)
	userID := s.Engine.Config.DefaultUser

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	rs := dayStart.UTC().Format(time.RFC3339)
	re := dayEnd.UTC().Format(time.RFC3339)

	events, err := s.Engine.Repo.ListEvents(ctx, repo.EventFilters{
		UserID: userID, RangeStart: rs, RangeEnd: re,
	})
	if err != nil {
		return err
	}
	completed := false
	tasks, err := s.Engine.Repo.ListTasks(ctx, repo.TaskFilters{
		UserID: userID, Completed: &completed, DeadlineBefore: re,
	})
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d件の予定 / %d件のタスク\n", len(events), len(tasks))
	for _, ev := range events {
		st, err := time.Parse(time.RFC3339, ev.StartAt)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", st.In(loc).Format("15:04"), ev.Title)
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "・%s\n", t.Title)
	}

	n := domain.Notification{
		UserID:  userID,
		Kind:    "digest",
		Title:   now.Format("1/2") + " のまとめ",
		Body:    strings.TrimRight(b.String(), "\n"),
		Channel: s.Notifier.Channel(),
		SentAt:  now.UTC().Format(time.RFC3339),
	}
	if err := s.Engine.Repo.InsertNotification(ctx, n); err != nil {
		return err
	}
	return s.Notifier.Notify(ctx, n)
}
