package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"planline/internal/calendar"
	"planline/internal/config"
	"planline/internal/domain"
	"planline/internal/events"
	"planline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity events.Writer
	Config   *config.Config
	Cache    *calendar.Cache
	Sources  []calendar.Source
	Now      func() time.Time
}

// New wires the default source set: local events, alarms, timed tasks,
// plus one cached source per configured ICS subscription.
func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	cache := calendar.NewCache(time.Duration(cfg.Cache.TTLMinutes) * time.Minute)
	sources := []calendar.Source{
		calendar.CachedSource{Source: calendar.EventSource{Repo: r}, Cache: cache},
		calendar.AlarmSource{Repo: r},
		calendar.TaskSource{Repo: r},
	}
	for _, src := range cfg.ICS {
		sources = append(sources, calendar.CachedSource{
			Source: calendar.NewICSSource(src.ID, src.Name, src.URL),
			Cache:  calendar.NewCache(time.Duration(cfg.Cache.TTLMinutes) * time.Minute),
		})
	}
	return Engine{
		DB:       db,
		Repo:     r,
		Activity: events.Writer{DB: db},
		Config:   cfg,
		Cache:    cache,
		Sources:  sources,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) user(userID string) string {
	if userID != "" {
		return userID
	}
	if e.Config != nil {
		return e.Config.DefaultUser
	}
	return "local-user"
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// logActivity records one entry outside any caller transaction, for
// repo writes that manage their own statement.
func (e Engine) logActivity(ctx context.Context, evtType, userID, entityKind, entityID string, payload events.Payload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Activity.Append(ctx, tx, evtType, userID, entityKind, entityID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

func optionalTimestamp(s string) (*string, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q", s)
	}
	v := timestamp(t)
	return &v, nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID        string
	UserID    string
	Title     string
	Memo      string
	Deadline  string
	StartAt   string
	EndAt     string
	Checklist []domain.ChecklistItem
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	deadline, err := optionalTimestamp(opts.Deadline)
	if err != nil {
		return domain.Task{}, err
	}
	startAt, err := optionalTimestamp(opts.StartAt)
	if err != nil {
		return domain.Task{}, err
	}
	endAt, err := optionalTimestamp(opts.EndAt)
	if err != nil {
		return domain.Task{}, err
	}
	if (startAt == nil) != (endAt == nil) {
		return domain.Task{}, errors.New("start_at and end_at are required together")
	}
	if startAt != nil && *endAt < *startAt {
		return domain.Task{}, errors.New("end_at must not precede start_at")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := timestamp(e.now())
	t := domain.Task{
		ID:        id,
		UserID:    e.user(opts.UserID),
		Title:     opts.Title,
		Memo:      opts.Memo,
		Deadline:  deadline,
		StartAt:   startAt,
		EndAt:     endAt,
		Checklist: opts.Checklist,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, "task.create", t.UserID, "task", t.ID, events.Payload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	if startAt != nil {
		e.Cache.Invalidate(t.UserID)
	}
	return t, nil
}

// TaskUpdateOptions carries partial task updates; nil means keep.
type TaskUpdateOptions struct {
	ID        string
	Title     *string
	Memo      *string
	Deadline  *string
	StartAt   *string
	EndAt     *string
	Checklist []domain.ChecklistItem
	Completed *bool
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, errors.New("title is required")
		}
		t.Title = *opts.Title
	}
	if opts.Memo != nil {
		t.Memo = *opts.Memo
	}
	if opts.Deadline != nil {
		t.Deadline, err = optionalTimestamp(*opts.Deadline)
		if err != nil {
			return domain.Task{}, err
		}
	}
	timedChanged := false
	if opts.StartAt != nil {
		t.StartAt, err = optionalTimestamp(*opts.StartAt)
		if err != nil {
			return domain.Task{}, err
		}
		timedChanged = true
	}
	if opts.EndAt != nil {
		t.EndAt, err = optionalTimestamp(*opts.EndAt)
		if err != nil {
			return domain.Task{}, err
		}
		timedChanged = true
	}
	if (t.StartAt == nil) != (t.EndAt == nil) {
		return domain.Task{}, errors.New("start_at and end_at are required together")
	}
	if opts.Checklist != nil {
		t.Checklist = opts.Checklist
	}
	if opts.Completed != nil {
		t.Completed = *opts.Completed
		if t.Completed {
			ts := timestamp(e.now())
			t.CompletedAt = &ts
		} else {
			t.CompletedAt = nil
		}
	}
	t.UpdatedAt = timestamp(e.now())

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Activity.Append(ctx, tx, "task.update", t.UserID, "task", t.ID, events.Payload{"completed": t.Completed}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	if timedChanged {
		e.Cache.Invalidate(t.UserID)
	}
	return t, nil
}

// ToggleChecklistItem flips one checklist entry on a materialized task.
// The checklist is a snapshot; templates are untouched.
func (e Engine) ToggleChecklistItem(ctx context.Context, taskID string, index int) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if index < 0 || index >= len(t.Checklist) {
		return domain.Task{}, fmt.Errorf("checklist index %d out of range", index)
	}
	t.Checklist[index].Checked = !t.Checklist[index].Checked
	t.UpdatedAt = timestamp(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Activity.Append(ctx, tx, "task.checklist", t.UserID, "task", t.ID, events.Payload{"index": index, "checked": t.Checklist[index].Checked}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, id string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	if t.StartAt != nil {
		e.Cache.Invalidate(t.UserID)
	}
	return nil
}
