package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planline/internal/domain"
	"planline/internal/log"
	"planline/internal/repo"
)

// UpsertRegularTaskConfig stores the checklist template for one cadence.
func (e Engine) UpsertRegularTaskConfig(ctx context.Context, userID string, typ domain.RegularTaskType, checklist []domain.ChecklistItem) (domain.RegularTaskConfig, error) {
	if typ != domain.RegularDaily && typ != domain.RegularWeekly {
		return domain.RegularTaskConfig{}, fmt.Errorf("invalid regular task type %q", typ)
	}
	now := timestamp(e.now())
	c := domain.RegularTaskConfig{
		UserID:    e.user(userID),
		Type:      typ,
		Checklist: checklist,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.UpsertRegularTaskConfig(ctx, c); err != nil {
		return domain.RegularTaskConfig{}, err
	}
	return e.Repo.GetRegularTaskConfig(ctx, c.UserID, typ)
}

// GenerateRegularTasks materializes every stored template for the day
// containing now. Generation keys on the computed title, so re-running
// on the same day (or later the same week for weekly templates) is a
// no-op; checklists are snapshots with paused items dropped and checks
// reset.
func (e Engine) GenerateRegularTasks(ctx context.Context, now time.Time) ([]domain.Task, error) {
	loc := e.Config.Location()
	now = now.In(loc)
	configs, err := e.Repo.ListRegularTaskConfigs(ctx)
	if err != nil {
		return nil, err
	}
	var created []domain.Task
	for _, cfg := range configs {
		title, deadline := regularSchedule(cfg.Type, now)
		checklist := activeItems(cfg.Checklist)
		if len(checklist) == 0 {
			log.Info("regular task skipped, all checklist items paused", "user", cfg.UserID, "type", string(cfg.Type))
			continue
		}
		_, err := e.Repo.FindTaskByUserAndTitle(ctx, cfg.UserID, title)
		if err == nil {
			continue
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return created, err
		}
		t, err := e.CreateTask(ctx, TaskCreateOptions{
			UserID:    cfg.UserID,
			Title:     title,
			Deadline:  timestamp(deadline),
			Checklist: checklist,
		})
		if err != nil {
			return created, fmt.Errorf("generate %s task: %w", cfg.Type, err)
		}
		log.Info("regular task generated", "user", cfg.UserID, "type", string(cfg.Type), "title", title)
		created = append(created, t)
	}
	return created, nil
}

// regularSchedule computes the materialized title and deadline for a
// cadence relative to now. Daily tasks are due before the next day's
// 03:59 cutoff; weekly tasks anchor on Monday and are due a week out,
// so a task generated mid-week still belongs to the current week.
func regularSchedule(typ domain.RegularTaskType, now time.Time) (string, time.Time) {
	loc := now.Location()
	if typ == domain.RegularDaily {
		title := fmt.Sprintf("デイリータスク %d/%d", int(now.Month()), now.Day())
		d := now.AddDate(0, 0, 1)
		deadline := time.Date(d.Year(), d.Month(), d.Day(), 3, 59, 0, 0, loc)
		return title, deadline
	}
	monday := mondayOf(now)
	week := (monday.Day() + 6) / 7
	title := fmt.Sprintf("ウィークリータスク %d月第%d週", int(monday.Month()), week)
	d := monday.AddDate(0, 0, 7)
	deadline := time.Date(d.Year(), d.Month(), d.Day(), 3, 59, 0, 0, loc)
	return title, deadline
}

func mondayOf(now time.Time) time.Time {
	offset := int(time.Monday - now.Weekday())
	if now.Weekday() == time.Sunday {
		offset = -6
	}
	d := now.AddDate(0, 0, offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
}

// activeItems snapshots a template checklist: paused items are dropped
// and every kept item starts unchecked.
func activeItems(items []domain.ChecklistItem) []domain.ChecklistItem {
	var out []domain.ChecklistItem
	for _, it := range items {
		if it.IsPaused {
			continue
		}
		out = append(out, domain.ChecklistItem{Text: it.Text})
	}
	return out
}
