package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"planline/internal/domain"
	"planline/internal/events"
)

// MemoCreateOptions are parameters for creating a memo.
type MemoCreateOptions struct {
	ID     string
	UserID string
	Body   string
	Pinned bool
}

func (e Engine) CreateMemo(ctx context.Context, opts MemoCreateOptions) (domain.Memo, error) {
	if opts.Body == "" {
		return domain.Memo{}, errors.New("body is required")
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := timestamp(e.now())
	m := domain.Memo{
		ID:        id,
		UserID:    e.user(opts.UserID),
		Body:      opts.Body,
		Pinned:    opts.Pinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Memo{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMemo(ctx, tx, m); err != nil {
		return domain.Memo{}, fmt.Errorf("insert memo: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, "memo.create", m.UserID, "memo", m.ID, nil); err != nil {
		return domain.Memo{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Memo{}, err
	}
	return m, nil
}

// MemoUpdateOptions carries partial memo updates; nil means keep.
type MemoUpdateOptions struct {
	ID     string
	Body   *string
	Pinned *bool
}

func (e Engine) UpdateMemo(ctx context.Context, opts MemoUpdateOptions) (domain.Memo, error) {
	m, err := e.Repo.GetMemo(ctx, opts.ID)
	if err != nil {
		return domain.Memo{}, err
	}
	if opts.Body != nil {
		if *opts.Body == "" {
			return domain.Memo{}, errors.New("body is required")
		}
		m.Body = *opts.Body
	}
	if opts.Pinned != nil {
		m.Pinned = *opts.Pinned
	}
	m.UpdatedAt = timestamp(e.now())
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Memo{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMemo(ctx, tx, m); err != nil {
		return domain.Memo{}, err
	}
	if err := e.Activity.Append(ctx, tx, "memo.update", m.UserID, "memo", m.ID, nil); err != nil {
		return domain.Memo{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Memo{}, err
	}
	m.Attachments, err = e.Repo.ListAttachments(ctx, m.ID)
	if err != nil {
		return domain.Memo{}, err
	}
	return m, nil
}

// DeleteMemo removes the memo; attachments go with it via the foreign key.
func (e Engine) DeleteMemo(ctx context.Context, id string) error {
	return e.Repo.DeleteMemo(ctx, id)
}

// AttachmentOptions describe one attachment to record against a memo.
// The bytes live wherever the caller stored them; only metadata is kept.
type AttachmentOptions struct {
	MemoID      string
	Filename    string
	ContentType string
	Size        int64
	Path        string
}

func (e Engine) AddAttachment(ctx context.Context, opts AttachmentOptions) (domain.Attachment, error) {
	if opts.Filename == "" {
		return domain.Attachment{}, errors.New("filename is required")
	}
	m, err := e.Repo.GetMemo(ctx, opts.MemoID)
	if err != nil {
		return domain.Attachment{}, err
	}
	a := domain.Attachment{
		ID:          uuid.NewString(),
		MemoID:      m.ID,
		Filename:    path.Base(opts.Filename),
		ContentType: opts.ContentType,
		Size:        opts.Size,
		Path:        opts.Path,
		CreatedAt:   timestamp(e.now()),
	}
	if err := e.Repo.InsertAttachment(ctx, a); err != nil {
		return domain.Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	if err := e.logActivity(ctx, "memo.attach", m.UserID, "memo", m.ID, events.Payload{"filename": a.Filename}); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}

func (e Engine) RemoveAttachment(ctx context.Context, id string) error {
	return e.Repo.DeleteAttachment(ctx, id)
}

// AlarmCreateOptions are parameters for creating an alarm.
type AlarmCreateOptions struct {
	ID         string
	UserID     string
	Label      string
	At         string
	RepeatMask int
	Enabled    *bool
}

func (e Engine) CreateAlarm(ctx context.Context, opts AlarmCreateOptions) (domain.Alarm, error) {
	at, err := time.Parse(time.RFC3339, opts.At)
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("invalid at %q", opts.At)
	}
	if opts.RepeatMask < 0 || opts.RepeatMask > 0x7f {
		return domain.Alarm{}, fmt.Errorf("invalid repeat_mask %d", opts.RepeatMask)
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	enabled := true
	if opts.Enabled != nil {
		enabled = *opts.Enabled
	}
	a := domain.Alarm{
		ID:         id,
		UserID:     e.user(opts.UserID),
		Label:      opts.Label,
		At:         timestamp(at),
		RepeatMask: opts.RepeatMask,
		Enabled:    enabled,
		CreatedAt:  timestamp(e.now()),
	}
	if err := e.Repo.InsertAlarm(ctx, a); err != nil {
		return domain.Alarm{}, fmt.Errorf("insert alarm: %w", err)
	}
	if err := e.logActivity(ctx, "alarm.create", a.UserID, "alarm", a.ID, events.Payload{"at": a.At}); err != nil {
		return domain.Alarm{}, err
	}
	e.Cache.Invalidate(a.UserID)
	return a, nil
}

// AlarmUpdateOptions carries partial alarm updates; nil means keep.
type AlarmUpdateOptions struct {
	ID         string
	Label      *string
	At         *string
	RepeatMask *int
	Enabled    *bool
}

func (e Engine) UpdateAlarm(ctx context.Context, opts AlarmUpdateOptions) (domain.Alarm, error) {
	a, err := e.Repo.GetAlarm(ctx, opts.ID)
	if err != nil {
		return domain.Alarm{}, err
	}
	if opts.Label != nil {
		a.Label = *opts.Label
	}
	if opts.At != nil {
		at, err := time.Parse(time.RFC3339, *opts.At)
		if err != nil {
			return domain.Alarm{}, fmt.Errorf("invalid at %q", *opts.At)
		}
		a.At = timestamp(at)
		// Rescheduling re-arms a one-shot that already fired.
		a.LastFiredAt = nil
	}
	if opts.RepeatMask != nil {
		if *opts.RepeatMask < 0 || *opts.RepeatMask > 0x7f {
			return domain.Alarm{}, fmt.Errorf("invalid repeat_mask %d", *opts.RepeatMask)
		}
		a.RepeatMask = *opts.RepeatMask
	}
	if opts.Enabled != nil {
		a.Enabled = *opts.Enabled
	}
	if err := e.Repo.UpdateAlarm(ctx, a); err != nil {
		return domain.Alarm{}, err
	}
	e.Cache.Invalidate(a.UserID)
	return a, nil
}

func (e Engine) DeleteAlarm(ctx context.Context, id string) error {
	a, err := e.Repo.GetAlarm(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteAlarm(ctx, id); err != nil {
		return err
	}
	e.Cache.Invalidate(a.UserID)
	return nil
}
