package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"planline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalChecklist(items []domain.ChecklistItem) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal checklist: %w", err)
	}
	return string(data), nil
}

func unmarshalChecklist(raw sql.NullString) ([]domain.ChecklistItem, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var items []domain.ChecklistItem
	if err := json.Unmarshal([]byte(raw.String), &items); err != nil {
		return nil, fmt.Errorf("unmarshal checklist: %w", err)
	}
	return items, nil
}

const taskColumns = `id,user_id,title,memo,deadline,start_at,end_at,checklist_json,completed,created_at,updated_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var memo, deadline, startAt, endAt, checklist, completedAt sql.NullString
	var completed int
	err := scan(&t.ID, &t.UserID, &t.Title, &memo, &deadline, &startAt, &endAt, &checklist, &completed, &t.CreatedAt, &t.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if memo.Valid {
		t.Memo = memo.String
	}
	if deadline.Valid {
		t.Deadline = &deadline.String
	}
	if startAt.Valid {
		t.StartAt = &startAt.String
	}
	if endAt.Valid {
		t.EndAt = &endAt.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	t.Completed = completed != 0
	t.Checklist, err = unmarshalChecklist(checklist)
	return t, err
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	checklist, err := marshalChecklist(t.Checklist)
	if err != nil {
		return err
	}
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err = exec(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.UserID, t.Title, nullable(t.Memo), nullableStringPtr(t.Deadline), nullableStringPtr(t.StartAt), nullableStringPtr(t.EndAt),
		checklist, boolInt(t.Completed), t.CreatedAt, t.UpdatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	checklist, err := marshalChecklist(t.Checklist)
	if err != nil {
		return err
	}
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	res, err := exec(ctx, `UPDATE tasks SET title=?, memo=?, deadline=?, start_at=?, end_at=?, checklist_json=?, completed=?, updated_at=?, completed_at=? WHERE id=?`,
		t.Title, nullable(t.Memo), nullableStringPtr(t.Deadline), nullableStringPtr(t.StartAt), nullableStringPtr(t.EndAt),
		checklist, boolInt(t.Completed), t.UpdatedAt, nullableStringPtr(t.CompletedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindTaskByUserAndTitle is the regular-task idempotency lookup: the
// (user, computed title) pair is the sole de-duplication key.
func (r Repo) FindTaskByUserAndTitle(ctx context.Context, userID, title string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=? AND title=? LIMIT 1`, userID, title)
	return scanTask(row.Scan)
}

type TaskFilters struct {
	UserID          string
	Completed       *bool
	DeadlineBefore  string
	DeadlineAfter   string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Completed != nil {
		clauses = append(clauses, "completed=?")
		args = append(args, boolInt(*f.Completed))
	}
	if f.DeadlineBefore != "" {
		clauses = append(clauses, "deadline IS NOT NULL AND deadline<?")
		args = append(args, f.DeadlineBefore)
	}
	if f.DeadlineAfter != "" {
		clauses = append(clauses, "deadline IS NOT NULL AND deadline>=?")
		args = append(args, f.DeadlineAfter)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListTimedTasks returns tasks with a fixed start/end range overlapping
// [rangeStart, rangeEnd); these count as busy intervals.
func (r Repo) ListTimedTasks(ctx context.Context, userID, rangeStart, rangeEnd string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks
WHERE user_id=? AND start_at IS NOT NULL AND end_at IS NOT NULL AND end_at>? AND start_at<?
ORDER BY start_at ASC`, userID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
