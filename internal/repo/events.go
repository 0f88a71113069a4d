package repo

import (
	"context"
	"database/sql"
	"strings"

	"planline/internal/domain"
)

const eventColumns = `id,user_id,title,memo,color,start_at,end_at,source,created_at,updated_at`

func scanEvent(scan func(dest ...any) error) (domain.Event, error) {
	var e domain.Event
	var memo, color, source sql.NullString
	err := scan(&e.ID, &e.UserID, &e.Title, &memo, &color, &e.StartAt, &e.EndAt, &source, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if memo.Valid {
		e.Memo = memo.String
	}
	if color.Valid {
		e.Color = color.String
	}
	if source.Valid {
		e.Source = source.String
	}
	return e, nil
}

func (r Repo) InsertEvent(ctx context.Context, e domain.Event) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO events(`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, e.Title, nullable(e.Memo), nullable(e.Color), e.StartAt, e.EndAt, nullable(e.Source), e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) UpdateEvent(ctx context.Context, e domain.Event) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE events SET title=?, memo=?, color=?, start_at=?, end_at=?, updated_at=? WHERE id=?`,
		e.Title, nullable(e.Memo), nullable(e.Color), e.StartAt, e.EndAt, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=?`, id)
	return scanEvent(row.Scan)
}

func (r Repo) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type EventFilters struct {
	UserID     string
	RangeStart string
	RangeEnd   string
	Limit      int
}

func (r Repo) ListEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	// Overlap, not containment: an event straddling the range edge is busy.
	if f.RangeStart != "" {
		clauses = append(clauses, "end_at>?")
		args = append(args, f.RangeStart)
	}
	if f.RangeEnd != "" {
		clauses = append(clauses, "start_at<?")
		args = append(args, f.RangeEnd)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + eventColumns + ` FROM events ` + where + ` ORDER BY start_at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
