package repo

import (
	"context"
	"database/sql"
	"strings"

	"planline/internal/domain"
)

func (r Repo) InsertMemo(ctx context.Context, tx *sql.Tx, m domain.Memo) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO memos(id,user_id,body,pinned,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		m.ID, m.UserID, m.Body, boolInt(m.Pinned), m.CreatedAt, m.UpdatedAt)
	return err
}

func (r Repo) UpdateMemo(ctx context.Context, tx *sql.Tx, m domain.Memo) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	res, err := exec(ctx, `UPDATE memos SET body=?, pinned=?, updated_at=? WHERE id=?`,
		m.Body, boolInt(m.Pinned), m.UpdatedAt, m.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetMemo(ctx context.Context, id string) (domain.Memo, error) {
	var m domain.Memo
	var pinned int
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,body,pinned,created_at,updated_at FROM memos WHERE id=?`, id).
		Scan(&m.ID, &m.UserID, &m.Body, &pinned, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	m.Pinned = pinned != 0
	m.Attachments, err = r.ListAttachments(ctx, m.ID)
	return m, err
}

func (r Repo) DeleteMemo(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM memos WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type MemoFilters struct {
	UserID          string
	Pinned          *bool
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListMemos(ctx context.Context, f MemoFilters) ([]domain.Memo, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Pinned != nil {
		clauses = append(clauses, "pinned=?")
		args = append(args, boolInt(*f.Pinned))
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT id,user_id,body,pinned,created_at,updated_at FROM memos ` + where + ` ORDER BY pinned DESC, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Memo
	for rows.Next() {
		var m domain.Memo
		var pinned int
		if err := rows.Scan(&m.ID, &m.UserID, &m.Body, &pinned, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Pinned = pinned != 0
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) InsertAttachment(ctx context.Context, a domain.Attachment) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO attachments(id,memo_id,filename,content_type,size,path,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.MemoID, a.Filename, nullable(a.ContentType), a.Size, a.Path, a.CreatedAt)
	return err
}

func (r Repo) DeleteAttachment(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListAttachments(ctx context.Context, memoID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,memo_id,filename,content_type,size,path,created_at FROM attachments WHERE memo_id=? ORDER BY created_at ASC, id ASC`, memoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		var ct sql.NullString
		if err := rows.Scan(&a.ID, &a.MemoID, &a.Filename, &ct, &a.Size, &a.Path, &a.CreatedAt); err != nil {
			return nil, err
		}
		if ct.Valid {
			a.ContentType = ct.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
