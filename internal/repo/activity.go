package repo

import (
	"context"
	"database/sql"
	"strings"

	"planline/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(user_id,kind,title,body,channel,sent_at) VALUES (?,?,?,?,?,?)`,
		n.UserID, n.Kind, n.Title, nullable(n.Body), n.Channel, n.SentAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `SELECT id,user_id,kind,title,COALESCE(body,''),channel,sent_at FROM notifications WHERE user_id=? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Channel, &n.SentAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// LatestActivity returns recent activity entries, newest first. A cursor
// of 0 starts from the top.
func (r Repo) LatestActivity(ctx context.Context, limit int, cursor int64, userID, evtType string) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if userID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, userID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,user_id,entity_kind,entity_id,payload_json FROM activity `+where+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var entityID sql.NullString
		if err := rows.Scan(&a.ID, &a.TS, &a.Type, &a.UserID, &a.EntityKind, &entityID, &a.Payload); err != nil {
			return nil, err
		}
		if entityID.Valid {
			a.EntityID = entityID.String
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
