package repo

import (
	"context"
	"database/sql"
	"strings"

	"planline/internal/domain"
)

const alarmColumns = `id,user_id,label,at,repeat_mask,enabled,last_fired_at,created_at`

func scanAlarm(scan func(dest ...any) error) (domain.Alarm, error) {
	var a domain.Alarm
	var enabled int
	var lastFired sql.NullString
	err := scan(&a.ID, &a.UserID, &a.Label, &a.At, &a.RepeatMask, &enabled, &lastFired, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.Enabled = enabled != 0
	if lastFired.Valid {
		a.LastFiredAt = &lastFired.String
	}
	return a, nil
}

func (r Repo) InsertAlarm(ctx context.Context, a domain.Alarm) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO alarms(`+alarmColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.Label, a.At, a.RepeatMask, boolInt(a.Enabled), nullableStringPtr(a.LastFiredAt), a.CreatedAt)
	return err
}

func (r Repo) UpdateAlarm(ctx context.Context, a domain.Alarm) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE alarms SET label=?, at=?, repeat_mask=?, enabled=?, last_fired_at=? WHERE id=?`,
		a.Label, a.At, a.RepeatMask, boolInt(a.Enabled), nullableStringPtr(a.LastFiredAt), a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetAlarm(ctx context.Context, id string) (domain.Alarm, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE id=?`, id)
	return scanAlarm(row.Scan)
}

func (r Repo) DeleteAlarm(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM alarms WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type AlarmFilters struct {
	UserID  string
	Enabled *bool
	Limit   int
}

func (r Repo) ListAlarms(ctx context.Context, f AlarmFilters) ([]domain.Alarm, error) {
	var clauses []string
	var args []any
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Enabled != nil {
		clauses = append(clauses, "enabled=?")
		args = append(args, boolInt(*f.Enabled))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + alarmColumns + ` FROM alarms ` + where + ` ORDER BY at ASC, id ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ListEnabledAlarms returns every enabled alarm; the scheduler evaluates
// due-ness itself because repeating alarms need weekday arithmetic.
func (r Repo) ListEnabledAlarms(ctx context.Context) ([]domain.Alarm, error) {
	enabled := true
	return r.ListAlarms(ctx, AlarmFilters{Enabled: &enabled})
}

// MarkAlarmFired records the already-sent flag that keeps overlapping
// poller runs idempotent.
func (r Repo) MarkAlarmFired(ctx context.Context, id, firedAt string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE alarms SET last_fired_at=? WHERE id=? AND (last_fired_at IS NULL OR last_fired_at<?)`,
		firedAt, id, firedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEnabledAlarmsByUser returns every enabled alarm for one user.
// Repeating alarms are expanded into concrete points by the caller.
func (r Repo) ListEnabledAlarmsByUser(ctx context.Context, userID string) ([]domain.Alarm, error) {
	enabled := true
	return r.ListAlarms(ctx, AlarmFilters{UserID: userID, Enabled: &enabled})
}
