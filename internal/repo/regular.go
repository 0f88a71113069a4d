package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"planline/internal/domain"
)

func (r Repo) UpsertRegularTaskConfig(ctx context.Context, c domain.RegularTaskConfig) error {
	checklist, err := json.Marshal(c.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO regular_task_configs(id,user_id,type,checklist_json,created_at,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(user_id,type) DO UPDATE SET checklist_json=excluded.checklist_json, updated_at=excluded.updated_at`,
		c.ID, c.UserID, string(c.Type), string(checklist), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetRegularTaskConfig(ctx context.Context, userID string, typ domain.RegularTaskType) (domain.RegularTaskConfig, error) {
	var c domain.RegularTaskConfig
	var checklist string
	err := r.DB.QueryRowContext(ctx, `SELECT id,user_id,type,checklist_json,created_at,updated_at FROM regular_task_configs WHERE user_id=? AND type=?`, userID, string(typ)).
		Scan(&c.ID, &c.UserID, &c.Type, &checklist, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(checklist), &c.Checklist); err != nil {
		return c, fmt.Errorf("unmarshal checklist: %w", err)
	}
	return c, nil
}

func (r Repo) ListRegularTaskConfigs(ctx context.Context) ([]domain.RegularTaskConfig, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,user_id,type,checklist_json,created_at,updated_at FROM regular_task_configs ORDER BY user_id ASC, type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RegularTaskConfig
	for rows.Next() {
		var c domain.RegularTaskConfig
		var checklist string
		if err := rows.Scan(&c.ID, &c.UserID, &c.Type, &checklist, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(checklist), &c.Checklist); err != nil {
			return nil, fmt.Errorf("unmarshal checklist: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRegularTaskConfig(ctx context.Context, userID string, typ domain.RegularTaskType) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM regular_task_configs WHERE user_id=? AND type=?`, userID, string(typ))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
