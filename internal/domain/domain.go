package domain

// ChecklistItem is one entry of a task checklist. On a regular-task
// template IsPaused excludes the item from generation; on a materialized
// task the checklist is a plain snapshot with no back-reference.
type ChecklistItem struct {
	Text     string `json:"text"`
	Checked  bool   `json:"checked"`
	IsPaused bool   `json:"is_paused,omitempty"`
}

type Task struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Memo        string          `json:"memo,omitempty"`
	Deadline    *string         `json:"deadline,omitempty" format:"date-time"`
	StartAt     *string         `json:"start_at,omitempty" format:"date-time"`
	EndAt       *string         `json:"end_at,omitempty" format:"date-time"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
	Completed   bool            `json:"completed"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
	CompletedAt *string         `json:"completed_at,omitempty" format:"date-time"`
}

type Memo struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Body        string       `json:"body"`
	Pinned      bool         `json:"pinned"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   string       `json:"created_at" format:"date-time"`
	UpdatedAt   string       `json:"updated_at" format:"date-time"`
}

// Attachment records file metadata only; the storage backend owns the
// bytes and the path is opaque to this service.
type Attachment struct {
	ID          string `json:"id"`
	MemoID      string `json:"memo_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// Alarm fires at At. A non-zero RepeatMask (bit 0 = Sunday .. bit 6 =
// Saturday) repeats the alarm weekly at At's time of day; LastFiredAt is
// the already-sent flag the poller checks before delivering.
type Alarm struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Label       string  `json:"label"`
	At          string  `json:"at" format:"date-time"`
	RepeatMask  int     `json:"repeat_mask"`
	Enabled     bool    `json:"enabled"`
	LastFiredAt *string `json:"last_fired_at,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Memo      string `json:"memo,omitempty"`
	Color     string `json:"color,omitempty"`
	StartAt   string `json:"start_at" format:"date-time"`
	EndAt     string `json:"end_at" format:"date-time"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type RegularTaskType string

const (
	RegularDaily  RegularTaskType = "DAILY"
	RegularWeekly RegularTaskType = "WEEKLY"
)

// RegularTaskConfig is the checklist template materialized into tasks by
// the generator. One config per (user, type).
type RegularTaskConfig struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      RegularTaskType `json:"type" enum:"DAILY,WEEKLY"`
	Checklist []ChecklistItem `json:"checklist"`
	CreatedAt string          `json:"created_at" format:"date-time"`
	UpdatedAt string          `json:"updated_at" format:"date-time"`
}

type Notification struct {
	ID      int64  `json:"id"`
	UserID  string `json:"user_id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Body    string `json:"body,omitempty"`
	Channel string `json:"channel"`
	SentAt  string `json:"sent_at" format:"date-time"`
}

type Activity struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	UserID     string `json:"user_id"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
