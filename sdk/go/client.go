package planlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Planline HTTP API client.
type Client struct {
	BaseURL    string
	UserID     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ChecklistItem is one line of a task checklist.
type ChecklistItem struct {
	Text     string `json:"text"`
	Checked  bool   `json:"checked"`
	IsPaused bool   `json:"is_paused,omitempty"`
}

// Task represents the API task model.
type Task struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title"`
	Memo        string          `json:"memo,omitempty"`
	Deadline    *string         `json:"deadline,omitempty"`
	StartAt     *string         `json:"start_at,omitempty"`
	EndAt       *string         `json:"end_at,omitempty"`
	Checklist   []ChecklistItem `json:"checklist,omitempty"`
	Completed   bool            `json:"completed"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt *string         `json:"completed_at,omitempty"`
}

// Memo represents the API memo model.
type Memo struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Body        string       `json:"body"`
	Pinned      bool         `json:"pinned"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   string       `json:"created_at"`
	UpdatedAt   string       `json:"updated_at"`
}

// Attachment is file metadata on a memo.
type Attachment struct {
	ID          string `json:"id"`
	MemoID      string `json:"memo_id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Path        string `json:"path"`
	CreatedAt   string `json:"created_at"`
}

// Alarm represents the API alarm model. RepeatMask is a weekday bitmask,
// bit 0 = Sunday.
type Alarm struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Label       string  `json:"label"`
	At          string  `json:"at"`
	RepeatMask  int     `json:"repeat_mask"`
	Enabled     bool    `json:"enabled"`
	LastFiredAt *string `json:"last_fired_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Event represents the API calendar event model.
type Event struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Memo      string `json:"memo,omitempty"`
	Color     string `json:"color,omitempty"`
	StartAt   string `json:"start_at"`
	EndAt     string `json:"end_at"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// FreeSlot is one open interval.
type FreeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SourceWarning reports a calendar source that could not be read.
type SourceWarning struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FreeSlots is the free-time extraction result.
type FreeSlots struct {
	Slots    []FreeSlot      `json:"slots"`
	Text     string          `json:"text"`
	Warnings []SourceWarning `json:"warnings,omitempty"`
}

// PaintRun paints five-minute slots [Start, End) of one day a single color.
type PaintRun struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Color string `json:"color"`
}

// BulkResult reports how far a bulk grid submission got.
type BulkResult struct {
	CreatedIDs []string `json:"created_ids"`
	Cursor     int      `json:"cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a task with a deadline (pass "" for none).
func (c *Client) CreateTask(ctx context.Context, title, deadline string) (Task, error) {
	body := map[string]any{"title": title}
	if deadline != "" {
		body["deadline"] = deadline
	}
	if c.UserID != "" {
		body["user_id"] = c.UserID
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListTasks returns tasks, optionally filtered by completion state.
func (c *Client) ListTasks(ctx context.Context, completed *bool, limit int) ([]Task, error) {
	q := url.Values{}
	if c.UserID != "" {
		q.Set("user_id", c.UserID)
	}
	if completed != nil {
		q.Set("completed", fmt.Sprintf("%t", *completed))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, withQuery("tasks", q), nil, &resp)
	return resp, err
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/complete", nil, &resp)
	return resp, err
}

// ToggleChecklistItem flips one checklist entry by index.
func (c *Client) ToggleChecklistItem(ctx context.Context, taskID string, index int) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("tasks/%s/checklist/%d/toggle", url.PathEscape(taskID), index)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// CreateMemo creates a memo.
func (c *Client) CreateMemo(ctx context.Context, body string, pinned bool) (Memo, error) {
	payload := map[string]any{"body": body, "pinned": pinned}
	if c.UserID != "" {
		payload["user_id"] = c.UserID
	}
	var resp Memo
	err := c.do(ctx, http.MethodPost, "memos", payload, &resp)
	return resp, err
}

// ListMemos returns memos, pinned first.
func (c *Client) ListMemos(ctx context.Context, limit int) ([]Memo, error) {
	q := url.Values{}
	if c.UserID != "" {
		q.Set("user_id", c.UserID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var resp []Memo
	err := c.do(ctx, http.MethodGet, withQuery("memos", q), nil, &resp)
	return resp, err
}

// CreateAlarm creates an alarm; repeatMask 0 means one-shot.
func (c *Client) CreateAlarm(ctx context.Context, label, at string, repeatMask int) (Alarm, error) {
	body := map[string]any{"label": label, "at": at, "repeat_mask": repeatMask}
	if c.UserID != "" {
		body["user_id"] = c.UserID
	}
	var resp Alarm
	err := c.do(ctx, http.MethodPost, "alarms", body, &resp)
	return resp, err
}

// CreateEvent creates a calendar event.
func (c *Client) CreateEvent(ctx context.Context, title, startAt, endAt string) (Event, error) {
	body := map[string]any{"title": title, "start_at": startAt, "end_at": endAt}
	if c.UserID != "" {
		body["user_id"] = c.UserID
	}
	var resp Event
	err := c.do(ctx, http.MethodPost, "events", body, &resp)
	return resp, err
}

// ListEvents returns events overlapping [rangeStart, rangeEnd).
func (c *Client) ListEvents(ctx context.Context, rangeStart, rangeEnd string) ([]Event, error) {
	q := url.Values{}
	if c.UserID != "" {
		q.Set("user_id", c.UserID)
	}
	if rangeStart != "" {
		q.Set("range_start", rangeStart)
	}
	if rangeEnd != "" {
		q.Set("range_end", rangeEnd)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

// FindFreeSlots extracts free time between the given days (yyyy-mm-dd,
// inclusive). Zero-value options fall back to server defaults.
func (c *Client) FindFreeSlots(ctx context.Context, rangeStart, rangeEnd string, weekdays []int) (FreeSlots, error) {
	body := map[string]any{
		"range_start": rangeStart,
		"range_end":   rangeEnd,
	}
	if len(weekdays) > 0 {
		body["weekdays"] = weekdays
	}
	if c.UserID != "" {
		body["user_id"] = c.UserID
	}
	var resp FreeSlots
	err := c.do(ctx, http.MethodPost, "free-slots", body, &resp)
	return resp, err
}

// BulkCreateEvents compiles a painted grid into events. Grid keys are
// yyyy-mm-dd days; cursor resumes a partially applied submission.
func (c *Client) BulkCreateEvents(ctx context.Context, grid map[string][]PaintRun, cursor int) (BulkResult, error) {
	body := map[string]any{"grid": grid}
	if cursor > 0 {
		body["cursor"] = cursor
	}
	if c.UserID != "" {
		body["user_id"] = c.UserID
	}
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "events/bulk", body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
