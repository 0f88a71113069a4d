package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(workspace)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Paint.Palette = map[string]string{"red": "deep work"}
	cfg.Normalize()
	e := engine.New(conn, cfg)
	e.Now = func() time.Time { return time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC) }
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "write report",
		"checklist": []map[string]any{
			{"text": "outline"},
			{"text": "draft"},
		},
	})
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", createRes.StatusCode, string(data))
	}
	var created domain.Task
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if created.ID == "" || created.UserID != "local-user" {
		t.Fatalf("created = %+v", created)
	}

	toggleRes, toggleBody := doJSON(t, client, http.MethodPost,
		srv.URL+"/v0/tasks/"+created.ID+"/checklist/0/toggle", nil)
	if toggleRes.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", toggleRes.StatusCode, string(toggleBody))
	}
	var toggled domain.Task
	if err := json.Unmarshal(toggleBody, &toggled); err != nil {
		t.Fatalf("unmarshal toggled: %v", err)
	}
	if !toggled.Checklist[0].Checked || toggled.Checklist[1].Checked {
		t.Fatalf("checklist = %+v", toggled.Checklist)
	}

	doneRes, doneBody := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+created.ID+"/complete", nil)
	if doneRes.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", doneRes.StatusCode, string(doneBody))
	}
	var done domain.Task
	if err := json.Unmarshal(doneBody, &done); err != nil {
		t.Fatalf("unmarshal done: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Fatalf("done = %+v", done)
	}

	delRes, delBody := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/tasks/"+created.ID, nil)
	if delRes.StatusCode >= 300 {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+created.ID, nil)
	if getRes.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status %d: %s", getRes.StatusCode, string(getBody))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(getBody, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code = %q in %s", envelope.Error.Code, string(getBody))
	}
}

func TestCreateTaskRejectsHalfTimedRange(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title":    "broken",
		"start_at": "2024-06-03T10:00:00Z",
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d: %s", res.StatusCode, string(body))
	}
}

func TestMemoPinnedOrdering(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, m := range []map[string]any{
		{"body": "plain note"},
		{"body": "important", "pinned": true},
	} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/memos", m)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create memo status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/memos", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var memos []domain.Memo
	if err := json.Unmarshal(data, &memos); err != nil {
		t.Fatalf("unmarshal memos: %v", err)
	}
	if len(memos) != 2 || !memos[0].Pinned {
		t.Fatalf("memos = %+v", memos)
	}
}

func TestFreeSlotsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/events", map[string]any{
		"title":    "standup",
		"start_at": "2024-06-03T10:00:00Z",
		"end_at":   "2024-06-03T10:30:00Z",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create event status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/free-slots", map[string]any{
		"range_start":  "2024-06-03",
		"range_end":    "2024-06-03",
		"window_start": "09:00",
		"window_end":   "18:00",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("free slots status %d: %s", res.StatusCode, string(data))
	}
	var got FreeSlotsResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// Event buffered by the default 30m margin leaves one big afternoon gap.
	if len(got.Slots) != 1 {
		t.Fatalf("slots = %+v", got.Slots)
	}
	if got.Slots[0].Start != "2024-06-03T11:00:00Z" || got.Slots[0].End != "2024-06-03T18:00:00Z" {
		t.Fatalf("slot = %+v", got.Slots[0])
	}
	if got.Text != "6/3(Mon) 11:00 〜 18:00" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestBulkEventsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/events/bulk", map[string]any{
		"grid": map[string]any{
			"2024-06-03": []map[string]any{
				{"start": 72, "end": 84, "color": "red"},
			},
		},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bulk status %d: %s", res.StatusCode, string(data))
	}
	var got BulkEventsResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.CreatedIDs) != 1 {
		t.Fatalf("created = %+v", got)
	}

	evRes, evData := doJSON(t, client, http.MethodGet, srv.URL+"/v0/events/"+got.CreatedIDs[0], nil)
	if evRes.StatusCode != http.StatusOK {
		t.Fatalf("get event status %d: %s", evRes.StatusCode, string(evData))
	}
	var ev domain.Event
	if err := json.Unmarshal(evData, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Title != "deep work" || ev.StartAt != "2024-06-03T10:00:00Z" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestRegularTaskTemplateAndGenerate(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPut, srv.URL+"/v0/regular-tasks/DAILY", map[string]any{
		"checklist": []map[string]any{
			{"text": "stretch"},
			{"text": "paused item", "is_paused": true},
		},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put template status %d: %s", res.StatusCode, string(data))
	}

	genRes, genData := doJSON(t, client, http.MethodPost, srv.URL+"/v0/regular-tasks/generate", nil)
	if genRes.StatusCode != http.StatusOK {
		t.Fatalf("generate status %d: %s", genRes.StatusCode, string(genData))
	}
	var created []domain.Task
	if err := json.Unmarshal(genData, &created); err != nil {
		t.Fatalf("unmarshal generated: %v", err)
	}
	if len(created) != 1 || len(created[0].Checklist) != 1 {
		t.Fatalf("generated = %+v", created)
	}

	// Second call is idempotent.
	genRes, genData = doJSON(t, client, http.MethodPost, srv.URL+"/v0/regular-tasks/generate", nil)
	if genRes.StatusCode != http.StatusOK {
		t.Fatalf("regenerate status %d: %s", genRes.StatusCode, string(genData))
	}
	created = nil
	if err := json.Unmarshal(genData, &created); err != nil {
		t.Fatalf("unmarshal regenerate: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("regenerate = %+v", created)
	}
}

func TestActivityTail(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	for _, title := range []string{"one", "two"} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{"title": title})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/activity?type=task.create", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, string(data))
	}
	var items []domain.Activity
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("activity = %+v", items)
	}
}
