package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planline/internal/domain"
)

func TestWebhookNotifierPosts(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), domain.Notification{
		Kind:   "alarm",
		UserID: "local-user",
		Title:  "wake up",
		SentAt: "2024-06-03T07:00:00Z",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Kind != "alarm" || got.Title != "wake up" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	if err := n.Notify(context.Background(), domain.Notification{Kind: "alarm"}); err == nil {
		t.Fatal("expected error for 502")
	}
}

type failing struct{ err error }

func (failing) Channel() string                                   { return "failing" }
func (f failing) Notify(context.Context, domain.Notification) error { return f.err }

type recording struct{ count *int }

func (recording) Channel() string { return "recording" }
func (r recording) Notify(context.Context, domain.Notification) error {
	*r.count++
	return nil
}

func TestFanoutContinuesPastFailure(t *testing.T) {
	want := errors.New("boom")
	count := 0
	f := Fanout{failing{err: want}, recording{count: &count}}
	err := f.Notify(context.Background(), domain.Notification{Kind: "digest"})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if count != 1 {
		t.Fatalf("second notifier called %d times", count)
	}
}
