package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"guessrank/internal/config"
	"guessrank/internal/notifications"
)

type captured struct {
	title, body, tags, priority string
}

func newServer(t *testing.T, status int) (*httptest.Server, chan captured) {
	t.Helper()
	ch := make(chan captured, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ch <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, ch
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventDaemonStarted, nil); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "daemon started",
			event:       notifications.EventDaemonStarted,
			payload:     notifications.Payload{"guilds": 3},
			expectTitle: "Guess the Rank - Started",
			expectBody:  "🤖 Bot online (3 guilds configured)",
			expectTags:  "guessrank,daemon,started",
		},
		{
			name:           "transform failed",
			event:          notifications.EventTransformFailed,
			payload:        notifications.Payload{"submitter": "alice", "kind": "timeout", "error": errors.New("deadline exceeded")},
			expectTitle:    "Guess the Rank - Transform Failed",
			expectBody:     "❌ Clip from alice failed (timeout): deadline exceeded",
			expectTags:     "guessrank,transform,error",
			expectPriority: "high",
		},
		{
			name:        "side effect failed",
			event:       notifications.EventSideEffectFailed,
			payload:     notifications.Payload{"effect": "announce results", "clip": "c1", "guild": "g1", "error": "missing access"},
			expectTitle: "Guess the Rank - Side Effect Failed",
			expectBody:  "⚠️ announce results failed for clip c1 in guild g1: missing access",
			expectTags:  "guessrank,discord,warning",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv, ch := newServer(t, http.StatusOK)
			cfg := config.Default()
			cfg.Notifications.NtfyTopic = srv.URL
			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := <-ch
			if got.title != tc.expectTitle || got.body != tc.expectBody || got.tags != tc.expectTags || got.priority != tc.expectPriority {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestCategoriesCanBeDisabled(t *testing.T) {
	srv, ch := newServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Results = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventClipsExpired, notifications.Payload{"count": 2}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-ch:
		t.Fatalf("disabled category was sent: %+v", got)
	default:
	}
}

func TestNtfyErrorStatusIsReported(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTestNotification, nil); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
