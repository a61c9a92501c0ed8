package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guessrank/internal/config"
)

const userAgent = "guessrank/1.0"

// Event identifies an operator-facing occurrence.
type Event string

const (
	EventDaemonStarted     Event = "daemon_started"
	EventDaemonStopped     Event = "daemon_stopped"
	EventTransformFailed   Event = "transform_failed"
	EventSideEffectFailed  Event = "side_effect_failed"
	EventStoreImported     Event = "store_imported"
	EventClipsExpired      Event = "clips_expired"
	EventClipApproved      Event = "clip_approved"
	EventTestNotification  Event = "test"
	EventChannelReresolved Event = "channel_reresolved"
)

// Payload carries event fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		errors:    cfg.Notifications.Errors,
		lifecycle: cfg.Notifications.Lifecycle,
		results:   cfg.Notifications.Results,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	errors    bool
	lifecycle bool
	results   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventDaemonStarted, EventDaemonStopped, EventStoreImported, EventChannelReresolved:
		return n.lifecycle
	case EventTransformFailed, EventSideEffectFailed:
		return n.errors
	case EventClipsExpired, EventClipApproved:
		return n.results
	case EventTestNotification:
		return true
	}
	return false
}

func format(event Event, p Payload) (message, bool) {
	switch event {
	case EventDaemonStarted:
		return message{
			title: "Guess the Rank - Started",
			body:  fmt.Sprintf("🤖 Bot online (%s guilds configured)", p.text("guilds", "0")),
			tags:  []string{"guessrank", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Guess the Rank - Stopped",
			body:  "Bot shut down",
			tags:  []string{"guessrank", "daemon", "stopped"},
		}, true
	case EventTransformFailed:
		return message{
			title:    "Guess the Rank - Transform Failed",
			body:     fmt.Sprintf("❌ Clip from %s failed (%s): %s", p.text("submitter", "unknown"), p.text("kind", "error"), p.text("error", "unknown")),
			tags:     []string{"guessrank", "transform", "error"},
			priority: "high",
		}, true
	case EventSideEffectFailed:
		return message{
			title:    "Guess the Rank - Side Effect Failed",
			body:     fmt.Sprintf("⚠️ %s failed for clip %s in guild %s: %s", p.text("effect", "side effect"), p.text("clip", "?"), p.text("guild", "?"), p.text("error", "unknown")),
			tags:     []string{"guessrank", "discord", "warning"},
			priority: "default",
		}, true
	case EventStoreImported:
		return message{
			title: "Guess the Rank - Store Imported",
			body:  fmt.Sprintf("📦 Imported %s entities (%s warnings)", p.text("imported", "0"), p.text("warnings", "0")),
			tags:  []string{"guessrank", "store", "import"},
		}, true
	case EventClipsExpired:
		return message{
			title: "Guess the Rank - Results",
			body:  fmt.Sprintf("🏁 %s clip(s) closed in guild %s", p.text("count", "0"), p.text("guild", "?")),
			tags:  []string{"guessrank", "results"},
		}, true
	case EventClipApproved:
		return message{
			title: "Guess the Rank - Clip Approved",
			body:  fmt.Sprintf("🎉 Clip %s is open for voting in guild %s", p.text("clip", "?"), p.text("guild", "?")),
			tags:  []string{"guessrank", "moderation", "approved"},
		}, true
	case EventChannelReresolved:
		return message{
			title: "Guess the Rank - Channel Re-resolved",
			body:  fmt.Sprintf("🔁 %s channel for guild %s now resolves to #%s", p.text("role", "?"), p.text("guild", "?"), p.text("name", "?")),
			tags:  []string{"guessrank", "discord", "channel"},
		}, true
	case EventTestNotification:
		return message{
			title:    "Guess the Rank - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"guessrank", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (p Payload) text(key, fallback string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return fallback
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case error:
		s = v.Error()
	default:
		s = fmt.Sprint(v)
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
