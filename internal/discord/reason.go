package discord

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/logging"
	"guessrank/internal/moderation"
)

// reasonWaiters routes a moderator's next message in a channel to the
// rejection that asked for it.
type reasonWaiters struct {
	mu      sync.Mutex
	waiting map[string]chan string
}

func newReasonWaiters() *reasonWaiters {
	return &reasonWaiters{waiting: make(map[string]chan string)}
}

func reasonKey(channelID, userID string) string {
	return channelID + ":" + userID
}

// register returns the reply channel for key and a release func. A second
// registration for the same key replaces the first.
func (w *reasonWaiters) register(key string) (<-chan string, func()) {
	ch := make(chan string, 1)
	w.mu.Lock()
	w.waiting[key] = ch
	w.mu.Unlock()
	return ch, func() {
		w.mu.Lock()
		if w.waiting[key] == ch {
			delete(w.waiting, key)
		}
		w.mu.Unlock()
	}
}

// deliver hands content to a waiting prompt. It reports whether one was
// waiting.
func (w *reasonWaiters) deliver(channelID, userID, content string) bool {
	key := reasonKey(channelID, userID)
	w.mu.Lock()
	ch, ok := w.waiting[key]
	if ok {
		delete(w.waiting, key)
	}
	w.mu.Unlock()
	if !ok {
		return false
	}
	ch <- content
	return true
}

// DeliverReason routes a guild message to a pending AskReason.
func (s *Surface) DeliverReason(channelID, userID, content string) bool {
	return s.reasons.deliver(channelID, userID, content)
}

// AskReason prompts moderatorID in channelID and waits for their next
// message. "skip" yields an empty reason.
func (s *Surface) AskReason(ctx context.Context, channelID, moderatorID string, timeout time.Duration) (string, error) {
	replies, release := s.reasons.register(reasonKey(channelID, moderatorID))
	defer release()

	prompt := fmt.Sprintf("<@%s> Please reply with the reason for rejecting this clip within %d minutes, or type `skip` to reject without a reason.",
		moderatorID, max(1, int(timeout.Minutes())))
	msg, err := s.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         prompt,
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: []string{moderatorID}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send reason prompt: %w", err)
	}
	defer func() {
		if err := s.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			s.logger.Debug("reason prompt not deleted", logging.Error(err))
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replies:
		reply = strings.TrimSpace(reply)
		if strings.EqualFold(reply, "skip") {
			return "", nil
		}
		return reply, nil
	case <-timer.C:
		return "", moderation.ErrNoReason
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
