package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/notifications"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/voting"
)

// Outcome is the result of a moderator signal.
type Outcome int

const (
	// Ignored means the signal matched no open review.
	Ignored Outcome = iota
	Approved
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Decision describes what a signal did.
type Decision struct {
	Outcome Outcome
	Pending store.PendingClip
	// Clip is set on approval.
	Clip store.VotingClip
	// Reason is the moderator's rejection reason, if collected.
	Reason string
}

// Service implements the review state machine.
type Service struct {
	store         *store.Store
	surface       Surface
	notifier      notifications.Service
	metrics       *metrics.Metrics
	logger        *slog.Logger
	window        time.Duration
	collectReason bool
	reasonTimeout time.Duration
	now           func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService wires moderation. notifier and m may be nil.
func NewService(cfg *config.Config, st *store.Store, surface Surface, notifier notifications.Service, m *metrics.Metrics, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Service{
		store:         st,
		surface:       surface,
		notifier:      notifier,
		metrics:       m,
		logger:        logging.NewComponentLogger(logger, "moderation"),
		window:        cfg.VotingWindow(),
		collectReason: cfg.Moderation.CollectReason,
		reasonTimeout: cfg.ReasonTimeout(),
		now:           time.Now,
		inFlight:      make(map[string]struct{}),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Submit posts review to guildID's moderation channel and records the
// PendingClip. The review post is retracted if the record cannot be written.
func (s *Service) Submit(ctx context.Context, guildID string, review Review) (store.PendingClip, error) {
	ctx = services.WithStage(services.WithGuildID(ctx, guildID), "moderation")
	logger := logging.WithContext(services.WithSubmissionID(ctx, review.SubmissionID), s.logger)

	cfg, err := s.guildConfig(ctx, guildID)
	if err != nil {
		return store.PendingClip{}, err
	}
	post, err := s.surface.PostReview(ctx, cfg, review)
	if err != nil {
		return store.PendingClip{}, services.Wrap(services.ErrExternal, "moderation", "submit", "post review", err)
	}

	pending := store.PendingClip{
		MessageID:     post.MessageID,
		ChannelID:     post.ChannelID,
		GuildID:       guildID,
		SubmissionID:  review.SubmissionID,
		SubmitterID:   review.SubmitterID,
		SubmitterName: review.SubmitterName,
		ClaimedRank:   review.ClaimedRank,
		Media:         review.Media,
		SubmittedAt:   s.now(),
	}
	if pending.Media.URL == "" {
		pending.Media = store.MediaRef{URL: post.AttachmentURL, AttachmentName: post.AttachmentName}
	}
	err = s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		state.Pending[post.MessageID] = pending
		return nil
	})
	if err != nil {
		if derr := s.surface.Delete(ctx, post); derr != nil {
			logging.WarnWithContext(logger, "review post left without record", "review_orphaned",
				logging.String("message_id", post.MessageID),
				logging.Error(derr),
				logging.String(logging.FieldErrorHint, "delete the message in the moderation channel"),
				logging.String(logging.FieldImpact, "moderators may react to a clip that cannot be resolved"),
			)
		}
		return store.PendingClip{}, services.Wrap(services.ErrExternal, "moderation", "submit", "record pending clip", err)
	}
	logger.Info("clip sent for review",
		logging.String("message_id", post.MessageID),
		logging.String(logging.FieldUserID, review.SubmitterID),
		logging.String("claimed_rank", string(review.ClaimedRank)),
		logging.String(logging.FieldEventType, "review_posted"),
	)
	return pending, nil
}

// Approve resolves the review at messageID by opening a vote.
func (s *Service) Approve(ctx context.Context, guildID, messageID, moderatorID string) (Decision, error) {
	release, ok := s.claim(guildID, messageID)
	if !ok {
		return Decision{}, nil
	}
	defer release()
	ctx = services.WithStage(services.WithGuildID(ctx, guildID), "moderation")

	pending, found, err := s.lookup(ctx, guildID, messageID)
	if err != nil || !found {
		return Decision{}, err
	}
	cfg, err := s.guildConfig(ctx, guildID)
	if err != nil {
		return Decision{}, err
	}

	clip := voting.NewClip(uuid.NewString(), pending, s.now(), s.window)
	ctx = services.WithClipID(ctx, clip.ID)
	logger := logging.WithContext(ctx, s.logger)
	if clip.Media.AttachmentName != "" {
		live, err := s.surface.ReviewMedia(ctx, Post{ChannelID: pending.ChannelID, MessageID: messageID})
		switch {
		case err != nil:
			logger.Debug("review attachment not re-read; using stored link", logging.Error(err))
		case live.URL != "":
			clip.Media = live
		}
	}

	post, err := s.surface.PublishVote(ctx, cfg, clip)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrExternal, "moderation", "approve", "publish voting post", err)
	}
	clip.ChannelID, clip.MessageID = post.ChannelID, post.MessageID

	var resolved bool
	err = s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		_, resolved = state.Pending[messageID]
		if !resolved {
			return nil
		}
		delete(state.Pending, messageID)
		state.Voting[clip.ID] = clip
		return nil
	})
	if err != nil || !resolved {
		if derr := s.surface.Delete(ctx, post); derr != nil {
			logging.WarnWithContext(logger, "voting post left without clip", "vote_orphaned",
				logging.Error(derr),
				logging.String(logging.FieldErrorHint, "delete the message in the voting channel"),
				logging.String(logging.FieldImpact, "voters may see a clip that cannot be voted on"),
			)
		}
		if err != nil {
			return Decision{}, services.Wrap(services.ErrExternal, "moderation", "approve", "record voting clip", err)
		}
		return Decision{}, nil
	}

	logger.Info("clip approved",
		logging.String("moderator_id", moderatorID),
		logging.String(logging.FieldUserID, pending.SubmitterID),
		logging.Time("end_time", clip.EndTime),
		logging.String(logging.FieldEventType, "clip_approved"),
	)
	s.metrics.Decision("approved")

	review := Post{ChannelID: pending.ChannelID, MessageID: messageID}
	s.bestEffort(ctx, "mark approved", s.surface.React(ctx, review, EmojiApproved))
	s.bestEffort(ctx, "notify submitter", s.surface.DirectMessage(ctx, pending.SubmitterID,
		fmt.Sprintf("🎉 Your %s clip was approved and is now open for guesses for %s!", pending.ClaimedRank, formatWindow(s.window))))
	s.bestEffort(ctx, "operator notification", s.notifier.Publish(ctx, notifications.EventClipApproved,
		notifications.Payload{"clip": clip.ID, "guild": guildID}))
	return Decision{Outcome: Approved, Pending: pending, Clip: clip}, nil
}

// Reject discards the review at messageID. The submitter is told unless the
// moderator was asked for a reason and never answered.
func (s *Service) Reject(ctx context.Context, guildID, messageID, moderatorID string) (Decision, error) {
	release, ok := s.claim(guildID, messageID)
	if !ok {
		return Decision{}, nil
	}
	defer release()
	ctx = services.WithStage(services.WithGuildID(ctx, guildID), "moderation")
	logger := logging.WithContext(ctx, s.logger)

	var pending store.PendingClip
	found := false
	err := s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		pending, found = state.Pending[messageID]
		delete(state.Pending, messageID)
		return nil
	})
	if err != nil {
		return Decision{}, services.Wrap(services.ErrExternal, "moderation", "reject", "discard pending clip", err)
	}
	if !found {
		return Decision{}, nil
	}
	logger.Info("clip rejected",
		logging.String("moderator_id", moderatorID),
		logging.String(logging.FieldUserID, pending.SubmitterID),
		logging.String(logging.FieldSubmissionID, pending.SubmissionID),
		logging.String(logging.FieldEventType, "clip_rejected"),
	)
	s.metrics.Decision("rejected")

	review := Post{ChannelID: pending.ChannelID, MessageID: messageID}
	s.bestEffort(ctx, "mark rejected", s.surface.React(ctx, review, EmojiRejected))

	decision := Decision{Outcome: Rejected, Pending: pending}
	notice := "❌ Your clip was not approved by the moderators."
	if s.collectReason {
		reason, err := s.surface.AskReason(ctx, pending.ChannelID, moderatorID, s.reasonTimeout)
		switch {
		case errors.Is(err, ErrNoReason):
			logger.Info("no rejection reason given; submitter not notified",
				logging.String(logging.FieldEventType, "rejection_notice_skipped"))
			return decision, nil
		case err != nil:
			s.bestEffort(ctx, "collect reason", err)
		case reason != "":
			decision.Reason = reason
			notice += "\nReason: " + reason
		}
	}
	s.bestEffort(ctx, "notify submitter", s.surface.DirectMessage(ctx, pending.SubmitterID, notice))
	return decision, nil
}

// Pending lists open reviews for guildID.
func (s *Service) Pending(ctx context.Context, guildID string) ([]store.PendingClip, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "moderation", "pending", "read guild", err)
	}
	out := make([]store.PendingClip, 0, len(state.Pending))
	for _, clip := range state.Pending {
		out = append(out, clip)
	}
	return out, nil
}

func (s *Service) claim(guildID, messageID string) (func(), bool) {
	key := guildID + "/" + messageID
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return nil, false
	}
	s.inFlight[key] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.mu.Unlock()
	}, true
}

func (s *Service) lookup(ctx context.Context, guildID, messageID string) (store.PendingClip, bool, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return store.PendingClip{}, false, services.Wrap(services.ErrExternal, "moderation", "lookup", "read guild", err)
	}
	pending, ok := state.Pending[messageID]
	return pending, ok, nil
}

func (s *Service) guildConfig(ctx context.Context, guildID string) (store.GuildConfig, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return store.GuildConfig{}, services.Wrap(services.ErrExternal, "moderation", "config", "read guild", err)
	}
	if state.Config == nil || !state.Config.Complete() {
		return store.GuildConfig{}, services.Describe("This server has not finished setup. Ask an admin to run /setup.",
			services.Wrap(services.ErrConfiguration, "moderation", "config", "guild "+guildID+" incomplete", nil))
	}
	return *state.Config, nil
}

func (s *Service) bestEffort(ctx context.Context, effect string, err error) {
	if err == nil {
		return
	}
	s.metrics.SideEffectFailed(effect)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "moderation side effect failed", "side_effect_failed",
		logging.String("effect", effect),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check bot permissions and DM settings"),
		logging.String(logging.FieldImpact, "state transition already committed"),
	)
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
