// Package sweep expires voting clips whose window has closed, scores their
// ballots, and announces the results.
//
// Expiry and scoring for a guild commit together in one store update, so a
// clip is scored exactly once. Disabling the voting control and posting the
// announcement happen after the commit; each is best-effort and isolated from
// the other and from every other clip.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/notifications"
	"guessrank/internal/scoring"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/voting"
)

// Announcer publishes the end of a vote.
type Announcer interface {
	DisableVoting(ctx context.Context, clip store.VotingClip) error
	AnnounceResults(ctx context.Context, cfg store.GuildConfig, result Expired) error
}

// Expired is one clip closed by a sweep.
type Expired struct {
	GuildID string
	Clip    store.VotingClip
	Summary voting.Summary
	Awards  []scoring.Award
}

// Report summarizes one pass over every guild.
type Report struct {
	Guilds   int
	Expired  []Expired
	Failures int
}

// Sweeper runs expiry passes.
type Sweeper struct {
	store     *store.Store
	announcer Announcer
	notifier  notifications.Service
	metrics   *metrics.Metrics
	rules     scoring.Rules
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New wires a sweeper. notifier and m may be nil.
func New(cfg *config.Config, st *store.Store, announcer Announcer, notifier notifications.Service, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	if notifier == nil {
		notifier = notifications.NewService(&config.Config{})
	}
	return &Sweeper{
		store:     st,
		announcer: announcer,
		notifier:  notifier,
		metrics:   m,
		rules:     scoring.RulesFromConfig(cfg),
		interval:  cfg.SweepInterval(),
		logger:    logging.NewComponentLogger(logger, "sweep"),
		now:       time.Now,
	}
}

// SetClock overrides the time source.
func (s *Sweeper) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Run sweeps once immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context) {
	s.RunOnce(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps every guild. A failing guild is logged and skipped.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	var report Report
	guilds, err := s.store.Guilds(ctx)
	if err != nil {
		logging.ErrorWithContext(s.logger, "sweep could not list guilds", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state database"),
			logging.String(logging.FieldImpact, "no clips expired this pass"),
		)
		report.Failures++
		return report
	}
	for _, guildID := range guilds {
		if ctx.Err() != nil {
			break
		}
		report.Guilds++
		expired, failures, err := s.SweepGuild(ctx, guildID)
		report.Expired = append(report.Expired, expired...)
		report.Failures += failures
		if err != nil {
			report.Failures++
			logging.ErrorWithContext(logging.WithContext(services.WithGuildID(ctx, guildID), s.logger),
				"guild sweep failed", "sweep_guild_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the guild is retried next pass"),
				logging.String(logging.FieldImpact, "clips in this guild stay open"),
			)
		}
	}
	if len(report.Expired) > 0 {
		s.logger.Info("sweep complete",
			logging.Int("guilds", report.Guilds),
			logging.Int("expired", len(report.Expired)),
			logging.Int("side_effect_failures", report.Failures),
			logging.String(logging.FieldEventType, "sweep_complete"),
		)
	}
	return report
}

// SweepGuild expires and scores guildID's due clips in one store update, then
// runs the side effects. It returns the expired clips and the number of
// failed side effects.
func (s *Sweeper) SweepGuild(ctx context.Context, guildID string) ([]Expired, int, error) {
	ctx = services.WithStage(services.WithGuildID(ctx, guildID), "sweep")
	now := s.now()

	var expired []Expired
	var cfg *store.GuildConfig
	err := s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		expired = expired[:0]
		cfg = state.Config
		for _, clip := range state.ClipsByEnd(func(c store.VotingClip) bool { return c.Due(now) }) {
			clip.Recount()
			clip.Expired = true
			clip.ExpiredAt = now
			awards := s.rules.ScoreClip(state.Scores, clip, now)
			state.Voting[clip.ID] = clip
			expired = append(expired, Expired{
				GuildID: guildID,
				Clip:    clip,
				Summary: voting.Tally(clip),
				Awards:  awards,
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("expire clips: %w", err)
	}
	if len(expired) == 0 {
		return nil, 0, nil
	}
	s.metrics.ClipsExpired(len(expired))

	failures := 0
	for _, result := range expired {
		clipCtx := services.WithClipID(ctx, result.Clip.ID)
		logging.WithContext(clipCtx, s.logger).Info("clip expired",
			logging.String("correct_rank", string(result.Clip.CorrectRank)),
			logging.Int("total_votes", result.Clip.TotalVotes),
			logging.Int("correct_voters", result.Summary.CorrectVoters),
			logging.String(logging.FieldEventType, "clip_expired"),
		)
		if !s.sideEffect(clipCtx, "disable voting", result, func() error {
			return s.announcer.DisableVoting(clipCtx, result.Clip)
		}) {
			failures++
		}
		if !s.sideEffect(clipCtx, "announce results", result, func() error {
			if cfg == nil || cfg.Results.ID == "" {
				return fmt.Errorf("guild %s has no results channel", guildID)
			}
			return s.announcer.AnnounceResults(clipCtx, *cfg, result)
		}) {
			failures++
		}
	}
	if err := s.notifier.Publish(ctx, notifications.EventClipsExpired,
		notifications.Payload{"count": len(expired), "guild": guildID}); err != nil {
		s.logger.Debug("results notification failed", logging.Error(err))
	}
	return expired, failures, nil
}

// sideEffect runs fn, recovering from panics so one clip cannot stop the
// sweep. It reports success.
func (s *Sweeper) sideEffect(ctx context.Context, effect string, result Expired, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.reportFailure(ctx, effect, result, fmt.Errorf("panic: %v", r))
		}
	}()
	if err := fn(); err != nil {
		s.reportFailure(ctx, effect, result, err)
		return false
	}
	return true
}

func (s *Sweeper) reportFailure(ctx context.Context, effect string, result Expired, err error) {
	s.metrics.SideEffectFailed(effect)
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "sweep side effect failed", "side_effect_failed",
		logging.String("effect", effect),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check bot permissions in the voting and results channels"),
		logging.String(logging.FieldImpact, "clip already expired and scored"),
	)
	if nerr := s.notifier.Publish(ctx, notifications.EventSideEffectFailed, notifications.Payload{
		"effect": effect, "clip": result.Clip.ID, "guild": result.GuildID, "error": err,
	}); nerr != nil {
		s.logger.Debug("side effect notification failed", logging.Error(nerr))
	}
}
