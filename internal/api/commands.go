package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/logging"
	"guessrank/internal/scoring"
	"guessrank/internal/services"
	"guessrank/internal/store"
)

// GuildStore is the store surface the commands need.
type GuildStore interface {
	ReadGuild(ctx context.Context, guildID string) (*store.GuildState, error)
	UpdateGuild(ctx context.Context, guildID string, fn func(*store.GuildState) error) error
}

// ChannelResolver finds a text channel by name in a guild, creating it with
// the role's default topic when absent.
type ChannelResolver interface {
	EnsureChannel(ctx context.Context, guildID string, role store.ChannelRole, name string) (id string, created bool, err error)
}

// Caller identifies who issued a command.
type Caller struct {
	UserID   string
	Username string
	Admin    bool
}

// Service executes guild commands against the store.
type Service struct {
	cfg    *config.Config
	store  GuildStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(cfg *config.Config, st GuildStore, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  st,
		logger: logging.NewComponentLogger(logger, "commands"),
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

var setupRoles = []store.ChannelRole{store.RoleModeration, store.RoleVoting, store.RoleResults}

// Setup resolves or creates the three functional channels and stores their
// IDs. Running it again keeps configured names and refreshes the IDs.
func (s *Service) Setup(ctx context.Context, guildID string, caller Caller, resolver ChannelResolver) (SetupResult, error) {
	result := SetupResult{GuildID: guildID}
	if !caller.Admin {
		return result, services.Wrap(services.ErrPermission, "commands", "setup", "manage channels permission required", nil)
	}
	if resolver == nil {
		return result, services.Wrap(services.ErrConfiguration, "commands", "setup", "channel resolver unavailable", nil)
	}
	ctx = services.WithGuildID(ctx, guildID)

	current, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return result, services.Wrap(services.ErrExternal, "commands", "setup", "read guild", err)
	}
	next := store.GuildConfig{GuildID: guildID}
	if current.Config != nil {
		next = *current.Config
		result.Reconfigured = true
	}

	for _, role := range setupRoles {
		ref := next.Channel(role)
		name := strings.TrimSpace(ref.Name)
		if name == "" {
			name = s.defaultChannelName(role)
		}
		id, created, err := resolver.EnsureChannel(ctx, guildID, role, name)
		if err != nil {
			return result, services.Wrap(services.ErrExternal, "commands", "setup", fmt.Sprintf("resolve #%s", name), err)
		}
		ref.ID, ref.Name = id, name
		result.Channels = append(result.Channels, SetupChannel{Role: string(role), Name: name, ID: id, Created: created})
	}
	next.ConfiguredBy = caller.UserID
	next.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		cfg := next
		state.Config = &cfg
		return nil
	}); err != nil {
		return result, services.Wrap(services.ErrExternal, "commands", "setup", "persist guild config", err)
	}
	logging.WithContext(ctx, s.logger).Info("guild configured",
		logging.String("configured_by", caller.UserID),
		logging.Bool("reconfigured", result.Reconfigured),
		logging.String(logging.FieldEventType, "guild_setup"),
	)
	return result, nil
}

// Rebind stores a re-resolved channel ID for role, keeping its name.
func (s *Service) Rebind(ctx context.Context, guildID string, role store.ChannelRole, channelID string) error {
	return s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		if state.Config == nil {
			return services.Wrap(services.ErrConfiguration, "commands", "rebind", "guild not configured", nil)
		}
		cfg := *state.Config
		ref := cfg.Channel(role)
		if ref == nil {
			return services.Wrap(services.ErrValidation, "commands", "rebind", "unknown channel role "+string(role), nil)
		}
		ref.ID = channelID
		cfg.UpdatedAt = s.now().UTC()
		state.Config = &cfg
		return nil
	})
}

func (s *Service) defaultChannelName(role store.ChannelRole) string {
	switch role {
	case store.RoleModeration:
		return s.cfg.Discord.ModerationChannelName
	case store.RoleVoting:
		return s.cfg.Discord.VotingChannelName
	default:
		return s.cfg.Discord.ResultsChannelName
	}
}

// Help returns the help text sections.
func (s *Service) Help() []HelpSection {
	hours := int(s.cfg.VotingWindow().Hours())
	return []HelpSection{
		{
			Title: "📱 How to use",
			Body: "1. Send me a video in a private message\n" +
				"2. Select your rank from the menu\n" +
				"3. Your video will be submitted for moderation\n" +
				fmt.Sprintf("4. Once approved, it will appear in #%s with a voting menu\n", s.cfg.Discord.VotingChannelName) +
				fmt.Sprintf("5. Results are posted in #%s after %d hours", s.cfg.Discord.ResultsChannelName, hours),
		},
		{
			Title: "🛠️ Commands",
			Body: "`/setup` - Create or re-link the bot channels (Admin)\n" +
				"`/help` - Show this help\n" +
				"`/results` - Browse finished clips\n" +
				"`/scoreboard [page]` - Show the leaderboard\n" +
				"`/profile [user]` - Show a player's stats\n" +
				"`/cleanup [count]` - Delete the oldest finished clips (Admin)",
		},
		{
			Title: "🎮 Supported formats",
			Body:  strings.ToUpper(strings.Join(trimDots(s.cfg.Intake.Extensions), ", ")),
		},
		{
			Title: "🔍 Moderation",
			Body: fmt.Sprintf("All clips go through moderation in #%s\n", s.cfg.Discord.ModerationChannelName) +
				"Moderators approve (✅) or reject (❌) submissions\n" +
				fmt.Sprintf("Approved clips get a %dh voting period with automatic results", hours),
		},
	}
}

func trimDots(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	return out
}

// Results lists the guild's expired clips, most recently ended first.
func (s *Service) Results(ctx context.Context, guildID string) (ResultsResponse, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return ResultsResponse{}, services.Wrap(services.ErrExternal, "commands", "results", "read guild", err)
	}
	clips := state.ClipsByEnd(func(c store.VotingClip) bool { return c.Expired })
	resp := ResultsResponse{GuildID: guildID, Clips: make([]ClipResult, 0, len(clips))}
	for i := len(clips) - 1; i >= 0; i-- {
		resp.Clips = append(resp.Clips, FromVotingClip(clips[i], s.cfg.Voting.RankEmojis))
	}
	return resp, nil
}

// ResultDetail returns one clip. Clips still under vote are not revealed.
func (s *Service) ResultDetail(ctx context.Context, guildID, clipID string) (ClipResult, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return ClipResult{}, services.Wrap(services.ErrExternal, "commands", "result detail", "read guild", err)
	}
	clip, ok := state.Voting[clipID]
	if !ok {
		return ClipResult{}, services.Describe("That clip could not be found.",
			services.Wrap(services.ErrNotFound, "commands", "result detail", "clip "+clipID, nil))
	}
	if !clip.Expired {
		return ClipResult{}, services.Describe("Voting on that clip is still open.",
			services.Wrap(services.ErrValidation, "commands", "result detail", "clip still active", nil))
	}
	return FromVotingClip(clip, s.cfg.Voting.RankEmojis), nil
}

// Cleanup deletes the oldest count expired clips, or every expired clip
// when count is not positive. Active clips are never removed.
func (s *Service) Cleanup(ctx context.Context, guildID string, count int, caller Caller) (CleanupResult, error) {
	result := CleanupResult{GuildID: guildID}
	if !caller.Admin {
		return result, services.Wrap(services.ErrPermission, "commands", "cleanup", "administrator permission required", nil)
	}
	err := s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		expired := state.ClipsByEnd(func(c store.VotingClip) bool { return c.Expired })
		if count > 0 && count < len(expired) {
			expired = expired[:count]
		}
		result.Removed = make([]string, 0, len(expired))
		for _, clip := range expired {
			delete(state.Voting, clip.ID)
			result.Removed = append(result.Removed, clip.ID)
		}
		result.Remaining = len(state.Voting)
		return nil
	})
	if err != nil {
		return CleanupResult{GuildID: guildID}, services.Wrap(services.ErrExternal, "commands", "cleanup", "update guild", err)
	}
	logging.WithContext(services.WithGuildID(ctx, guildID), s.logger).Info("expired clips purged",
		logging.Int("removed", len(result.Removed)),
		logging.Int("remaining", result.Remaining),
		logging.String("requested_by", caller.UserID),
		logging.String(logging.FieldEventType, "clips_purged"),
	)
	return result, nil
}

// Scoreboard returns one leaderboard page. Out-of-range pages are clamped.
func (s *Service) Scoreboard(ctx context.Context, guildID string, page int) (ScoreboardPage, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return ScoreboardPage{}, services.Wrap(services.ErrExternal, "commands", "scoreboard", "read guild", err)
	}
	standings := scoring.Leaderboard(state.Scores)
	rows, page, pages := scoring.Page(standings, page)
	return ScoreboardPage{
		GuildID: guildID,
		Page:    page,
		Pages:   pages,
		Players: len(standings),
		Rows:    FromStandings(rows),
	}, nil
}

// Profile returns the stat card of userID.
func (s *Service) Profile(ctx context.Context, guildID, userID string) (Profile, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return Profile{}, services.Wrap(services.ErrExternal, "commands", "profile", "read guild", err)
	}
	profile, ok := state.Scores[userID]
	if !ok {
		return Profile{}, services.Describe("No stats yet. Guess the rank on a clip to get started!",
			services.Wrap(services.ErrNotFound, "commands", "profile", "user "+userID, nil))
	}
	if profile.UserID == "" {
		profile.UserID = userID
	}
	standings := scoring.Leaderboard(state.Scores)
	return FromProfile(profile, scoring.Position(standings, userID), len(standings)), nil
}

// ActiveClips lists clips still open for voting, soonest ending first.
func (s *Service) ActiveClips(ctx context.Context, guildID string) ([]ClipResult, error) {
	state, err := s.store.ReadGuild(ctx, guildID)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "commands", "active clips", "read guild", err)
	}
	now := s.now()
	clips := state.ClipsByEnd(func(c store.VotingClip) bool { return !c.Expired && !now.After(c.EndTime) })
	out := make([]ClipResult, 0, len(clips))
	for _, clip := range clips {
		dto := FromVotingClip(clip, s.cfg.Voting.RankEmojis)
		dto.CorrectRank = ""
		dto.Tally = nil
		dto.CorrectVoters = 0
		out = append(out, dto)
	}
	return out, nil
}
