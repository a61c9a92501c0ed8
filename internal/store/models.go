package store

import (
	"sort"
	"time"

	"guessrank/internal/ranks"
)

// Table names a logical table.
type Table string

const (
	TableConfig  Table = "config"
	TablePending Table = "pending"
	TableVoting  Table = "voting"
	TableScores  Table = "scores"
)

// Tables lists every logical table in import order.
func Tables() []Table {
	return []Table{TableConfig, TablePending, TableVoting, TableScores}
}

// QuarantineGuildID holds legacy entities whose guild could not be determined.
// It is never returned by Guilds.
const QuarantineGuildID = "unassigned"

// ChannelRole identifies one of the three functional channels.
type ChannelRole string

const (
	RoleModeration ChannelRole = "moderation"
	RoleVoting     ChannelRole = "voting"
	RoleResults    ChannelRole = "results"
)

// ChannelRef is a resolved channel handle. Name is only used to re-resolve
// when the ID is reported invalid.
type ChannelRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// GuildConfig holds the functional channels for one guild.
type GuildConfig struct {
	GuildID      string     `json:"guild_id"`
	Moderation   ChannelRef `json:"moderation"`
	Voting       ChannelRef `json:"voting"`
	Results      ChannelRef `json:"results"`
	ConfiguredBy string     `json:"configured_by,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at,omitzero"`
}

// Complete reports whether all three channels have resolved IDs.
func (c GuildConfig) Complete() bool {
	return c.Moderation.ID != "" && c.Voting.ID != "" && c.Results.ID != ""
}

// Channel returns a pointer to the channel for role, or nil.
func (c *GuildConfig) Channel(role ChannelRole) *ChannelRef {
	switch role {
	case RoleModeration:
		return &c.Moderation
	case RoleVoting:
		return &c.Voting
	case RoleResults:
		return &c.Results
	default:
		return nil
	}
}

// MediaRef points at the transformed clip.
type MediaRef struct {
	URL            string `json:"url,omitempty"`
	AttachmentName string `json:"attachment_name,omitempty"`
}

// PendingClip is a submission awaiting moderation, keyed by MessageID.
type PendingClip struct {
	MessageID     string     `json:"message_id"`
	ChannelID     string     `json:"channel_id,omitempty"`
	GuildID       string     `json:"guild_id"`
	SubmissionID  string     `json:"submission_id,omitempty"`
	SubmitterID   string     `json:"submitter_id"`
	SubmitterName string     `json:"submitter_name,omitempty"`
	ClaimedRank   ranks.Rank `json:"claimed_rank"`
	Media         MediaRef   `json:"media"`
	SubmittedAt   time.Time  `json:"submitted_at,omitzero"`
}

// Ballot is one voter's current choice on a clip.
type Ballot struct {
	Rank      ranks.Rank `json:"rank"`
	VoterName string     `json:"voter_name,omitempty"`
	Changed   bool       `json:"changed"`
	CastAt    time.Time  `json:"cast_at,omitzero"`
}

// VotingClip is an approved clip under, or past, its voting window.
// Ballots is canonical; Counts and TotalVotes are derived from it.
type VotingClip struct {
	ID            string             `json:"id"`
	GuildID       string             `json:"guild_id"`
	CorrectRank   ranks.Rank         `json:"correct_rank"`
	SubmitterID   string             `json:"submitter_id,omitempty"`
	SubmitterName string             `json:"submitter_name,omitempty"`
	Media         MediaRef           `json:"media"`
	ChannelID     string             `json:"channel_id,omitempty"`
	MessageID     string             `json:"message_id,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	EndTime       time.Time          `json:"end_time"`
	Ballots       map[string]Ballot  `json:"ballots"`
	Counts        map[ranks.Rank]int `json:"counts"`
	TotalVotes    int                `json:"total_votes"`
	Expired       bool               `json:"expired"`
	ExpiredAt     time.Time          `json:"expired_at,omitzero"`
}

// Due reports whether the clip is still marked active but past its window.
func (c VotingClip) Due(now time.Time) bool {
	return !c.Expired && now.After(c.EndTime)
}

// Recount rebuilds Counts and TotalVotes from Ballots.
func (c *VotingClip) Recount() {
	counts := make(map[ranks.Rank]int, len(c.Ballots))
	for _, ballot := range c.Ballots {
		counts[ballot.Rank]++
	}
	c.Counts = counts
	c.TotalVotes = len(c.Ballots)
}

// HistoryEntry is one scored guess.
type HistoryEntry struct {
	ClipID      string     `json:"clip_id"`
	Guessed     ranks.Rank `json:"guessed"`
	Correct     ranks.Rank `json:"correct"`
	Points      float64    `json:"points"`
	Exact       bool       `json:"exact"`
	StreakAfter int        `json:"streak_after"`
	ScoredAt    time.Time  `json:"scored_at"`
}

// ScoreProfile is a user's cumulative record in one guild.
type ScoreProfile struct {
	UserID         string         `json:"user_id"`
	Username       string         `json:"username,omitempty"`
	TotalScore     float64        `json:"total_score"`
	GamesPlayed    int            `json:"games_played"`
	CorrectGuesses int            `json:"correct_guesses"`
	CurrentStreak  int            `json:"current_streak"`
	BestStreak     int            `json:"best_streak"`
	History        []HistoryEntry `json:"history,omitempty"`
}

// Accuracy returns correct guesses as a percentage of games played.
func (p ScoreProfile) Accuracy() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.CorrectGuesses) / float64(p.GamesPlayed) * 100
}

// GuildState is every partition of one guild.
type GuildState struct {
	GuildID string
	Config  *GuildConfig
	Pending map[string]PendingClip
	Voting  map[string]VotingClip
	Scores  map[string]ScoreProfile
}

func newGuildState(guildID string) *GuildState {
	return &GuildState{
		GuildID: guildID,
		Pending: make(map[string]PendingClip),
		Voting:  make(map[string]VotingClip),
		Scores:  make(map[string]ScoreProfile),
	}
}

// ClipsByEnd returns voting clips ordered by end time, oldest first.
func (g *GuildState) ClipsByEnd(filter func(VotingClip) bool) []VotingClip {
	clips := make([]VotingClip, 0, len(g.Voting))
	for _, clip := range g.Voting {
		if filter == nil || filter(clip) {
			clips = append(clips, clip)
		}
	}
	sort.Slice(clips, func(i, j int) bool {
		if !clips[i].EndTime.Equal(clips[j].EndTime) {
			return clips[i].EndTime.Before(clips[j].EndTime)
		}
		return clips[i].ID < clips[j].ID
	})
	return clips
}
