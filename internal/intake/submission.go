package intake

import (
	"time"

	"guessrank/internal/ranks"
)

// Phase is where a submission sits in the selection flow.
type Phase string

const (
	PhaseSelectGuild Phase = "select_guild"
	PhaseSelectRank  Phase = "select_rank"
	PhaseProcessing  Phase = "processing"
)

// Submission is the per-submission context passed through every stage.
type Submission struct {
	ID            string
	SubmitterID   string
	SubmitterName string
	// DMChannelID and DMMessageID locate the submitter's original message.
	DMChannelID  string
	DMMessageID  string
	StagedPath   string
	OriginalName string
	Size         int64
	GuildID      string
	Candidates   []string
	ClaimedRank  ranks.Rank
	Phase        Phase
	CreatedAt    time.Time
}

// Ready reports whether guild and rank are both chosen.
func (s Submission) Ready() bool {
	return s.GuildID != "" && s.ClaimedRank.Valid()
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
