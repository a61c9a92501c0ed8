// Package voting enforces the one-vote, one-change ballot rules on voting
// clips and summarizes tallies.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guessrank/internal/logging"
	"guessrank/internal/ranks"
	"guessrank/internal/services"
	"guessrank/internal/store"
)

var (
	// ErrVotingEnded is returned for votes on expired clips or after end time.
	ErrVotingEnded = errors.New("voting has ended")
	// ErrChangeLimit is returned when the voter already used their change.
	ErrChangeLimit = errors.New("vote change limit reached")
	// ErrSameVote is returned when the new choice equals the current one.
	ErrSameVote = errors.New("vote unchanged")
)

// Outcome describes how a vote changed the clip.
type Outcome int

const (
	// Recorded is a voter's first ballot.
	Recorded Outcome = iota + 1
	// Changed is a voter's single allowed change.
	Changed
)

// Result is returned by a successful Cast.
type Result struct {
	Outcome  Outcome
	Previous ranks.Rank
	Clip     store.VotingClip
}

// Apply records a vote on clip in place. It never mutates clip when it
// returns an error.
func Apply(clip *store.VotingClip, voterID, voterName string, rank ranks.Rank, now time.Time) (Outcome, ranks.Rank, error) {
	if clip.Expired || now.After(clip.EndTime) {
		return 0, "", ErrVotingEnded
	}
	if clip.Ballots == nil {
		clip.Ballots = make(map[string]store.Ballot)
	}
	if clip.Counts == nil {
		clip.Counts = make(map[ranks.Rank]int)
	}

	prior, voted := clip.Ballots[voterID]
	switch {
	case !voted:
		clip.Ballots[voterID] = store.Ballot{Rank: rank, VoterName: voterName, CastAt: now}
		clip.Counts[rank]++
		clip.TotalVotes++
		return Recorded, "", nil
	case prior.Rank == rank:
		return 0, prior.Rank, ErrSameVote
	case prior.Changed:
		return 0, prior.Rank, ErrChangeLimit
	default:
		clip.Counts[prior.Rank] = max(0, clip.Counts[prior.Rank]-1)
		if clip.Counts[prior.Rank] == 0 {
			delete(clip.Counts, prior.Rank)
		}
		clip.Counts[rank]++
		clip.Ballots[voterID] = store.Ballot{Rank: rank, VoterName: firstNonEmpty(voterName, prior.VoterName), Changed: true, CastAt: now}
		return Changed, prior.Rank, nil
	}
}

// Service applies votes through the store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a voting service.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logging.NewComponentLogger(logger, "voting"),
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Cast records voterID's choice on clipID. Votes within one guild are
// serialized by the store.
func (s *Service) Cast(ctx context.Context, guildID, clipID, voterID, voterName string, rank ranks.Rank) (Result, error) {
	if !rank.Valid() {
		return Result{}, services.Describe("Pick one of the listed ranks.",
			services.Wrap(services.ErrValidation, "voting", "cast", fmt.Sprintf("unknown rank %q", rank), nil))
	}
	var result Result
	err := s.store.UpdateGuild(ctx, guildID, func(state *store.GuildState) error {
		clip, ok := state.Voting[clipID]
		if !ok {
			return services.Describe("This clip no longer exists.",
				services.Wrap(services.ErrNotFound, "voting", "cast", "clip "+clipID, nil))
		}
		outcome, previous, err := Apply(&clip, voterID, voterName, rank, s.now())
		if err != nil {
			return signal(err)
		}
		state.Voting[clipID] = clip
		result = Result{Outcome: outcome, Previous: previous, Clip: clip}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logging.WithContext(services.WithClipID(services.WithGuildID(ctx, guildID), clipID), s.logger).Debug("vote recorded",
		logging.String(logging.FieldUserID, voterID),
		logging.String("rank", string(rank)),
		logging.Bool("changed", result.Outcome == Changed),
		logging.Int("total_votes", result.Clip.TotalVotes),
		logging.String(logging.FieldEventType, "vote_recorded"),
	)
	return result, nil
}

// signal tags a rule rejection as a validation error with a user message.
func signal(err error) error {
	var message string
	switch {
	case errors.Is(err, ErrVotingEnded):
		message = "Voting for this clip has ended."
	case errors.Is(err, ErrChangeLimit):
		message = "You have already changed your vote once."
	case errors.Is(err, ErrSameVote):
		message = "You already voted for that rank."
	default:
		return err
	}
	return services.Describe(message, services.Wrap(services.ErrValidation, "voting", "cast", "", err))
}

// NewClip builds the voting clip created at moderation approval.
func NewClip(id string, pending store.PendingClip, now time.Time, window time.Duration) store.VotingClip {
	return store.VotingClip{
		ID:            id,
		GuildID:       pending.GuildID,
		CorrectRank:   pending.ClaimedRank,
		SubmitterID:   pending.SubmitterID,
		SubmitterName: pending.SubmitterName,
		Media:         pending.Media,
		CreatedAt:     now,
		EndTime:       now.Add(window),
		Ballots:       map[string]store.Ballot{},
		Counts:        map[ranks.Rank]int{},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
