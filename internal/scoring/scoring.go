// Package scoring turns a finished clip's ballots into score profile updates.
package scoring

import (
	"math"
	"sort"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/ranks"
	"guessrank/internal/store"
)

// Rules holds the points formula constants.
type Rules struct {
	BasePoints       float64
	StreakMultiplier float64
	PenaltyPerRank   float64
	HistoryLimit     int
}

// RulesFromConfig reads the scoring section.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		BasePoints:       cfg.Scoring.BasePoints,
		StreakMultiplier: cfg.Scoring.StreakMultiplier,
		PenaltyPerRank:   cfg.Scoring.PenaltyPerRank,
		HistoryLimit:     cfg.Scoring.HistoryLimit,
	}
}

// DefaultRules returns base 10, multiplier 0.10, penalty 2, history 10.
func DefaultRules() Rules {
	cfg := config.Default()
	return RulesFromConfig(&cfg)
}

// Points computes the award for one guess given the voter's streak before
// this clip is scored.
func (r Rules) Points(guess, correct ranks.Rank, streak int) float64 {
	if guess == correct {
		return round2(r.BasePoints * (1 + float64(streak)*r.StreakMultiplier))
	}
	return round2(math.Max(0, r.BasePoints-float64(ranks.Distance(guess, correct))*r.PenaltyPerRank))
}

// Award is one voter's result for a clip.
type Award struct {
	UserID      string
	Guessed     ranks.Rank
	Points      float64
	Exact       bool
	StreakAfter int
}

// ScoreClip applies every ballot on clip to profiles and returns the awards
// in voter ID order. Profiles are created lazily.
func (r Rules) ScoreClip(profiles map[string]store.ScoreProfile, clip store.VotingClip, now time.Time) []Award {
	voters := make([]string, 0, len(clip.Ballots))
	for voterID := range clip.Ballots {
		voters = append(voters, voterID)
	}
	sort.Strings(voters)

	awards := make([]Award, 0, len(voters))
	for _, voterID := range voters {
		ballot := clip.Ballots[voterID]
		profile, ok := profiles[voterID]
		if !ok {
			profile = store.ScoreProfile{UserID: voterID}
		}
		if ballot.VoterName != "" {
			profile.Username = ballot.VoterName
		}

		exact := ballot.Rank == clip.CorrectRank
		points := r.Points(ballot.Rank, clip.CorrectRank, profile.CurrentStreak)
		profile.TotalScore = round2(profile.TotalScore + points)
		profile.GamesPlayed++
		if exact {
			profile.CorrectGuesses++
			profile.CurrentStreak++
			profile.BestStreak = max(profile.BestStreak, profile.CurrentStreak)
		} else {
			profile.CurrentStreak = 0
		}
		profile.History = append(profile.History, store.HistoryEntry{
			ClipID:      clip.ID,
			Guessed:     ballot.Rank,
			Correct:     clip.CorrectRank,
			Points:      points,
			Exact:       exact,
			StreakAfter: profile.CurrentStreak,
			ScoredAt:    now,
		})
		if limit := r.HistoryLimit; limit > 0 && len(profile.History) > limit {
			profile.History = append([]store.HistoryEntry(nil), profile.History[len(profile.History)-limit:]...)
		}
		profiles[voterID] = profile

		awards = append(awards, Award{
			UserID:      voterID,
			Guessed:     ballot.Rank,
			Points:      points,
			Exact:       exact,
			StreakAfter: profile.CurrentStreak,
		})
	}
	return awards
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
