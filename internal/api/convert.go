package api

import (
	"slices"
	"strings"
	"time"

	"guessrank/internal/deps"
	"guessrank/internal/ranks"
	"guessrank/internal/scoring"
	"guessrank/internal/stage"
	"guessrank/internal/store"
	"guessrank/internal/voting"
	"guessrank/internal/workflow"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromVotingClip converts a clip and its tally. emojis decorates rank labels.
func FromVotingClip(clip store.VotingClip, emojis map[string]string) ClipResult {
	summary := voting.Tally(clip)
	dto := ClipResult{
		ID:            clip.ID,
		CorrectRank:   string(clip.CorrectRank),
		SubmitterID:   clip.SubmitterID,
		SubmitterName: clip.SubmitterName,
		MediaURL:      clip.Media.URL,
		CreatedAt:     formatTime(clip.CreatedAt),
		EndTime:       formatTime(clip.EndTime),
		ExpiredAt:     formatTime(clip.ExpiredAt),
		Expired:       clip.Expired,
		TotalVotes:    summary.Total,
		CorrectVoters: summary.CorrectVoters,
		Tally:         make([]TallyRow, 0, len(summary.Rows)),
	}
	for _, row := range summary.Rows {
		dto.Tally = append(dto.Tally, TallyRow{
			Rank:    string(row.Rank),
			Label:   ranks.Label(row.Rank, emojis),
			Count:   row.Count,
			Percent: row.Percent,
			Correct: row.Correct,
		})
	}
	return dto
}

// FromProfile converts a score profile. position and players come from the
// guild leaderboard; history is returned newest first.
func FromProfile(profile store.ScoreProfile, position, players int) Profile {
	dto := Profile{
		UserID:         profile.UserID,
		Username:       profile.Username,
		Position:       position,
		Players:        players,
		TotalScore:     profile.TotalScore,
		GamesPlayed:    profile.GamesPlayed,
		CorrectGuesses: profile.CorrectGuesses,
		Accuracy:       profile.Accuracy(),
		CurrentStreak:  profile.CurrentStreak,
		BestStreak:     profile.BestStreak,
	}
	for i := len(profile.History) - 1; i >= 0; i-- {
		entry := profile.History[i]
		dto.History = append(dto.History, HistoryEntry{
			ClipID:   entry.ClipID,
			Guessed:  string(entry.Guessed),
			Correct:  string(entry.Correct),
			Points:   entry.Points,
			Exact:    entry.Exact,
			ScoredAt: formatTime(entry.ScoredAt),
		})
	}
	return dto
}

// FromStandings converts leaderboard rows.
func FromStandings(standings []scoring.Standing) []ScoreboardRow {
	rows := make([]ScoreboardRow, 0, len(standings))
	for _, s := range standings {
		rows = append(rows, ScoreboardRow{
			Position:       s.Position,
			UserID:         s.Profile.UserID,
			Username:       s.Profile.Username,
			TotalScore:     s.Profile.TotalScore,
			GamesPlayed:    s.Profile.GamesPlayed,
			CorrectGuesses: s.Profile.CorrectGuesses,
			BestStreak:     s.Profile.BestStreak,
		})
	}
	return rows
}

// FromStatusSummary converts a workflow status summary into its API form.
func FromStatusSummary(summary workflow.StatusSummary, running bool) WorkflowStatus {
	return WorkflowStatus{
		Running:     running,
		Active:      summary.Active,
		Processed:   summary.Processed,
		Failed:      summary.Failed,
		QueueActive: summary.QueueActive,
		QueueWait:   summary.QueueWait,
		QueueLimit:  summary.QueueLimit,
		LastError:   summary.LastError,
		LastErrorAt: formatTime(summary.LastErrorAt),
		StageHealth: StageHealthSlice(summary.Health),
	}
}

// StageHealthSlice returns health entries ordered by name.
func StageHealthSlice(health []stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	slices.SortFunc(out, func(a, b StageHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}
