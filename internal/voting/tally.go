package voting

import (
	"guessrank/internal/ranks"
	"guessrank/internal/store"
)

// TallyRow is one rank's share of the vote.
type TallyRow struct {
	Rank    ranks.Rank
	Count   int
	Percent float64
	Correct bool
}

// Summary is the announced outcome of a clip.
type Summary struct {
	ClipID  string
	Correct ranks.Rank
	Total   int
	Rows    []TallyRow
	// CorrectVoters counts ballots that named the correct rank.
	CorrectVoters int
}

// Tally summarizes clip's counts over every rank, lowest first.
func Tally(clip store.VotingClip) Summary {
	summary := Summary{ClipID: clip.ID, Correct: clip.CorrectRank, Total: clip.TotalVotes}
	for _, rank := range ranks.All() {
		count := max(0, clip.Counts[rank])
		row := TallyRow{Rank: rank, Count: count, Correct: rank == clip.CorrectRank}
		if summary.Total > 0 {
			row.Percent = float64(count) / float64(summary.Total) * 100
		}
		if row.Correct {
			summary.CorrectVoters = count
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary
}

// Percent returns the share recorded for rank.
func (s Summary) Percent(rank ranks.Rank) float64 {
	for _, row := range s.Rows {
		if row.Rank == rank {
			return row.Percent
		}
	}
	return 0
}
