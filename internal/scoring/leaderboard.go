package scoring

import (
	"sort"

	"guessrank/internal/store"
)

// PageSize is the number of scoreboard rows per page.
const PageSize = 10

// Standing is one leaderboard row.
type Standing struct {
	Position int
	Profile  store.ScoreProfile
}

// Leaderboard orders profiles by score, then correct guesses, then user ID.
func Leaderboard(profiles map[string]store.ScoreProfile) []Standing {
	rows := make([]store.ScoreProfile, 0, len(profiles))
	for userID, profile := range profiles {
		if profile.UserID == "" {
			profile.UserID = userID
		}
		rows = append(rows, profile)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.CorrectGuesses != b.CorrectGuesses {
			return a.CorrectGuesses > b.CorrectGuesses
		}
		return a.UserID < b.UserID
	})
	standings := make([]Standing, len(rows))
	for i, profile := range rows {
		standings[i] = Standing{Position: i + 1, Profile: profile}
	}
	return standings
}

// Page returns one page (1-based) of standings and the total page count.
// Out-of-range pages are clamped.
func Page(standings []Standing, page int) ([]Standing, int, int) {
	pages := max(1, (len(standings)+PageSize-1)/PageSize)
	page = min(max(page, 1), pages)
	start := (page - 1) * PageSize
	end := min(start+PageSize, len(standings))
	return standings[start:end], page, pages
}

// Position returns the 1-based leaderboard place of userID, or 0.
func Position(standings []Standing, userID string) int {
	for _, standing := range standings {
		if standing.Profile.UserID == userID {
			return standing.Position
		}
	}
	return 0
}
