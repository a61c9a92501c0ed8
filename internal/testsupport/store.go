package testsupport

import (
	"context"
	"testing"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/ranks"
	"guessrank/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedGuild stores a complete channel configuration for guildID.
func SeedGuild(t testing.TB, st *store.Store, guildID string) store.GuildConfig {
	t.Helper()

	cfg := store.GuildConfig{
		GuildID:    guildID,
		Moderation: store.ChannelRef{ID: guildID + "-mod", Name: "check-clips"},
		Voting:     store.ChannelRef{ID: guildID + "-vote", Name: "guess-my-rank"},
		Results:    store.ChannelRef{ID: guildID + "-results", Name: "rank-results"},
	}
	err := st.UpdateGuild(context.Background(), guildID, func(state *store.GuildState) error {
		state.Config = &cfg
		return nil
	})
	if err != nil {
		t.Fatalf("seed guild %s: %v", guildID, err)
	}
	return cfg
}

// SeedVotingClip stores an active clip with no ballots.
func SeedVotingClip(t testing.TB, st *store.Store, guildID, clipID string, correct ranks.Rank, created time.Time, window time.Duration) store.VotingClip {
	t.Helper()

	clip := store.VotingClip{
		ID:          clipID,
		GuildID:     guildID,
		CorrectRank: correct,
		SubmitterID: "submitter",
		CreatedAt:   created,
		EndTime:     created.Add(window),
		Ballots:     map[string]store.Ballot{},
		Counts:      map[ranks.Rank]int{},
	}
	err := st.UpdateGuild(context.Background(), guildID, func(state *store.GuildState) error {
		state.Voting[clipID] = clip
		return nil
	})
	if err != nil {
		t.Fatalf("seed clip %s: %v", clipID, err)
	}
	return clip
}
