package api_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"guessrank/internal/api"
	"guessrank/internal/logging"
	"guessrank/internal/ranks"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/testsupport"
)

type fakeResolver struct {
	existing map[string]string
	calls    []string
	err      error
}

func (f *fakeResolver) EnsureChannel(_ context.Context, guildID string, role store.ChannelRole, name string) (string, bool, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", false, f.err
	}
	if id, ok := f.existing[name]; ok {
		return id, false, nil
	}
	id := fmt.Sprintf("%s-%s-new", guildID, role)
	if f.existing == nil {
		f.existing = map[string]string{}
	}
	f.existing[name] = id
	return id, true, nil
}

func newService(t *testing.T) (*api.Service, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return api.NewService(cfg, st, logging.NewNop()), st
}

var admin = api.Caller{UserID: "admin", Admin: true}

func expireClip(t *testing.T, st *store.Store, guildID, clipID string, at time.Time) {
	t.Helper()
	err := st.UpdateGuild(context.Background(), guildID, func(state *store.GuildState) error {
		clip := state.Voting[clipID]
		clip.Expired = true
		clip.ExpiredAt = at
		state.Voting[clipID] = clip
		return nil
	})
	if err != nil {
		t.Fatalf("expire %s: %v", clipID, err)
	}
}

func TestSetupCreatesMissingChannelsAndIsIdempotent(t *testing.T) {
	svc, st := newService(t)
	resolver := &fakeResolver{existing: map[string]string{"check-clips": "mod-1"}}

	result, err := svc.Setup(context.Background(), "g1", admin, resolver)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if result.Reconfigured {
		t.Fatal("first setup should not be a reconfiguration")
	}
	if len(result.Channels) != 3 {
		t.Fatalf("expected 3 channels, got %+v", result.Channels)
	}
	if result.Channels[0].ID != "mod-1" || result.Channels[0].Created {
		t.Fatalf("existing moderation channel should be reused: %+v", result.Channels[0])
	}
	if !result.Channels[1].Created || !result.Channels[2].Created {
		t.Fatalf("voting and results channels should be created: %+v", result.Channels)
	}

	state, err := st.ReadGuild(context.Background(), "g1")
	if err != nil {
		t.Fatalf("ReadGuild: %v", err)
	}
	if state.Config == nil || !state.Config.Complete() {
		t.Fatalf("expected complete config, got %+v", state.Config)
	}
	if state.Config.ConfiguredBy != "admin" {
		t.Fatalf("configured_by = %q", state.Config.ConfiguredBy)
	}

	again, err := svc.Setup(context.Background(), "g1", admin, resolver)
	if err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	if !again.Reconfigured {
		t.Fatal("second setup should report reconfiguration")
	}
	for _, ch := range again.Channels {
		if ch.Created {
			t.Fatalf("second setup created %s again", ch.Name)
		}
	}
}

func TestSetupRequiresAdmin(t *testing.T) {
	svc, _ := newService(t)
	resolver := &fakeResolver{}
	_, err := svc.Setup(context.Background(), "g1", api.Caller{UserID: "u"}, resolver)
	if !errors.Is(err, services.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if len(resolver.calls) != 0 {
		t.Fatalf("resolver should not be called, got %v", resolver.calls)
	}
}

func TestSetupResolverFailureStoresNothing(t *testing.T) {
	svc, st := newService(t)
	_, err := svc.Setup(context.Background(), "g1", admin, &fakeResolver{err: errors.New("missing access")})
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
	state, _ := st.ReadGuild(context.Background(), "g1")
	if state.Config != nil {
		t.Fatalf("config should not be stored, got %+v", state.Config)
	}
}

func TestRebindKeepsName(t *testing.T) {
	svc, st := newService(t)
	testsupport.SeedGuild(t, st, "g1")
	if err := svc.Rebind(context.Background(), "g1", store.RoleVoting, "vote-2"); err != nil {
		t.Fatalf("Rebind: %v", err)
	}
	state, _ := st.ReadGuild(context.Background(), "g1")
	if state.Config.Voting.ID != "vote-2" || state.Config.Voting.Name != "guess-my-rank" {
		t.Fatalf("unexpected voting ref: %+v", state.Config.Voting)
	}
	if err := svc.Rebind(context.Background(), "g2", store.RoleVoting, "x"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown guild, got %v", err)
	}
}

func TestResultsOnlyExpiredNewestFirst(t *testing.T) {
	svc, st := newService(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testsupport.SeedVotingClip(t, st, "g1", "old", ranks.Atom, base, 24*time.Hour)
	testsupport.SeedVotingClip(t, st, "g1", "new", ranks.Quark, base.Add(time.Hour), 24*time.Hour)
	testsupport.SeedVotingClip(t, st, "g1", "open", ranks.Proton, base.Add(2*time.Hour), 24*time.Hour)
	expireClip(t, st, "g1", "old", base.Add(25*time.Hour))
	expireClip(t, st, "g1", "new", base.Add(26*time.Hour))

	resp, err := svc.Results(context.Background(), "g1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(resp.Clips) != 2 || resp.Clips[0].ID != "new" || resp.Clips[1].ID != "old" {
		t.Fatalf("unexpected results order: %+v", resp.Clips)
	}

	if _, err := svc.ResultDetail(context.Background(), "g1", "open"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("open clip should not be revealed, got %v", err)
	}
	if _, err := svc.ResultDetail(context.Background(), "g1", "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	detail, err := svc.ResultDetail(context.Background(), "g1", "old")
	if err != nil {
		t.Fatalf("ResultDetail: %v", err)
	}
	if detail.CorrectRank != "Atom" || len(detail.Tally) != len(ranks.All()) {
		t.Fatalf("unexpected detail: %+v", detail)
	}
}

func TestResultsIsolatedPerGuild(t *testing.T) {
	svc, st := newService(t)
	now := time.Now().Add(-48 * time.Hour)
	testsupport.SeedVotingClip(t, st, "g1", "c1", ranks.Atom, now, time.Hour)
	expireClip(t, st, "g1", "c1", now.Add(2*time.Hour))

	resp, err := svc.Results(context.Background(), "g2")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(resp.Clips) != 0 {
		t.Fatalf("guild g2 saw g1 clips: %+v", resp.Clips)
	}
	if _, err := svc.ResultDetail(context.Background(), "g2", "c1"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found across guilds, got %v", err)
	}
}

func TestCleanupOldestExpired(t *testing.T) {
	svc, st := newService(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		testsupport.SeedVotingClip(t, st, "g1", id, ranks.Atom, base.Add(time.Duration(i)*time.Hour), time.Hour)
		expireClip(t, st, "g1", id, base.Add(time.Duration(i+2)*time.Hour))
	}
	testsupport.SeedVotingClip(t, st, "g1", "open", ranks.Atom, time.Now(), 24*time.Hour)

	if _, err := svc.Cleanup(context.Background(), "g1", 1, api.Caller{UserID: "u"}); !errors.Is(err, services.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}

	result, err := svc.Cleanup(context.Background(), "g1", 2, admin)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if len(result.Removed) != 2 || result.Removed[0] != "a" || result.Removed[1] != "b" {
		t.Fatalf("expected oldest two removed, got %v", result.Removed)
	}
	if result.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", result.Remaining)
	}

	result, err = svc.Cleanup(context.Background(), "g1", 0, admin)
	if err != nil {
		t.Fatalf("Cleanup all: %v", err)
	}
	if len(result.Removed) != 1 || result.Removed[0] != "c" {
		t.Fatalf("expected remaining expired clip removed, got %v", result.Removed)
	}
	state, _ := st.ReadGuild(context.Background(), "g1")
	if _, ok := state.Voting["open"]; !ok || len(state.Voting) != 1 {
		t.Fatalf("active clip must survive cleanup, have %d clips", len(state.Voting))
	}
}

func seedProfiles(t *testing.T, st *store.Store, guildID string, n int) {
	t.Helper()
	err := st.UpdateGuild(context.Background(), guildID, func(state *store.GuildState) error {
		for i := range n {
			id := fmt.Sprintf("user-%02d", i)
			state.Scores[id] = store.ScoreProfile{
				UserID:         id,
				Username:       "player" + id,
				TotalScore:     float64(i * 5),
				GamesPlayed:    4,
				CorrectGuesses: i % 5,
				History: []store.HistoryEntry{
					{ClipID: "first", Guessed: ranks.Atom, Correct: ranks.Atom, Points: 10, Exact: true},
					{ClipID: "second", Guessed: ranks.Atom, Correct: ranks.Quark, Points: 2},
				},
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed profiles: %v", err)
	}
}

func TestScoreboardPaging(t *testing.T) {
	svc, st := newService(t)
	seedProfiles(t, st, "g1", 23)

	page, err := svc.Scoreboard(context.Background(), "g1", 1)
	if err != nil {
		t.Fatalf("Scoreboard: %v", err)
	}
	if page.Pages != 3 || page.Players != 23 || len(page.Rows) != 10 {
		t.Fatalf("unexpected page meta: %+v", page)
	}
	if page.Rows[0].UserID != "user-22" || page.Rows[0].Position != 1 {
		t.Fatalf("expected top scorer first, got %+v", page.Rows[0])
	}

	last, err := svc.Scoreboard(context.Background(), "g1", 99)
	if err != nil {
		t.Fatalf("Scoreboard: %v", err)
	}
	if last.Page != 3 || len(last.Rows) != 3 || last.Rows[2].Position != 23 {
		t.Fatalf("expected clamped last page, got %+v", last)
	}

	empty, err := svc.Scoreboard(context.Background(), "g2", 1)
	if err != nil {
		t.Fatalf("Scoreboard: %v", err)
	}
	if empty.Pages != 1 || len(empty.Rows) != 0 {
		t.Fatalf("unexpected empty board: %+v", empty)
	}
}

func TestProfilePositionAndHistory(t *testing.T) {
	svc, st := newService(t)
	seedProfiles(t, st, "g1", 5)

	profile, err := svc.Profile(context.Background(), "g1", "user-03")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if profile.Position != 2 || profile.Players != 5 {
		t.Fatalf("position %d of %d, want 2 of 5", profile.Position, profile.Players)
	}
	if profile.Accuracy != 75 {
		t.Fatalf("accuracy = %v, want 75", profile.Accuracy)
	}
	if len(profile.History) != 2 || profile.History[0].ClipID != "second" {
		t.Fatalf("expected newest history first, got %+v", profile.History)
	}

	_, err = svc.Profile(context.Background(), "g1", "stranger")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if msg := services.UserMessage(err); msg == "" || msg == "That item could not be found." {
		t.Fatalf("expected a profile-specific message, got %q", msg)
	}
}

func TestActiveClipsHideAnswer(t *testing.T) {
	svc, st := newService(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })
	testsupport.SeedVotingClip(t, st, "g1", "open", ranks.Quark, now.Add(-time.Hour), 24*time.Hour)
	testsupport.SeedVotingClip(t, st, "g1", "late", ranks.Atom, now.Add(-48*time.Hour), 24*time.Hour)

	clips, err := svc.ActiveClips(context.Background(), "g1")
	if err != nil {
		t.Fatalf("ActiveClips: %v", err)
	}
	if len(clips) != 1 || clips[0].ID != "open" {
		t.Fatalf("unexpected active clips: %+v", clips)
	}
	if clips[0].CorrectRank != "" || clips[0].Tally != nil {
		t.Fatalf("active clip leaked its answer: %+v", clips[0])
	}
}

func TestHelpMentionsChannels(t *testing.T) {
	svc, _ := newService(t)
	sections := svc.Help()
	if len(sections) != 4 {
		t.Fatalf("expected 4 help sections, got %d", len(sections))
	}
	if sections[2].Body != "MP4, AVI, MOV, MKV, WMV, FLV, WEBM" {
		t.Fatalf("formats = %q", sections[2].Body)
	}
}
