package discord

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"guessrank/internal/api"
	"guessrank/internal/logging"
	"guessrank/internal/metrics"
	"guessrank/internal/ranks"
	"guessrank/internal/testsupport"
	"guessrank/internal/voting"
)

func newTestBot(t *testing.T) (*Bot, *fakeSession) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedGuild(t, st, "g1")
	testsupport.SeedVotingClip(t, st, "g1", "c1", ranks.Atom, time.Now().Add(-time.Minute), time.Hour)

	session := newFakeSession()
	commands := api.NewService(cfg, st, logging.NewNop())
	bot := NewBot(nil, session, Deps{
		Config:   cfg,
		Surface:  NewSurface(session, cfg, commands, nil, logging.NewNop()),
		Voting:   voting.NewService(st, logging.NewNop()),
		Commands: commands,
		Metrics:  metrics.New(),
		Logger:   logging.NewNop(),
	})
	return bot, session
}

func voteInteraction(userID, clipID, rank string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "i-" + userID,
		Type:    discordgo.InteractionMessageComponent,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: userID, Username: "player-" + userID}},
		Data: discordgo.MessageComponentInteractionData{
			CustomID: customID(kindVote, clipID),
			Values:   []string{rank},
		},
	}
}

func TestVoteComponentRecordsAndChanges(t *testing.T) {
	bot, session := newTestBot(t)

	bot.onInteraction(voteInteraction("u1", "c1", "Atom"))
	resp := session.lastResponse()
	if resp == nil || resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Fatalf("expected ephemeral reply, got %+v", resp)
	}
	if !strings.Contains(resp.Data.Content, "**Atom** has been recorded") {
		t.Fatalf("unexpected reply %q", resp.Data.Content)
	}

	bot.onInteraction(voteInteraction("u1", "c1", "Quark"))
	if got := session.lastResponse().Data.Content; !strings.Contains(got, "from **Atom** to **Quark**") {
		t.Fatalf("unexpected change reply %q", got)
	}

	bot.onInteraction(voteInteraction("u1", "c1", "Proton"))
	if got := session.lastResponse().Data.Content; !strings.HasPrefix(got, "❌ ") {
		t.Fatalf("second change should be refused, got %q", got)
	}
}

func TestVoteOnUnknownClip(t *testing.T) {
	bot, session := newTestBot(t)

	bot.onInteraction(voteInteraction("u1", "missing", "Atom"))
	if got := session.lastResponse().Data.Content; !strings.HasPrefix(got, "❌ ") {
		t.Fatalf("expected refusal, got %q", got)
	}
}

func TestGuildCommandInDMIsRefused(t *testing.T) {
	bot, session := newTestBot(t)
	bot.onInteraction(&discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u1"},
		Data: discordgo.ApplicationCommandInteractionData{Name: "scoreboard"},
	})
	if got := session.lastResponse().Data.Content; got != "This command only works in a server." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSetupRequiresManageChannels(t *testing.T) {
	bot, session := newTestBot(t)
	bot.onInteraction(&discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g2",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data:    discordgo.ApplicationCommandInteractionData{Name: "setup"},
	})
	if len(session.webhooks) != 1 || !strings.HasPrefix(*session.webhooks[0].Content, "❌ ") {
		t.Fatalf("expected refusal edit, got %+v", session.webhooks)
	}
	if len(session.created) != 0 {
		t.Fatalf("no channels should be created")
	}
}

func TestSetupCreatesChannels(t *testing.T) {
	bot, session := newTestBot(t)
	bot.onInteraction(&discordgo.Interaction{
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g2",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "admin"},
			Permissions: discordgo.PermissionManageChannels,
		},
		Data: discordgo.ApplicationCommandInteractionData{Name: "setup"},
	})
	if len(session.created) != 3 {
		t.Fatalf("expected three channels created, got %d", len(session.created))
	}
	if got := *session.webhooks[0].Content; !strings.HasPrefix(got, "✅ Created channels:") {
		t.Fatalf("unexpected setup reply %q", got)
	}
}

func TestDirectMessageWithoutClip(t *testing.T) {
	bot, session := newTestBot(t)
	bot.onMessage(&discordgo.Message{
		ID:        "dm1",
		ChannelID: "dm-u1",
		Content:   "hello",
		Author:    &discordgo.User{ID: "u1"},
	})
	if session.sentCount() != 1 || !strings.HasPrefix(session.sent[0].Data.Content, "📹") {
		t.Fatalf("expected usage hint, got %+v", session.sent)
	}
}

func TestGuildMessageAnswersReasonPrompt(t *testing.T) {
	bot, session := newTestBot(t)
	done := make(chan string, 1)
	session.onSend = func(string, *discordgo.MessageSend) {
		go bot.onMessage(&discordgo.Message{ChannelID: "g1-mod", GuildID: "g1", Content: "blurry", Author: &discordgo.User{ID: "mod1"}})
	}
	go func() {
		reason, _ := bot.deps.Surface.AskReason(context.Background(), "g1-mod", "mod1", time.Second)
		done <- reason
	}()
	select {
	case got := <-done:
		if got != "blurry" {
			t.Fatalf("reason = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("reason prompt never answered")
	}
}

func TestSourceOf(t *testing.T) {
	src, ok := sourceOf(&discordgo.Message{Content: "check this <https://streamable.com/abc>"})
	if !ok || !src.Link || src.URL != "https://streamable.com/abc" {
		t.Fatalf("unexpected link source %+v", src)
	}
	src, ok = sourceOf(&discordgo.Message{Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/x.mp4", Filename: "x.mp4", Size: 42}}})
	if !ok || src.Link || src.Size != 42 {
		t.Fatalf("unexpected attachment source %+v", src)
	}
	if _, ok := sourceOf(&discordgo.Message{Content: "no clip"}); ok {
		t.Fatalf("expected no source")
	}
}

func TestVoteOutcome(t *testing.T) {
	if got := voteOutcome(voting.Result{}, voting.ErrChangeLimit); got != "limit" {
		t.Fatalf("outcome = %q", got)
	}
	if got := voteOutcome(voting.Result{Outcome: voting.Changed}, nil); got != "changed" {
		t.Fatalf("outcome = %q", got)
	}
}
