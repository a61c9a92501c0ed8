package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"guessrank/internal/config"
	"guessrank/internal/gateway"
	"guessrank/internal/intake"
	"guessrank/internal/moderation"
	"guessrank/internal/ranks"
	"guessrank/internal/services"
	"guessrank/internal/store"
	"guessrank/internal/sweep"
	"guessrank/internal/testsupport"
	"guessrank/internal/transform"
	"guessrank/internal/voting"
	"guessrank/internal/workflow"
)

type surface struct {
	mu      sync.Mutex
	next    int
	reviews []moderation.Review
}

func (s *surface) PostReview(_ context.Context, cfg store.GuildConfig, review moderation.Review) (moderation.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.reviews = append(s.reviews, review)
	return moderation.Post{
		ChannelID:      cfg.Moderation.ID,
		MessageID:      fmt.Sprintf("review-%d", s.next),
		AttachmentURL:  "https://cdn.discordapp.com/attachments/1/2/guess_my_rank.mp4",
		AttachmentName: "guess_my_rank.mp4",
	}, nil
}

func (s *surface) PublishVote(_ context.Context, cfg store.GuildConfig, clip store.VotingClip) (moderation.Post, error) {
	return moderation.Post{ChannelID: cfg.Voting.ID, MessageID: "vote-" + clip.ID}, nil
}

func (*surface) Delete(context.Context, moderation.Post) error        { return nil }
func (*surface) React(context.Context, moderation.Post, string) error { return nil }
func (*surface) DirectMessage(context.Context, string, string) error  { return nil }
func (*surface) ReviewMedia(_ context.Context, review moderation.Post) (store.MediaRef, error) {
	return store.MediaRef{URL: "https://cdn.discordapp.com/attachments/1/2/guess_my_rank.mp4", AttachmentName: "guess_my_rank.mp4"}, nil
}
func (*surface) AskReason(context.Context, string, string, time.Duration) (string, error) {
	return "", moderation.ErrNoReason
}

type announcer struct{ results []sweep.Expired }

func (*announcer) DisableVoting(context.Context, store.VotingClip) error { return nil }
func (a *announcer) AnnounceResults(_ context.Context, _ store.GuildConfig, r sweep.Expired) error {
	a.results = append(a.results, r)
	return nil
}

type recorder struct {
	mu         sync.Mutex
	positions  []int
	processing bool
	submitted  bool
	failed     error
}

func (r *recorder) Queued(p int) { r.mu.Lock(); r.positions = append(r.positions, p); r.mu.Unlock() }
func (r *recorder) Processing()  { r.mu.Lock(); r.processing = true; r.mu.Unlock() }
func (r *recorder) Submitted(store.PendingClip, transform.Result) {
	r.mu.Lock()
	r.submitted = true
	r.mu.Unlock()
}
func (r *recorder) Failed(err error) { r.mu.Lock(); r.failed = err; r.mu.Unlock() }

type harness struct {
	cfg      *config.Config
	store    *store.Store
	surface  *surface
	manager  *workflow.Manager
	reviewer *moderation.Service
}

func newHarness(t *testing.T, width, height int) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t,
		testsupport.WithStubScript("ffprobe", fmt.Sprintf(`cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","width":%d,"height":%d},{"index":1,"codec_type":"audio"}],"format":{"duration":"45.0"}}
JSON`, width, height)),
		testsupport.WithStubScript("ffmpeg", `for out; do :; done
head -c 4096 /dev/zero > "$out"`),
	)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedGuild(t, st, "g1")
	surf := &surface{}
	reviewer := moderation.NewService(cfg, st, surf, nil, nil, nil)
	gw := gateway.New(cfg, transform.New(cfg, nil), nil, nil)
	manager := workflow.NewManager(workflow.Deps{
		Transformer: gw,
		Reviewer:    reviewer,
		Gate:        gw.Gate(),
	})
	return &harness{cfg: cfg, store: st, surface: surf, manager: manager, reviewer: reviewer}
}

func (h *harness) submission(t *testing.T, rank ranks.Rank) intake.Submission {
	t.Helper()
	path := testsupport.StageClip(t, h.cfg.Paths.StagingDir, "submission-abc.mp4", 50)
	return intake.Submission{
		ID:            "sub-abc",
		SubmitterID:   "submitter",
		SubmitterName: "sam",
		StagedPath:    path,
		OriginalName:  "ranked.mp4",
		GuildID:       "g1",
		ClaimedRank:   rank,
		Phase:         intake.PhaseProcessing,
	}
}

func TestAtomClipFromSubmissionToScores(t *testing.T) {
	h := newHarness(t, 1920, 1080)
	ctx := context.Background()
	sub := h.submission(t, ranks.Atom)
	rep := &recorder{}

	pending, err := h.manager.Process(ctx, sub, rep)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !rep.processing || !rep.submitted || rep.failed != nil {
		t.Fatalf("unexpected reporter state %+v", rep)
	}
	testsupport.AssertMissing(t, sub.StagedPath)
	if len(h.surface.reviews) != 1 || h.surface.reviews[0].LocalPath == "" {
		t.Fatalf("expected one attached review, got %+v", h.surface.reviews)
	}
	testsupport.AssertMissing(t, h.surface.reviews[0].LocalPath)

	created := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	h.reviewer.SetClock(func() time.Time { return created })
	decision, err := h.reviewer.Approve(ctx, "g1", pending.MessageID, "mod")
	if err != nil || decision.Outcome != moderation.Approved {
		t.Fatalf("Approve: %v (%v)", decision.Outcome, err)
	}
	clipID := decision.Clip.ID
	if decision.Clip.Media.URL == "" {
		t.Fatal("approved clip should reference the review attachment")
	}

	votes := voting.NewService(h.store, nil)
	votes.SetClock(func() time.Time { return created.Add(time.Hour) })
	if _, err := votes.Cast(ctx, "g1", clipID, "v1", "vee", ranks.Atom); err != nil {
		t.Fatalf("Cast v1: %v", err)
	}
	if _, err := votes.Cast(ctx, "g1", clipID, "v2", "dub", ranks.Quark); err != nil {
		t.Fatalf("Cast v2: %v", err)
	}

	ann := &announcer{}
	sw := sweep.New(h.cfg, h.store, ann, nil, nil, nil)
	sw.SetClock(func() time.Time { return created.Add(25 * time.Hour) })
	report := sw.RunOnce(ctx)
	if len(report.Expired) != 1 || len(ann.results) != 1 {
		t.Fatalf("expected one announced clip, got %+v", report)
	}
	summary := ann.results[0].Summary
	if summary.Percent(ranks.Atom) != 50 || summary.Percent(ranks.Quark) != 50 || summary.Total != 2 {
		t.Fatalf("unexpected tally %+v", summary)
	}

	state, _ := h.store.ReadGuild(ctx, "g1")
	if got := state.Scores["v1"].TotalScore; got != 10 {
		t.Fatalf("exact voter should get 10, got %v", got)
	}
	if got := state.Scores["v2"].TotalScore; got != 2 {
		t.Fatalf("Quark voter should get 2, got %v", got)
	}

	status := h.manager.Status(ctx)
	if status.Processed != 1 || status.Failed != 0 || status.QueueLimit != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUnsupportedResolutionLeavesNothingBehind(t *testing.T) {
	h := newHarness(t, 640, 480)
	ctx := context.Background()
	sub := h.submission(t, ranks.Atom)
	rep := &recorder{}

	_, err := h.manager.Process(ctx, sub, rep)
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, transform.ErrUnsupportedResolution) {
		t.Fatalf("expected unsupported resolution validation error, got %v", err)
	}
	if rep.failed == nil || rep.submitted {
		t.Fatalf("reporter should see the failure, got %+v", rep)
	}
	testsupport.AssertMissing(t, sub.StagedPath)

	state, _ := h.store.ReadGuild(ctx, "g1")
	if len(state.Pending) != 0 || len(h.surface.reviews) != 0 {
		t.Fatalf("no review should be opened, pending=%d reviews=%d", len(state.Pending), len(h.surface.reviews))
	}
	status := h.manager.Status(ctx)
	if status.Failed != 1 || status.LastError == "" {
		t.Fatalf("failure not tracked: %+v", status)
	}
}

func TestIncompleteSubmissionIsRejected(t *testing.T) {
	h := newHarness(t, 1920, 1080)
	sub := h.submission(t, "")
	if _, err := h.manager.Process(context.Background(), sub, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	testsupport.AssertMissing(t, sub.StagedPath)
}
