package api

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"guessrank/internal/ranks"
	"guessrank/internal/stage"
	"guessrank/internal/store"
	"guessrank/internal/workflow"
)

func TestFromVotingClipTally(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clip := store.VotingClip{
		ID:          "clip-1",
		CorrectRank: ranks.Atom,
		CreatedAt:   created,
		EndTime:     created.Add(24 * time.Hour),
		Ballots: map[string]store.Ballot{
			"a": {Rank: ranks.Atom},
			"b": {Rank: ranks.Quark},
		},
	}
	clip.Recount()

	dto := FromVotingClip(clip, map[string]string{"Atom": "⚛️"})
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("createdAt = %q", dto.CreatedAt)
	}
	if dto.ExpiredAt != "" {
		t.Fatalf("zero expiredAt should be omitted, got %q", dto.ExpiredAt)
	}
	if dto.TotalVotes != 2 || dto.CorrectVoters != 1 {
		t.Fatalf("unexpected totals: %+v", dto)
	}
	var atom TallyRow
	for _, row := range dto.Tally {
		if row.Rank == "Atom" {
			atom = row
		}
	}
	want := TallyRow{Rank: "Atom", Label: "⚛️ Atom", Count: 1, Percent: 50, Correct: true}
	if diff := cmp.Diff(want, atom); diff != "" {
		t.Fatalf("atom row mismatch (-want +got):\n%s", diff)
	}
}

func TestFromStatusSummarySortsHealth(t *testing.T) {
	summary := workflow.StatusSummary{
		Processed:  3,
		QueueLimit: 2,
		Health: []stage.Health{
			stage.Unhealthy("upload", "host unreachable"),
			stage.Healthy("gateway"),
		},
	}
	got := FromStatusSummary(summary, true)
	want := WorkflowStatus{
		Running:    true,
		Processed:  3,
		QueueLimit: 2,
		StageHealth: []StageHealth{
			{Name: "gateway", Ready: true},
			{Name: "upload", Ready: false, Detail: "host unreachable"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
}
