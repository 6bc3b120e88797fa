package memory

import (
	"context"
	"errors"
	"testing"

	"consensus-poll-service/internal/domain"
)

func TestSubmissionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub := domain.UserSubmission{
		UserID:             "current_user",
		PromptID:           "p43",
		VoteOption:         0,
		PredictedTopOption: 2,
		Timestamp:          1716336000123,
	}
	if err := store.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("save: %v", err)
	}

	subs, err := store.Submissions(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(subs) != 1 || subs[0] != sub {
		t.Fatalf("round trip mismatch: %+v", subs)
	}

	tally, err := store.LiveVotes(ctx, "p43")
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if tally[0] != 1 {
		t.Fatalf("tally not incremented: %v", tally)
	}
}

func TestSaveSubmissionRejectsDuplicatePair(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	sub := domain.UserSubmission{UserID: "u1", PromptID: "p43", VoteOption: 1, Timestamp: 1}
	if err := store.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSubmission(ctx, sub); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	// Same user, other prompt is fine.
	other := domain.UserSubmission{UserID: "u1", PromptID: "p44", VoteOption: 1, Timestamp: 2}
	if err := store.SaveSubmission(ctx, other); err != nil {
		t.Fatalf("other prompt: %v", err)
	}

	subs, _ := store.Submissions(ctx)
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	tally, _ := store.LiveVotes(ctx, "p43")
	if tally[1] != 1 {
		t.Fatalf("duplicate must not double-count: %v", tally)
	}
}

func TestUserStatsDefaultIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.UserStats(ctx, "current_user")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	second, err := store.UserStats(ctx, "current_user")
	if err != nil {
		t.Fatalf("stats again: %v", err)
	}
	if first != second {
		t.Fatalf("defaults differ: %+v vs %+v", first, second)
	}
	if first.Username != "User_curr" || first.TotalScore != 0 {
		t.Fatalf("unexpected default ledger: %+v", first)
	}
	if store.HasStats("current_user") {
		t.Fatalf("reading stats must not write")
	}

	first.TotalScore = 12
	if err := store.UpdateUserStats(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	stored, _ := store.UserStats(ctx, "current_user")
	if stored.TotalScore != 12 {
		t.Fatalf("update lost: %+v", stored)
	}
}

func TestUGCQueueAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	queue, err := store.UGCQueue(ctx)
	if err != nil || len(queue) != 0 {
		t.Fatalf("expected empty queue, got %v %v", queue, err)
	}

	a := domain.UGCPrompt{ID: "ugc_1", Author: "u1", Question: "q1", Options: []string{"a", "b", "c", "d"}, Status: domain.UGCPending}
	b := domain.UGCPrompt{ID: "ugc_2", Author: "u2", Question: "q2", Options: []string{"a", "b", "c", "d"}, Status: domain.UGCPending}
	_ = store.SubmitUGC(ctx, a)
	_ = store.SubmitUGC(ctx, b)

	queue, _ = store.UGCQueue(ctx)
	if len(queue) != 2 || queue[0].ID != "ugc_1" || queue[1].ID != "ugc_2" {
		t.Fatalf("queue order wrong: %+v", queue)
	}
}

func TestMarkRevealedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.MarkRevealed(ctx, "u1", "p42")
	if err != nil || !first {
		t.Fatalf("expected first mark, got %v %v", first, err)
	}
	second, err := store.MarkRevealed(ctx, "u1", "p42")
	if err != nil || second {
		t.Fatalf("expected repeat mark false, got %v %v", second, err)
	}
	other, err := store.MarkRevealed(ctx, "u1", "p43")
	if err != nil || !other {
		t.Fatalf("other prompt must be independent, got %v %v", other, err)
	}
}

func TestOnboardingFlag(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	seen, err := store.OnboardingSeen(ctx)
	if err != nil || seen {
		t.Fatalf("expected unseen, got %v %v", seen, err)
	}
	if err := store.MarkOnboardingSeen(ctx); err != nil {
		t.Fatalf("mark: %v", err)
	}
	seen, _ = store.OnboardingSeen(ctx)
	if !seen {
		t.Fatalf("flag not set")
	}
}
