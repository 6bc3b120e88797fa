package app

import (
	"testing"

	"consensus-poll-service/internal/domain"
)

func TestWinningOption(t *testing.T) {
	cases := []struct {
		name    string
		results domain.Tally
		want    int
	}{
		{"clear winner at lowest index", domain.Tally{0: 450, 1: 120, 2: 380, 3: 290}, 0},
		{"winner at higher index", domain.Tally{0: 200, 1: 50, 2: 500, 3: 250}, 2},
		{"tie resolves to lowest index", domain.Tally{0: 100, 1: 100}, 0},
		{"three-way tie", domain.Tally{0: 5, 1: 5, 2: 5}, 0},
		{"empty results", domain.Tally{}, NoWinner},
		{"nil results", nil, NoWinner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WinningOption(tc.results); got != tc.want {
				t.Fatalf("WinningOption(%v) = %d, want %d", tc.results, got, tc.want)
			}
		})
	}
}

func TestIsPredictionCorrect(t *testing.T) {
	prompt := domain.Prompt{
		ID:      "p42",
		Options: []string{"a", "b", "c", "d"},
		Status:  domain.PromptClosed,
		Results: domain.Tally{0: 450, 1: 120, 2: 380, 3: 290},
	}
	if !IsPredictionCorrect(prompt, domain.UserSubmission{PredictedTopOption: 0}) {
		t.Fatalf("expected prediction 0 to be correct")
	}
	if IsPredictionCorrect(prompt, domain.UserSubmission{PredictedTopOption: 2}) {
		t.Fatalf("expected prediction 2 to be incorrect")
	}

	empty := domain.Prompt{ID: "p0", Options: []string{"a", "b"}}
	if IsPredictionCorrect(empty, domain.UserSubmission{PredictedTopOption: 0}) {
		t.Fatalf("prediction against empty results must be incorrect")
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(120, 1240); got != 10 {
		t.Fatalf("Percentage(120, 1240) = %d, want 10", got)
	}
	if got := Percentage(450, 1240); got != 36 {
		t.Fatalf("Percentage(450, 1240) = %d, want 36", got)
	}
	// half rounds up
	if got := Percentage(1, 8); got != 13 {
		t.Fatalf("Percentage(1, 8) = %d, want 13", got)
	}
	if got := Percentage(7, 0); got != 0 {
		t.Fatalf("Percentage with zero total = %d, want 0", got)
	}
}

func TestApplyParticipationReward(t *testing.T) {
	stats := domain.NewUserStats("current_user")
	stats = ApplyParticipationReward(stats)
	if stats.TotalScore != 2 || stats.PredictionsMade != 1 {
		t.Fatalf("unexpected stats after reward: %+v", stats)
	}
	if stats.CurrentStreak != 0 || stats.CorrectPredictions != 0 {
		t.Fatalf("participation must not touch streak or correctness: %+v", stats)
	}
}

func TestApplyRevealOutcome(t *testing.T) {
	stats := domain.UserStats{UserID: "u1", CurrentStreak: 2, BestStreak: 2, CorrectPredictions: 2, TotalScore: 10}

	correct := ApplyRevealOutcome(stats, true)
	if correct.CurrentStreak != 3 || correct.BestStreak != 3 {
		t.Fatalf("streak not extended: %+v", correct)
	}
	if correct.CorrectPredictions != 3 || correct.TotalScore != 10+PredictionBonus {
		t.Fatalf("correct count or bonus wrong: %+v", correct)
	}

	wrong := ApplyRevealOutcome(stats, false)
	if wrong.CurrentStreak != 0 {
		t.Fatalf("streak not reset: %+v", wrong)
	}
	if wrong.BestStreak != 2 || wrong.CorrectPredictions != 2 || wrong.TotalScore != 10 {
		t.Fatalf("incorrect outcome must only reset the streak: %+v", wrong)
	}
}
