package app

import (
	"math"
	"sort"

	"consensus-poll-service/internal/domain"
)

// Points awarded by the ledger updates below.
const (
	ParticipationPoints = 2
	PredictionBonus     = 10
)

// NoWinner is the sentinel WinningOption returns for an empty tally.
const NoWinner = -1

// WinningOption returns the option index with the strictly greatest vote count.
// Indexes are scanned in ascending order and only a strictly greater count
// replaces the running maximum, so ties resolve to the lowest index.
func WinningOption(results domain.Tally) int {
	winner := NoWinner
	max := -1
	idxs := make([]int, 0, len(results))
	for idx := range results {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	for _, idx := range idxs {
		if results[idx] > max {
			max = results[idx]
			winner = idx
		}
	}
	return winner
}

// IsPredictionCorrect reports whether the submission predicted the winning
// option. Empty results make every prediction incorrect.
func IsPredictionCorrect(prompt domain.Prompt, sub domain.UserSubmission) bool {
	winner := WinningOption(prompt.Results)
	return winner != NoWinner && sub.PredictedTopOption == winner
}

// Percentage is the rounded (half-up) share of votes in total, 0 when total is 0.
func Percentage(votes, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(votes) / float64(total) * 100))
}

// ApplyParticipationReward credits a submission: one more prediction made plus
// the flat participation bonus. Streak and correctness counters are untouched;
// those move only at reveal time.
func ApplyParticipationReward(stats domain.UserStats) domain.UserStats {
	stats.PredictionsMade++
	stats.TotalScore += ParticipationPoints
	return stats
}

// ApplyRevealOutcome reconciles the ledger with a revealed result: a correct
// prediction extends the streak and earns the bonus, an incorrect one resets
// the streak.
func ApplyRevealOutcome(stats domain.UserStats, correct bool) domain.UserStats {
	if correct {
		stats.CorrectPredictions++
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.BestStreak {
			stats.BestStreak = stats.CurrentStreak
		}
		stats.TotalScore += PredictionBonus
	} else {
		stats.CurrentStreak = 0
	}
	return stats
}
