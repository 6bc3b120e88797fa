package domain

import "fmt"

// PromptStatus discriminates the two lifecycle phases of a daily prompt.
type PromptStatus string

const (
	// PromptActive means voting is open and no results exist yet.
	PromptActive PromptStatus = "active"
	// PromptClosed means results are finalized and immutable.
	PromptClosed PromptStatus = "closed"
)

// Tally maps an option index to a vote count. It serializes with string keys
// ("0", "1", ...) for compatibility with previously stored data.
type Tally map[int]int

// Prompt is a daily multiple-choice question. Results and TotalVotes are only
// present once the prompt is closed.
type Prompt struct {
	ID         string       `json:"id"`
	Day        string       `json:"day"` // YYYY-MM-DD
	Question   string       `json:"question"`
	Options    []string     `json:"options"`
	Status     PromptStatus `json:"status"`
	TotalVotes int          `json:"totalVotes,omitempty"`
	Results    Tally        `json:"results,omitempty"`
}

// Closed reports whether the prompt's results are finalized.
func (p Prompt) Closed() bool {
	return p.Status == PromptClosed
}

// ValidOption reports whether idx addresses one of the prompt's options.
func (p Prompt) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(p.Options)
}

// Validate checks the active/closed variant rules at the persistence boundary:
// an active prompt carries no results, a closed one carries both results and a
// total, and results never reference an option that does not exist.
func (p Prompt) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("prompt missing id")
	}
	if len(p.Options) < 2 {
		return fmt.Errorf("prompt %s needs at least 2 options, got %d", p.ID, len(p.Options))
	}
	switch p.Status {
	case PromptActive:
		if p.Results != nil || p.TotalVotes != 0 {
			return fmt.Errorf("active prompt %s must not carry results", p.ID)
		}
	case PromptClosed:
		if len(p.Results) == 0 || p.TotalVotes == 0 {
			return fmt.Errorf("closed prompt %s must carry results and totalVotes", p.ID)
		}
		for idx := range p.Results {
			if !p.ValidOption(idx) {
				return fmt.Errorf("closed prompt %s has result for unknown option %d", p.ID, idx)
			}
		}
	default:
		return fmt.Errorf("prompt %s has unknown status %q", p.ID, p.Status)
	}
	return nil
}

// UserSubmission is one user's vote plus prediction for one prompt. At most one
// exists per (UserID, PromptID) pair and it is never edited after creation.
type UserSubmission struct {
	UserID             string `json:"userId"`
	PromptID           string `json:"promptId"`
	VoteOption         int    `json:"voteOption"`
	PredictedTopOption int    `json:"predictedTopOption"`
	Timestamp          int64  `json:"timestamp"` // epoch milliseconds
}

// UserStats is the per-user running ledger.
type UserStats struct {
	UserID             string `json:"userId"`
	Username           string `json:"username"`
	TotalScore         int    `json:"totalScore"`
	CurrentStreak      int    `json:"currentStreak"`
	BestStreak         int    `json:"bestStreak"`
	PredictionsMade    int    `json:"predictionsMade"`
	CorrectPredictions int    `json:"correctPredictions"`
}

// NewUserStats returns the zero-valued ledger a user starts with, including the
// derived default username.
func NewUserStats(userID string) UserStats {
	name := userID
	if len(name) > 4 {
		name = name[:4]
	}
	return UserStats{
		UserID:   userID,
		Username: "User_" + name,
	}
}

// UGCStatus tracks a community proposal through moderation.
type UGCStatus string

const (
	UGCPending  UGCStatus = "pending"
	UGCApproved UGCStatus = "approved"
	UGCRejected UGCStatus = "rejected"
)

// UGCPrompt is a community-submitted prompt proposal awaiting moderation.
type UGCPrompt struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Question string    `json:"question"`
	Options  []string  `json:"options"`
	Status   UGCStatus `json:"status"`
}

// Verdict is the outcome of scoring a prediction against revealed results.
type Verdict string

const (
	// VerdictNotApplicable means the user never submitted for the prompt.
	VerdictNotApplicable Verdict = "notApplicable"
	VerdictCorrect       Verdict = "correct"
	VerdictIncorrect     Verdict = "incorrect"
)

// OptionResult is one option's share of a closed prompt's results.
type OptionResult struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Votes   int    `json:"votes"`
	Percent int    `json:"percent"`
}

// RevealSummary is everything the reveal screen needs for one (user, prompt).
type RevealSummary struct {
	PromptID      string          `json:"promptId"`
	Question      string          `json:"question"`
	WinningOption int             `json:"winningOption"` // -1 when results are empty
	Verdict       Verdict         `json:"verdict"`
	TotalVotes    int             `json:"totalVotes"`
	Options       []OptionResult  `json:"options"`
	Submission    *UserSubmission `json:"submission,omitempty"`
	Stats         UserStats       `json:"stats"`
}

// GeneratedPrompt is the structured payload requested from the text-generation
// collaborator: a question and exactly four distinct options.
type GeneratedPrompt struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}
