package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"consensus-poll-service/internal/domain"
)

// Store is the persistence gateway: durable key-value storage of submissions,
// per-user ledgers, live tallies, and the community proposal queue. Write
// failures surface as errors; absent data yields zero values, not errors.
type Store interface {
	Submissions(ctx context.Context) ([]domain.UserSubmission, error)
	// SaveSubmission appends the submission and bumps the live tally for its
	// vote. A duplicate (user, prompt) pair is rejected with
	// domain.ErrAlreadySubmitted before anything is written.
	SaveSubmission(ctx context.Context, sub domain.UserSubmission) error
	LiveVotes(ctx context.Context, promptID string) (domain.Tally, error)
	SaveLiveVotes(ctx context.Context, promptID string, tally domain.Tally) error
	// UserStats returns the stored ledger or a fresh zero-valued one. It never
	// writes.
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
	UpdateUserStats(ctx context.Context, stats domain.UserStats) error
	UGCQueue(ctx context.Context) ([]domain.UGCPrompt, error)
	SubmitUGC(ctx context.Context, prompt domain.UGCPrompt) error
	// MarkRevealed records that userID saw promptID's results; it reports true
	// only the first time, which gates the exactly-once ledger reconciliation.
	MarkRevealed(ctx context.Context, userID, promptID string) (bool, error)
	OnboardingSeen(ctx context.Context) (bool, error)
	MarkOnboardingSeen(ctx context.Context) error
}

// PromptRepository loads prompt content (from cache/backing store).
type PromptRepository interface {
	GetPrompt(ctx context.Context, promptID string) (domain.Prompt, error)
}

// GameService contains the daily-poll use cases: view, submit, reveal, and the
// community proposal queue.
type GameService struct {
	store     Store
	prompts   PromptRepository
	lockDelay time.Duration
	now       func() time.Time

	shutdown  chan struct{}
	closeOnce sync.Once
}

// Option configures a GameService.
type Option func(*GameService)

// WithLockDelay sets the artificial delay Submit waits before locking in a
// submission. Tests pass 0.
func WithLockDelay(d time.Duration) Option {
	return func(s *GameService) { s.lockDelay = d }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

func NewGameService(store Store, prompts PromptRepository, opts ...Option) *GameService {
	s := &GameService{
		store:     store,
		prompts:   prompts,
		lockDelay: 1500 * time.Millisecond,
		now:       time.Now,
		shutdown:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases any submissions waiting out their lock delay.
func (s *GameService) Close() {
	s.closeOnce.Do(func() { close(s.shutdown) })
}

// PromptView is the state the voting screen renders for one (user, prompt).
type PromptView struct {
	Prompt     domain.Prompt          `json:"prompt"`
	Tally      domain.Tally           `json:"tally"`
	Locked     bool                   `json:"locked"`
	Submission *domain.UserSubmission `json:"submission,omitempty"`
}

// View loads the prompt, its running tally, and the user's existing submission
// if one exists; a found submission puts the view in the locked state.
func (s *GameService) View(ctx context.Context, promptID, userID string) (PromptView, error) {
	prompt, err := s.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return PromptView{}, err
	}
	tally, err := s.store.LiveVotes(ctx, promptID)
	if err != nil {
		return PromptView{}, err
	}
	view := PromptView{Prompt: prompt, Tally: tally}
	sub, ok, err := s.submissionFor(ctx, userID, promptID)
	if err != nil {
		return PromptView{}, err
	}
	if ok {
		view.Locked = true
		view.Submission = &sub
	}
	return view, nil
}

// Submit records the user's vote and prediction for an active prompt, applies
// the participation reward, and returns the updated ledger. The lock delay is
// waited out before anything is written; it is interruptible only by Close,
// never by the caller.
func (s *GameService) Submit(ctx context.Context, promptID, userID string, vote, prediction int) (domain.UserStats, error) {
	prompt, err := s.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return domain.UserStats{}, err
	}
	if prompt.Closed() {
		return domain.UserStats{}, domain.ErrVotingClosed
	}
	if !prompt.ValidOption(vote) || !prompt.ValidOption(prediction) {
		return domain.UserStats{}, domain.ErrInvalidOption
	}
	// Cheap pre-check; the store re-checks atomically on write.
	if _, ok, err := s.submissionFor(ctx, userID, promptID); err != nil {
		return domain.UserStats{}, err
	} else if ok {
		return domain.UserStats{}, domain.ErrAlreadySubmitted
	}

	if err := s.waitLockDelay(); err != nil {
		return domain.UserStats{}, err
	}

	sub := domain.UserSubmission{
		UserID:             userID,
		PromptID:           promptID,
		VoteOption:         vote,
		PredictedTopOption: prediction,
		Timestamp:          s.now().UnixMilli(),
	}
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return domain.UserStats{}, err
	}

	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	stats = ApplyParticipationReward(stats)
	if err := s.store.UpdateUserStats(ctx, stats); err != nil {
		return domain.UserStats{}, err
	}
	return stats, nil
}

// Reveal scores the user's stored prediction against a closed prompt's results
// and returns per-option percentages plus the verdict. The first reveal of a
// scored submission also reconciles the ledger (streaks, correct count, bonus).
func (s *GameService) Reveal(ctx context.Context, promptID, userID string) (domain.RevealSummary, error) {
	prompt, err := s.prompts.GetPrompt(ctx, promptID)
	if err != nil {
		return domain.RevealSummary{}, err
	}
	if !prompt.Closed() {
		return domain.RevealSummary{}, domain.ErrResultsSealed
	}

	sub, hasSub, err := s.submissionFor(ctx, userID, promptID)
	if err != nil {
		return domain.RevealSummary{}, err
	}

	winner := WinningOption(prompt.Results)
	verdict := domain.VerdictNotApplicable
	correct := false
	if hasSub {
		correct = IsPredictionCorrect(prompt, sub)
		if correct {
			verdict = domain.VerdictCorrect
		} else {
			verdict = domain.VerdictIncorrect
		}
	}

	stats, err := s.store.UserStats(ctx, userID)
	if err != nil {
		return domain.RevealSummary{}, err
	}
	if hasSub && winner != NoWinner {
		// The marker is written before the ledger update. If the ledger write
		// then fails, this reveal's points are lost rather than ever applied
		// twice: score and streak only grow, so a double apply could not be
		// repaired later.
		first, err := s.store.MarkRevealed(ctx, userID, promptID)
		if err != nil {
			return domain.RevealSummary{}, err
		}
		if first {
			stats = ApplyRevealOutcome(stats, correct)
			if err := s.store.UpdateUserStats(ctx, stats); err != nil {
				return domain.RevealSummary{}, err
			}
		}
	}

	options := make([]domain.OptionResult, len(prompt.Options))
	for idx, label := range prompt.Options {
		votes := prompt.Results[idx]
		options[idx] = domain.OptionResult{
			Index:   idx,
			Label:   label,
			Votes:   votes,
			Percent: Percentage(votes, prompt.TotalVotes),
		}
	}

	summary := domain.RevealSummary{
		PromptID:      prompt.ID,
		Question:      prompt.Question,
		WinningOption: winner,
		Verdict:       verdict,
		TotalVotes:    prompt.TotalVotes,
		Options:       options,
		Stats:         stats,
	}
	if hasSub {
		summary.Submission = &sub
	}
	return summary, nil
}

// SubmitProposal queues a community prompt proposal for moderation. The form
// requires a question and exactly four distinct non-empty options.
func (s *GameService) SubmitProposal(ctx context.Context, author, question string, options []string) (domain.UGCPrompt, error) {
	question = strings.TrimSpace(question)
	if question == "" || len(options) != 4 {
		return domain.UGCPrompt{}, domain.ErrInvalidProposal
	}
	seen := make(map[string]struct{}, len(options))
	trimmed := make([]string, len(options))
	for i, opt := range options {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			return domain.UGCPrompt{}, domain.ErrInvalidProposal
		}
		if _, dup := seen[opt]; dup {
			return domain.UGCPrompt{}, domain.ErrInvalidProposal
		}
		seen[opt] = struct{}{}
		trimmed[i] = opt
	}

	proposal := domain.UGCPrompt{
		ID:       "ugc_" + uuid.NewString(),
		Author:   author,
		Question: question,
		Options:  trimmed,
		Status:   domain.UGCPending,
	}
	if err := s.store.SubmitUGC(ctx, proposal); err != nil {
		return domain.UGCPrompt{}, err
	}
	return proposal, nil
}

// Stats returns the user's ledger for display.
func (s *GameService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	return s.store.UserStats(ctx, userID)
}

// FirstVisit reports whether this is the first time anyone connected, and
// flips the write-once onboarding flag when it is.
func (s *GameService) FirstVisit(ctx context.Context) (bool, error) {
	seen, err := s.store.OnboardingSeen(ctx)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	if err := s.store.MarkOnboardingSeen(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RebuildTally recomputes a prompt's live tally from the submission log and
// overwrites the stored tally. The log is the source of truth; an interrupted
// write can leave the incremental tally under-counted, and this repairs it.
func (s *GameService) RebuildTally(ctx context.Context, promptID string) (domain.Tally, error) {
	subs, err := s.store.Submissions(ctx)
	if err != nil {
		return nil, err
	}
	tally := domain.Tally{}
	for _, sub := range subs {
		if sub.PromptID == promptID {
			tally[sub.VoteOption]++
		}
	}
	if err := s.store.SaveLiveVotes(ctx, promptID, tally); err != nil {
		return nil, err
	}
	return tally, nil
}

func (s *GameService) submissionFor(ctx context.Context, userID, promptID string) (domain.UserSubmission, bool, error) {
	subs, err := s.store.Submissions(ctx)
	if err != nil {
		return domain.UserSubmission{}, false, err
	}
	for _, sub := range subs {
		if sub.UserID == userID && sub.PromptID == promptID {
			return sub, true, nil
		}
	}
	return domain.UserSubmission{}, false, nil
}

func (s *GameService) waitLockDelay() error {
	if s.lockDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.lockDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.shutdown:
		return domain.ErrShuttingDown
	}
}
