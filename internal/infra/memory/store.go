package memory

import (
	"context"
	"sync"

	"consensus-poll-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used in tests and when no
// Redis is configured. The submitted index gives the check-and-insert guard a
// multi-writer deployment needs.
type Store struct {
	mu          sync.RWMutex
	submissions []domain.UserSubmission
	submitted   map[string]struct{}
	tallies     map[string]domain.Tally
	stats       map[string]domain.UserStats
	ugc         []domain.UGCPrompt
	revealed    map[string]struct{}
	onboarded   bool
}

func NewStore() *Store {
	return &Store{
		submitted: make(map[string]struct{}),
		tallies:   make(map[string]domain.Tally),
		stats:     make(map[string]domain.UserStats),
		revealed:  make(map[string]struct{}),
	}
}

func (s *Store) Submissions(_ context.Context) ([]domain.UserSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserSubmission, len(s.submissions))
	copy(out, s.submissions)
	return out, nil
}

func (s *Store) SaveSubmission(_ context.Context, sub domain.UserSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(sub.UserID, sub.PromptID)
	if _, dup := s.submitted[key]; dup {
		return domain.ErrAlreadySubmitted
	}
	s.submitted[key] = struct{}{}
	s.submissions = append(s.submissions, sub)

	tally, ok := s.tallies[sub.PromptID]
	if !ok {
		tally = domain.Tally{}
		s.tallies[sub.PromptID] = tally
	}
	tally[sub.VoteOption]++
	return nil
}

func (s *Store) LiveVotes(_ context.Context, promptID string) (domain.Tally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := domain.Tally{}
	for idx, count := range s.tallies[promptID] {
		out[idx] = count
	}
	return out, nil
}

func (s *Store) SaveLiveVotes(_ context.Context, promptID string, tally domain.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := domain.Tally{}
	for idx, count := range tally {
		copied[idx] = count
	}
	s.tallies[promptID] = copied
	return nil
}

func (s *Store) UserStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if stats, ok := s.stats[userID]; ok {
		return stats, nil
	}
	return domain.NewUserStats(userID), nil
}

func (s *Store) UpdateUserStats(_ context.Context, stats domain.UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.UserID] = stats
	return nil
}

func (s *Store) UGCQueue(_ context.Context) ([]domain.UGCPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UGCPrompt, len(s.ugc))
	copy(out, s.ugc)
	return out, nil
}

func (s *Store) SubmitUGC(_ context.Context, prompt domain.UGCPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ugc = append(s.ugc, prompt)
	return nil
}

func (s *Store) MarkRevealed(_ context.Context, userID, promptID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(userID, promptID)
	if _, seen := s.revealed[key]; seen {
		return false, nil
	}
	s.revealed[key] = struct{}{}
	return true, nil
}

func (s *Store) OnboardingSeen(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onboarded, nil
}

func (s *Store) MarkOnboardingSeen(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded = true
	return nil
}

// HasStats is test-only: it reports whether a ledger was ever written for the
// user, distinguishing a stored zero ledger from the derived default.
func (s *Store) HasStats(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stats[userID]
	return ok
}

func pairKey(userID, promptID string) string {
	return userID + "\x00" + promptID
}
