package app

import (
	"context"
	"log"
	"sync"
	"time"

	"consensus-poll-service/internal/domain"
)

// Generator proposes a fresh question/options pair from an external
// text-generation service. It is best-effort and untrusted.
type Generator interface {
	GenerateDailyPrompt(ctx context.Context) (domain.GeneratedPrompt, error)
}

// DailyRefresher decorates a PromptRepository with day-rollover regeneration
// of the active prompt. When the calendar day changes it asks the Generator
// for new content; any failure is swallowed and the current prompt kept.
type DailyRefresher struct {
	inner PromptRepository
	gen   Generator
	now   func() time.Time

	mu      sync.RWMutex
	current domain.Prompt
}

func NewDailyRefresher(inner PromptRepository, seed domain.Prompt, gen Generator, now func() time.Time) *DailyRefresher {
	if now == nil {
		now = time.Now
	}
	return &DailyRefresher{inner: inner, gen: gen, now: now, current: seed}
}

// GetPrompt serves the refreshed active prompt for its id and delegates
// everything else to the catalog.
func (r *DailyRefresher) GetPrompt(ctx context.Context, promptID string) (domain.Prompt, error) {
	r.mu.RLock()
	current := r.current
	r.mu.RUnlock()
	if promptID == current.ID {
		return current, nil
	}
	return r.inner.GetPrompt(ctx, promptID)
}

// Current returns the active prompt snapshot.
func (r *DailyRefresher) Current() domain.Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Refresh regenerates the active prompt's question and options if the day has
// rolled over since it was authored. Returns whether the prompt changed.
func (r *DailyRefresher) Refresh(ctx context.Context) bool {
	// Day boundaries are UTC so all replicas roll over together.
	today := r.now().UTC().Format("2006-01-02")

	r.mu.RLock()
	current := r.current
	r.mu.RUnlock()
	if current.Day == today || r.gen == nil {
		return false
	}

	generated, err := r.gen.GenerateDailyPrompt(ctx)
	if err != nil {
		log.Printf("daily prompt refresh failed, keeping current prompt: %v", err)
		return false
	}
	if generated.Question == "" || len(generated.Options) < 2 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.Day == today {
		// another caller refreshed first
		return false
	}
	r.current.Day = today
	r.current.Question = generated.Question
	r.current.Options = generated.Options
	r.current.Status = domain.PromptActive
	r.current.Results = nil
	r.current.TotalVotes = 0
	return true
}

// Run refreshes on an interval until ctx is canceled.
func (r *DailyRefresher) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}
