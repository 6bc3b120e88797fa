package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"consensus-poll-service/internal/domain"
)

// PromptLoader fetches prompt content from a backing store (e.g., Postgres).
type PromptLoader interface {
	LoadPrompt(ctx context.Context, promptID string) (domain.Prompt, error)
}

// PromptRepository caches prompts with TTL to avoid repeated DB hits. Loaded
// prompts are validated before they enter the cache.
type PromptRepository struct {
	loader PromptLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPrompt
}

type cachedPrompt struct {
	prompt    domain.Prompt
	expiresAt time.Time
}

func NewPromptRepository(loader PromptLoader, ttl time.Duration) *PromptRepository {
	return &PromptRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPrompt),
	}
}

func (r *PromptRepository) GetPrompt(ctx context.Context, promptID string) (domain.Prompt, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[promptID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.prompt, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(promptID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[promptID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.prompt, nil
		}
		r.mu.RUnlock()

		prompt, err := r.loader.LoadPrompt(ctx, promptID)
		if err != nil {
			return domain.Prompt{}, err
		}
		if err := prompt.Validate(); err != nil {
			return domain.Prompt{}, err
		}

		r.mu.Lock()
		r.cache[promptID] = cachedPrompt{
			prompt:    prompt,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return prompt, nil
	})
	if err != nil {
		return domain.Prompt{}, err
	}
	return result.(domain.Prompt), nil
}

// StaticPromptLoader is a loader backed by an in-memory catalog (seed data,
// tests, demos).
type StaticPromptLoader struct {
	prompts map[string]domain.Prompt
}

func NewStaticPromptLoader(prompts map[string]domain.Prompt) *StaticPromptLoader {
	return &StaticPromptLoader{prompts: prompts}
}

func (l *StaticPromptLoader) LoadPrompt(_ context.Context, promptID string) (domain.Prompt, error) {
	if prompt, ok := l.prompts[promptID]; ok {
		return prompt, nil
	}
	return domain.Prompt{}, domain.ErrPromptNotFound
}

func (r *PromptRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
