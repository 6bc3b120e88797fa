package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"consensus-poll-service/internal/domain"
	"consensus-poll-service/internal/infra/memory"
)

// PromptRepository caches prompt JSON in Redis and falls back to a loader on
// cache miss. Prompts are stored as: SET prompt:{promptID} {json} with TTL.
type PromptRepository struct {
	client *redis.Client
	loader memory.PromptLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewPromptRepository(client *redis.Client, loader memory.PromptLoader, ttl time.Duration) *PromptRepository {
	return &PromptRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PromptRepository) GetPrompt(ctx context.Context, promptID string) (domain.Prompt, error) {
	key := r.key(promptID)

	if prompt, ok := r.cached(ctx, key); ok {
		return prompt, nil
	}

	result, err, _ := r.sf.Do(promptID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if prompt, ok := r.cached(ctx, key); ok {
			return prompt, nil
		}

		prompt, err := r.loader.LoadPrompt(ctx, promptID)
		if err != nil {
			return domain.Prompt{}, err
		}
		if err := prompt.Validate(); err != nil {
			return domain.Prompt{}, err
		}

		if data, err := json.Marshal(prompt); err == nil {
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return prompt, nil
	})
	if err != nil {
		return domain.Prompt{}, err
	}
	return result.(domain.Prompt), nil
}

func (r *PromptRepository) cached(ctx context.Context, key string) (domain.Prompt, bool) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return domain.Prompt{}, false
	}
	var prompt domain.Prompt
	if err := json.Unmarshal([]byte(raw), &prompt); err != nil {
		return domain.Prompt{}, false
	}
	return prompt, true
}

func (r *PromptRepository) key(promptID string) string {
	return "prompt:" + promptID
}

func (r *PromptRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
