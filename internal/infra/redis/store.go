package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"consensus-poll-service/internal/domain"
)

// Key layout, compatible with previously stored data:
//
//	consensus_submissions              list of UserSubmission JSON, append-only
//	consensus_user_stats_<userId>      UserStats JSON
//	consensus_ugc_queue                list of UGCPrompt JSON, append-only
//	consensus_live_votes_<promptId>    hash optionIndex -> count
//	consensus_onboarding_seen          "1" once onboarding was shown
//
// Guard keys added on top of the legacy layout:
//
//	consensus_submitted_<promptId>_<userId>  SETNX duplicate-submission guard
//	consensus_revealed_<userId>              set of prompt ids already reconciled
const (
	submissionsKey    = "consensus_submissions"
	ugcQueueKey       = "consensus_ugc_queue"
	onboardingKey     = "consensus_onboarding_seen"
	statsKeyPrefix    = "consensus_user_stats_"
	votesKeyPrefix    = "consensus_live_votes_"
	guardKeyPrefix    = "consensus_submitted_"
	revealedKeyPrefix = "consensus_revealed_"
)

// Store is the Redis-backed persistence gateway.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Submissions(ctx context.Context) ([]domain.UserSubmission, error) {
	raw, err := s.client.LRange(ctx, submissionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}
	subs := make([]domain.UserSubmission, 0, len(raw))
	for _, item := range raw {
		var sub domain.UserSubmission
		if err := json.Unmarshal([]byte(item), &sub); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *Store) SaveSubmission(ctx context.Context, sub domain.UserSubmission) error {
	guard := guardKeyPrefix + sub.PromptID + "_" + sub.UserID
	ok, err := s.client.SetNX(ctx, guard, "1", 0).Result()
	if err != nil {
		return fmt.Errorf("submission guard: %w", err)
	}
	if !ok {
		return domain.ErrAlreadySubmitted
	}

	data, err := json.Marshal(sub)
	if err != nil {
		s.releaseGuard(ctx, guard)
		return fmt.Errorf("encode submission: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, submissionsKey, data)
	pipe.HIncrBy(ctx, votesKeyPrefix+sub.PromptID, strconv.Itoa(sub.VoteOption), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		// Nothing was stored, so the pair must stay retryable. Leaving the
		// guard set would turn a failed persist into a permanent
		// "already submitted".
		s.releaseGuard(ctx, guard)
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Store) releaseGuard(ctx context.Context, guard string) {
	if err := s.client.Del(ctx, guard).Err(); err != nil {
		log.Printf("release submission guard %s: %v", guard, err)
	}
}

func (s *Store) LiveVotes(ctx context.Context, promptID string) (domain.Tally, error) {
	fields, err := s.client.HGetAll(ctx, votesKeyPrefix+promptID).Result()
	if err != nil {
		return nil, fmt.Errorf("read live votes: %w", err)
	}
	tally := domain.Tally{}
	for field, value := range fields {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("decode tally field %q: %w", field, err)
		}
		count, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("decode tally count %q: %w", value, err)
		}
		tally[idx] = count
	}
	return tally, nil
}

func (s *Store) SaveLiveVotes(ctx context.Context, promptID string, tally domain.Tally) error {
	key := votesKeyPrefix + promptID
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(tally) > 0 {
		fields := make(map[string]interface{}, len(tally))
		for idx, count := range tally {
			fields[strconv.Itoa(idx)] = count
		}
		pipe.HSet(ctx, key, fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save live votes: %w", err)
	}
	return nil
}

func (s *Store) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	raw, err := s.client.Get(ctx, statsKeyPrefix+userID).Result()
	if err == redis.Nil {
		return domain.NewUserStats(userID), nil
	}
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("read user stats: %w", err)
	}
	var stats domain.UserStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return domain.UserStats{}, fmt.Errorf("decode user stats: %w", err)
	}
	return stats, nil
}

func (s *Store) UpdateUserStats(ctx context.Context, stats domain.UserStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode user stats: %w", err)
	}
	if err := s.client.Set(ctx, statsKeyPrefix+stats.UserID, data, 0).Err(); err != nil {
		return fmt.Errorf("save user stats: %w", err)
	}
	return nil
}

func (s *Store) UGCQueue(ctx context.Context) ([]domain.UGCPrompt, error) {
	raw, err := s.client.LRange(ctx, ugcQueueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ugc queue: %w", err)
	}
	queue := make([]domain.UGCPrompt, 0, len(raw))
	for _, item := range raw {
		var prompt domain.UGCPrompt
		if err := json.Unmarshal([]byte(item), &prompt); err != nil {
			return nil, fmt.Errorf("decode ugc prompt: %w", err)
		}
		queue = append(queue, prompt)
	}
	return queue, nil
}

func (s *Store) SubmitUGC(ctx context.Context, prompt domain.UGCPrompt) error {
	data, err := json.Marshal(prompt)
	if err != nil {
		return fmt.Errorf("encode ugc prompt: %w", err)
	}
	if err := s.client.RPush(ctx, ugcQueueKey, data).Err(); err != nil {
		return fmt.Errorf("queue ugc prompt: %w", err)
	}
	return nil
}

func (s *Store) MarkRevealed(ctx context.Context, userID, promptID string) (bool, error) {
	added, err := s.client.SAdd(ctx, revealedKeyPrefix+userID, promptID).Result()
	if err != nil {
		return false, fmt.Errorf("mark revealed: %w", err)
	}
	return added == 1, nil
}

func (s *Store) OnboardingSeen(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, onboardingKey).Result()
	if err != nil {
		return false, fmt.Errorf("read onboarding flag: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MarkOnboardingSeen(ctx context.Context) error {
	if err := s.client.SetNX(ctx, onboardingKey, "1", 0).Err(); err != nil {
		return fmt.Errorf("set onboarding flag: %w", err)
	}
	return nil
}
