package memory

import (
	"context"
	"testing"
	"time"

	"consensus-poll-service/internal/domain"
)

func TestPromptRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		PromptLoader: NewStaticPromptLoader(map[string]domain.Prompt{
			"p42": samplePrompt(),
		}),
	}
	repo := NewPromptRepository(loader, time.Minute)

	if _, err := repo.GetPrompt(context.Background(), "p42"); err != nil {
		t.Fatalf("get prompt: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetPrompt(context.Background(), "p42"); err != nil {
		t.Fatalf("get prompt 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPromptRepositoryRejectsInvalidPrompt(t *testing.T) {
	// Active prompt carrying results violates the variant rules.
	invalid := samplePrompt()
	invalid.Status = domain.PromptActive
	repo := NewPromptRepository(NewStaticPromptLoader(map[string]domain.Prompt{
		"p42": invalid,
	}), time.Minute)

	if _, err := repo.GetPrompt(context.Background(), "p42"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestPromptRepositoryNotFound(t *testing.T) {
	repo := NewPromptRepository(NewStaticPromptLoader(nil), time.Minute)
	if _, err := repo.GetPrompt(context.Background(), "nope"); err != domain.ErrPromptNotFound {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}
}

type countingLoader struct {
	PromptLoader
	calls int
}

func (l *countingLoader) LoadPrompt(ctx context.Context, promptID string) (domain.Prompt, error) {
	l.calls++
	return l.PromptLoader.LoadPrompt(ctx, promptID)
}

func samplePrompt() domain.Prompt {
	return domain.Prompt{
		ID:         "p42",
		Day:        "2024-05-20",
		Question:   "Which movie ending is most overrated?",
		Options:    []string{"Inception", "Titanic", "Joker", "Interstellar"},
		Status:     domain.PromptClosed,
		TotalVotes: 1240,
		Results:    domain.Tally{0: 450, 1: 120, 2: 380, 3: 290},
	}
}
