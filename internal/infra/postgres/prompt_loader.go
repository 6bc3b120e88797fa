package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"consensus-poll-service/internal/domain"
)

// PromptLoader loads prompt JSONB from Postgres.
type PromptLoader struct {
	pool *pgxpool.Pool
}

func NewPromptLoader(pool *pgxpool.Pool) *PromptLoader {
	return &PromptLoader{pool: pool}
}

func (l *PromptLoader) LoadPrompt(ctx context.Context, promptID string) (domain.Prompt, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM prompts WHERE id=$1`, promptID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Prompt{}, domain.ErrPromptNotFound
	}
	if err != nil {
		return domain.Prompt{}, fmt.Errorf("load prompt: %w", err)
	}
	var prompt domain.Prompt
	if err := json.Unmarshal(raw, &prompt); err != nil {
		return domain.Prompt{}, fmt.Errorf("unmarshal prompt: %w", err)
	}
	return prompt, nil
}
