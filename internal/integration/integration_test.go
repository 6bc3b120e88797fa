package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"consensus-poll-service/internal/app"
	"consensus-poll-service/internal/domain"
	pgloader "consensus-poll-service/internal/infra/postgres"
	pgmigrations "consensus-poll-service/internal/infra/postgres/migrations"
	infraredis "consensus-poll-service/internal/infra/redis"
)

func TestSubmitAndRevealEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	for _, prompt := range seedPrompts() {
		seedPrompt(t, ctx, pgURL, prompt)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewPromptLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	promptRepo := infraredis.NewPromptRepository(redisClient, loader, 5*time.Minute)
	store := infraredis.NewStore(redisClient)
	service := app.NewGameService(store, promptRepo, app.WithLockDelay(0))

	// Vote and predict on the active prompt.
	stats, err := service.Submit(ctx, "p43", "u1", 0, 2)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if stats.TotalScore != 2 || stats.PredictionsMade != 1 {
		t.Fatalf("expected participation reward, got %+v", stats)
	}
	if _, err := service.Submit(ctx, "p43", "u1", 1, 1); err != domain.ErrAlreadySubmitted {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	// Reveal the closed prompt after seeding a matching prediction.
	if err := store.SaveSubmission(ctx, domain.UserSubmission{
		UserID: "u1", PromptID: "p42", VoteOption: 3, PredictedTopOption: 0, Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		t.Fatalf("seed submission: %v", err)
	}
	summary, err := service.Reveal(ctx, "p42", "u1")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if summary.WinningOption != 0 || summary.Verdict != domain.VerdictCorrect {
		t.Fatalf("expected correct verdict on winner 0, got %+v", summary)
	}
	if summary.Stats.CurrentStreak != 1 || summary.Stats.CorrectPredictions != 1 {
		t.Fatalf("ledger not reconciled: %+v", summary.Stats)
	}

	// The tally is reconstructible from the log.
	tally, err := service.RebuildTally(ctx, "p43")
	if err != nil {
		t.Fatalf("rebuild tally: %v", err)
	}
	if tally[0] != 1 {
		t.Fatalf("unexpected rebuilt tally: %v", tally)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "consensus", "POSTGRES_PASSWORD": "consensuspass", "POSTGRES_DB": "consensusdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://consensus:consensuspass@%s:%s/consensusdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedPrompt(t *testing.T, ctx context.Context, dsn string, prompt domain.Prompt) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(prompt)
	if err != nil {
		t.Fatalf("marshal prompt: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO prompts (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, prompt.ID, string(data)); err != nil {
		t.Fatalf("insert prompt: %v", err)
	}
}

func seedPrompts() []domain.Prompt {
	return []domain.Prompt{
		{
			ID:         "p42",
			Day:        "2024-05-20",
			Question:   "Which movie ending is most overrated?",
			Options:    []string{"Inception", "Titanic", "Joker", "Interstellar"},
			Status:     domain.PromptClosed,
			TotalVotes: 1240,
			Results:    domain.Tally{0: 450, 1: 120, 2: 380, 3: 290},
		},
		{
			ID:       "p43",
			Day:      "2024-05-21",
			Question: "What is the best type of pizza topping?",
			Options:  []string{"Pepperoni", "Pineapple", "Mushrooms", "Sausage", "Plain Cheese"},
			Status:   domain.PromptActive,
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
