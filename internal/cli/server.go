package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"consensus-poll-service/internal/app"
	"consensus-poll-service/internal/config"
	"consensus-poll-service/internal/domain"
	"consensus-poll-service/internal/infra/memory"
	pgloader "consensus-poll-service/internal/infra/postgres"
	redisinfra "consensus-poll-service/internal/infra/redis"
	"consensus-poll-service/internal/promptgen"
	transport "consensus-poll-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the polling game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.PromptLoader = memory.NewStaticPromptLoader(seedPrompts())
	if pool != nil {
		loader = pgloader.NewPromptLoader(pool)
	}

	promptTTL := config.TTLDuration(cfg.Prompt.TTL, 10*time.Minute)
	var promptRepo app.PromptRepository
	if redisClient != nil {
		promptRepo = redisinfra.NewPromptRepository(redisClient, loader, promptTTL)
	} else {
		promptRepo = memory.NewPromptRepository(loader, promptTTL)
	}

	var store app.Store
	if redisClient != nil {
		store = redisinfra.NewStore(redisClient)
	} else {
		store = memory.NewStore()
	}

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	if cfg.Generator.BaseURL != "" {
		generator, err := promptgen.New(promptgen.Options{
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey,
			Model:   cfg.Generator.Model,
			Timeout: config.TTLDuration(cfg.Generator.Timeout, 30*time.Second),
		})
		if err != nil {
			return err
		}
		activeID := cfg.Prompt.ActiveID
		if activeID == "" {
			activeID = "p43"
		}
		if seed, err := promptRepo.GetPrompt(ctx, activeID); err != nil {
			log.Printf("no active prompt %q to refresh: %v", activeID, err)
		} else {
			refresher := app.NewDailyRefresher(promptRepo, seed, generator, nil)
			go refresher.Run(refreshCtx, time.Hour)
			promptRepo = refresher
		}
	}

	lockDelay := config.TTLDuration(cfg.Game.LockDelay, 1500*time.Millisecond)
	service := app.NewGameService(store, promptRepo, app.WithLockDelay(lockDelay))
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting consensus poll service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	// Releases submissions still waiting out their lock delay.
	service.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedPrompts is the built-in catalog used when no Postgres is configured: one
// closed prompt with final results and one active prompt open for voting.
func seedPrompts() map[string]domain.Prompt {
	return map[string]domain.Prompt{
		"p42": {
			ID:         "p42",
			Day:        "2024-05-20",
			Question:   "Which movie ending is most overrated?",
			Options:    []string{"Inception", "Titanic", "Joker", "Interstellar"},
			Status:     domain.PromptClosed,
			TotalVotes: 1240,
			Results:    domain.Tally{0: 450, 1: 120, 2: 380, 3: 290},
		},
		"p43": {
			ID:       "p43",
			Day:      "2024-05-21",
			Question: "What is the best type of pizza topping?",
			Options:  []string{"Pepperoni", "Pineapple", "Mushrooms", "Sausage", "Plain Cheese"},
			Status:   domain.PromptActive,
		},
	}
}
