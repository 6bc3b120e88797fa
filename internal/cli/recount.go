package cli

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"consensus-poll-service/internal/app"
	"consensus-poll-service/internal/config"
	redisinfra "consensus-poll-service/internal/infra/redis"
)

// NewRecountCmd rebuilds a prompt's live tally from the submission log. The
// log append and the tally increment are separate writes, so a crash between
// them leaves the tally under-counted; this repairs the drift.
func NewRecountCmd(configPath *string) *cobra.Command {
	var promptID string
	cmd := &cobra.Command{
		Use:   "recount",
		Short: "Rebuild a prompt's live vote tally from the submission log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if promptID == "" {
				return fmt.Errorf("--prompt is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Redis.Addr == "" {
				return fmt.Errorf("redis addr not configured; nothing durable to recount")
			}
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()

			store := redisinfra.NewStore(client)
			service := app.NewGameService(store, nil, app.WithLockDelay(0))
			tally, err := service.RebuildTally(cmd.Context(), promptID)
			if err != nil {
				return err
			}
			fmt.Printf("rebuilt tally for %s: %v\n", promptID, tally)
			return nil
		},
	}
	cmd.Flags().StringVar(&promptID, "prompt", "", "prompt id to recount")
	return cmd
}
