package cli

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/victornm/dramquiz/internal/question"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the Redis question cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "invalidate",
		Short: "Drop every cached question pool, e.g. after editing the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			rc := redis.NewUniversalClient(&redis.UniversalOptions{
				Addrs:    c.Redis.Cache.Addrs,
				Password: c.Redis.Cache.Pass,
			})
			defer rc.Close()

			cache := question.NewCached(question.CachedConfig{
				Redis:  rc,
				Prefix: c.Redis.Cache.Prefix,
			})
			if err := cache.Invalidate(cmd.Context()); err != nil {
				return fmt.Errorf("invalidate question cache: %w", err)
			}

			slog.InfoContext(cmd.Context(), "cli: question cache invalidated", "prefix", c.Redis.Cache.Prefix)
			return nil
		},
	})

	return cmd
}
