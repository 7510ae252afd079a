package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victornm/dramquiz/internal/migrations"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if c.Postgres.Addr == "" {
				return fmt.Errorf("postgres.addr not configured")
			}
			return migrations.Up(cmd.Context(), c.PostgresDSN())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if c.Postgres.Addr == "" {
				return fmt.Errorf("postgres.addr not configured")
			}
			return migrations.Down(cmd.Context(), c.PostgresDSN())
		},
	})

	return cmd
}
