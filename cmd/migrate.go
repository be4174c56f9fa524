package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/pkg/db"
)

// NewMigrateCommand returns the schema migration command.
func NewMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Long: `Apply pending SQL migrations from the migrations directory.

Applied versions are tracked in the schema_migrations table; re-running
is a no-op for versions already applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := db.ConnectWithRetry(cmd.Context(), db.ConfigFromEnv(), 3, 2*time.Second)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close(pool)

			result, err := db.RunMigrations(cmd.Context(), pool, dir)
			if err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			if len(result.Applied) == 0 {
				fmt.Println("No pending migrations.")
				return nil
			}
			for _, m := range result.Applied {
				fmt.Printf("Applied %s\n", m)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory containing .sql migration files")
	return cmd
}
