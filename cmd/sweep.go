package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/config"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/db"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/recallai"
)

// NewSweepCommand returns a one-shot sweep over every connected calendar.
func NewSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a single synchronization sweep and exit",
		Long: `Synchronize every connected calendar once against the remote provider
and exit. Useful for cron-driven deployments and for recovering after an
outage without starting the full service.

Note: bot reconciliation normally flows through the service's work queues;
a standalone sweep only refreshes the event mirror and eligibility flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger := logging.NewLogger(&logging.Config{
				Level:       logging.Level(cfg.LogLevel),
				ServiceName: "recalld-sweep",
				JSONFormat:  cfg.LogJSON,
			})

			apiKey, err := resolveAPIKey(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.ConnectWithRetry(ctx, db.ConfigFromEnv(), 3, 2*time.Second)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer db.Close(pool)

			provider, err := recallai.NewClient(recallai.Options{
				BaseURL: cfg.Provider.BaseURL,
				APIKey:  apiKey,
				Timeout: cfg.Provider.RequestTimeout,
			})
			if err != nil {
				return fmt.Errorf("creating provider client: %w", err)
			}

			store := calendar.NewPostgresStore(pool)
			synchronizer := calendar.NewSynchronizer(provider, store, store, calendar.SynchronizerOptions{
				Lookback: cfg.Sync.SweepLookback,
				Logger:   logger,
			})

			synchronizer.Sweep(ctx)
			return nil
		},
	}
}
