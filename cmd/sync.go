package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/config"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/db"
	"github.com/tindevelopers/recall-sub000/pkg/logging"
	"github.com/tindevelopers/recall-sub000/pkg/recallai"
)

// NewSyncCommand returns a manual single-calendar synchronization.
func NewSyncCommand() *cobra.Command {
	var lookback time.Duration

	cmd := &cobra.Command{
		Use:   "sync <calendar-id>",
		Short: "Synchronize one calendar against the provider",
		Long: `Synchronize a single calendar's event mirror against the remote
provider. The argument is the local calendar id (UUID) or the provider's
calendar id.

Examples:
  recalld sync 4f0a2c6e-...            Sync by local id
  recalld sync cal_abc123              Sync by provider id
  recalld sync cal_abc123 --lookback 72h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if lookback <= 0 {
				lookback = cfg.Sync.SweepLookback
			}

			logger := logging.NewLogger(&logging.Config{
				Level:       logging.Level(cfg.LogLevel),
				ServiceName: "recalld-sync",
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

			var cal *calendar.Calendar
			if id, parseErr := uuid.Parse(args[0]); parseErr == nil {
				cal, err = store.GetCalendar(ctx, id)
			} else {
				cal, err = store.GetCalendarByRemoteID(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("locating calendar %q: %w", args[0], err)
			}

			synchronizer := calendar.NewSynchronizer(provider, store, store, calendar.SynchronizerOptions{
				Lookback: lookback,
				Logger:   logger,
			})

			result := synchronizer.Sync(ctx, cal, time.Now().Add(-lookback), calendar.TriggerManual)
			fmt.Printf("Synced calendar %s: %d upserted, %d deleted\n",
				cal.ID, len(result.Upserted), len(result.Deleted))
			return nil
		},
	}

	cmd.Flags().DurationVar(&lookback, "lookback", 0, "watermark window (default from config)")
	return cmd
}
