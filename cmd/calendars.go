package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/config"
	"github.com/tindevelopers/recall-sub000/pkg/calendar"
	"github.com/tindevelopers/recall-sub000/pkg/db"
	"github.com/tindevelopers/recall-sub000/pkg/queues"
)

// NewCalendarsCommand returns the calendar inspection and override commands.
func NewCalendarsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendars",
		Short: "Inspect connected calendars and manage recording overrides",
	}

	cmd.AddCommand(newCalendarsListCommand())
	cmd.AddCommand(newCalendarsShowCommand())
	cmd.AddCommand(newCalendarsSetRecordCommand())
	return cmd
}

func connectStore(cmd *cobra.Command) (*calendar.PostgresStore, *pgxpool.Pool, error) {
	pool, err := db.ConnectWithRetry(cmd.Context(), db.ConfigFromEnv(), 3, 2*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return calendar.NewPostgresStore(pool), pool, nil
}

func newCalendarsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, pool, err := connectStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(pool)

			cals, err := store.ListConnectedCalendars(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing calendars: %w", err)
			}

			fmt.Printf("%-38s %-20s %-30s %s\n", "ID", "PLATFORM", "OWNER", "POLICY")
			for _, cal := range cals {
				fmt.Printf("%-38s %-20s %-30s %s\n",
					cal.ID, cal.Platform, cal.OwnerEmail, policyString(cal.Policy))
			}
			return nil
		},
	}
}

func newCalendarsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <calendar-id>",
		Short: "Show one calendar's policy and preferences",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, pool, err := connectStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(pool)

			var cal *calendar.Calendar
			if id, parseErr := uuid.Parse(args[0]); parseErr == nil {
				cal, err = store.GetCalendar(cmd.Context(), id)
			} else {
				cal, err = store.GetCalendarByRemoteID(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("locating calendar %q: %w", args[0], err)
			}

			fmt.Printf("Calendar %s\n", cal.ID)
			fmt.Printf("  Remote ID:      %s\n", cal.RemoteID)
			fmt.Printf("  Platform:       %s\n", cal.Platform)
			fmt.Printf("  Owner:          %s\n", cal.OwnerEmail)
			fmt.Printf("  Status:         %s\n", cal.Status)
			fmt.Printf("  Policy:         %s\n", policyString(cal.Policy))
			fmt.Printf("  Transcription:  %s\n", cal.Recording.TranscriptionMode)
			if cal.Recording.Language != "" {
				fmt.Printf("  Language:       %s\n", cal.Recording.Language)
			}
			if cal.Bot.Name != "" {
				fmt.Printf("  Bot name:       %s\n", cal.Bot.Name)
			}
			return nil
		},
	}
}

func newCalendarsSetRecordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-record <event-id> <on|off|auto>",
		Short: "Set or clear the manual recording override for an event",
		Long: `Set the manual recording override for a mirrored calendar event.

  on    Always record the meeting, regardless of the automatic decision
  off   Never record the meeting
  auto  Clear the override and defer to the automatic eligibility engine

The event is handed to bot reconciliation immediately, so the bot is
scheduled or removed without waiting for the next calendar change.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}

			var override *bool
			switch strings.ToLower(args[1]) {
			case "on":
				v := true
				override = &v
			case "off":
				v := false
				override = &v
			case "auto":
				override = nil
			default:
				return fmt.Errorf("invalid override %q (must be on, off, or auto)", args[1])
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			store, pool, err := connectStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(pool)

			redisClient := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()

			queueConfigs := queues.DefaultQueueConfigs()
			reconcileQueue := queues.NewRedisQueue(redisClient, queueConfigs[queues.QueueReconcile])
			dispatcher := queues.NewDispatcher(nil, reconcileQueue, nil, nil)

			if err := calendar.OverrideRecording(cmd.Context(), store, dispatcher, eventID, override); err != nil {
				return fmt.Errorf("setting override: %w", err)
			}

			fmt.Printf("Set recording override for event %s to %s\n", eventID, strings.ToLower(args[1]))
			return nil
		},
	}
}

func policyString(p calendar.RecordingPolicy) string {
	var parts []string
	if p.RecordExternal {
		parts = append(parts, "external")
	}
	if p.RecordInternal {
		parts = append(parts, "internal")
	}
	if len(parts) == 0 {
		parts = append(parts, "none")
	}
	if p.OnlyConfirmed {
		parts = append(parts, "confirmed-only")
	}
	return strings.Join(parts, ", ")
}
