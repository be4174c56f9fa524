// Package main provides the recalld entry point.
// recalld keeps recording bots in sync with connected calendars: it mirrors
// calendar events, decides which meetings to record, schedules bots, and
// ingests the transcripts they produce.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tindevelopers/recall-sub000/cmd"
	"github.com/tindevelopers/recall-sub000/config"
	"github.com/tindevelopers/recall-sub000/pkg/buildinfo"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recalld",
	Short: "Calendar recording service",
	Long: `recalld connects calendars to recording bots.

It mirrors calendar events from the remote provider, evaluates each
meeting against the calendar's recording policy, schedules or removes
recording bots to match, and ingests the transcripts the bots deliver.

COMMON WORKFLOWS:
  Run the service:   recalld serve
  One-shot sweep:    recalld sweep
  Sync a calendar:   recalld sync <calendar-id>
  Set an override:   recalld calendars set-record <event-id> on
  Store the API key: recalld auth set-key

Run 'recalld <command> --help' for flags and examples.`,
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(c *cobra.Command, args []string) {
		info := buildinfo.Get("recalld")
		out := c.OutOrStdout()
		fmt.Fprintf(out, "recalld version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:  %s\n", info.Commit)
		fmt.Fprintf(out, "  built:   %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:      %s\n", info.GoVersion)
	},
}

// configCmd manages service configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage service configuration",
}

// configShowCmd displays current configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(c *cobra.Command, args []string) error {
		cfg, err := config.Load("")
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}

		configPath, _ := config.ConfigPath()

		fmt.Println("Current configuration:")
		fmt.Printf("  Config file:      %s\n", configPath)
		fmt.Printf("  Listen address:   %s\n", cfg.ListenAddress)
		fmt.Printf("  Public base URL:  %s\n", valueOrDefault(cfg.PublicBaseURL, "(not set)"))
		fmt.Printf("  Provider URL:     %s\n", cfg.Provider.BaseURL)
		fmt.Printf("  Sweep interval:   %s\n", cfg.Sync.SweepInterval)
		fmt.Printf("  Sweep lookback:   %s\n", cfg.Sync.SweepLookback)
		fmt.Printf("  Throttle TTL:     %s\n", cfg.Sync.ThrottleTTL)
		fmt.Printf("  Redis:            %s (db %d)\n", cfg.Redis.Addr, cfg.Redis.DB)
		fmt.Printf("  Log level:        %s\n", cfg.LogLevel)
		return nil
	},
}

// configInitCmd initializes configuration.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	RunE: func(c *cobra.Command, args []string) error {
		configPath, err := config.ConfigPath()
		if err != nil {
			return fmt.Errorf("getting config path: %w", err)
		}

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Configuration file already exists: %s\n", configPath)
			fmt.Println("Use 'recalld config show' to view current settings.")
			return nil
		}

		defaultCfg := config.DefaultConfig()
		if err := defaultCfg.Save(configPath); err != nil {
			return fmt.Errorf("saving configuration: %w", err)
		}

		fmt.Printf("Created configuration file: %s\n", configPath)
		return nil
	},
}

// completionCmd generates shell completion scripts.
var completionCmd = &cobra.Command{
	Use:                   "completion [bash|zsh|fish|powershell]",
	Short:                 "Generate shell completion scripts",
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(c *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func init() {
	cmd.RegisterGlobalFlags(rootCmd)

	rootCmd.AddGroup(
		&cobra.Group{ID: "service", Title: "Service:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	serveCmd := cmd.NewServeCommand()
	serveCmd.GroupID = "service"
	rootCmd.AddCommand(serveCmd)

	sweepCmd := cmd.NewSweepCommand()
	sweepCmd.GroupID = "ops"
	rootCmd.AddCommand(sweepCmd)

	syncCmd := cmd.NewSyncCommand()
	syncCmd.GroupID = "ops"
	rootCmd.AddCommand(syncCmd)

	calendarsCmd := cmd.NewCalendarsCommand()
	calendarsCmd.GroupID = "ops"
	rootCmd.AddCommand(calendarsCmd)

	migrateCmd := cmd.NewMigrateCommand()
	migrateCmd.GroupID = "ops"
	rootCmd.AddCommand(migrateCmd)

	authCmd := cmd.NewAuthCommand()
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	configCmd.GroupID = "setup"
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)

	completionCmd.GroupID = "setup"
	rootCmd.AddCommand(completionCmd)

	versionCmd.GroupID = "setup"
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		// Second signal forces exit.
		<-sigChan
		time.Sleep(100 * time.Millisecond)
		os.Exit(1)
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
