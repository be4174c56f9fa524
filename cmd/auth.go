package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tindevelopers/recall-sub000/credentials"
)

// NewAuthCommand returns the credential management commands.
func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage provider credentials",
		Long: `Manage the recording provider API key and webhook secret.

Credentials are stored encrypted in ~/.recalld/credentials.yaml. The
encryption key lives in the system keyring; on headless hosts set
RECALLD_ENCRYPTION_KEY to a 64-character hex string instead.`,
	}

	cmd.AddCommand(newAuthSetKeyCommand())
	cmd.AddCommand(newAuthShowCommand())
	cmd.AddCommand(newAuthClearCommand())
	return cmd
}

func newAuthSetKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the provider API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print("Provider API key: ")
			keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("reading API key: %w", err)
			}
			apiKey := strings.TrimSpace(string(keyBytes))
			if apiKey == "" {
				return errors.New("API key cannot be empty")
			}

			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("opening credentials store: %w", err)
			}

			creds, err := store.Load()
			if err != nil {
				if !errors.Is(err, credentials.ErrNoCredentials) {
					return err
				}
				creds = &credentials.Credentials{}
			}
			creds.APIKey = apiKey

			if err := store.Save(creds); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}

			fmt.Printf("Stored API key %s\n", credentials.MaskCredential(apiKey))
			return nil
		},
	}
}

func newAuthShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored credentials (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("opening credentials store: %w", err)
			}

			creds, err := store.Load()
			if err != nil {
				if errors.Is(err, credentials.ErrNoCredentials) {
					fmt.Println("No credentials stored.")
					return nil
				}
				return err
			}

			path, _ := credentials.CredentialsPath()
			fmt.Printf("Credentials file: %s\n", path)
			if creds.APIKey != "" {
				fmt.Printf("  API key:        %s\n", credentials.MaskCredential(creds.APIKey))
			}
			if creds.WebhookSecret != "" {
				fmt.Printf("  Webhook secret: %s\n", credentials.MaskCredential(creds.WebhookSecret))
			}
			fmt.Printf("  Last updated:   %s\n", creds.LastUpdated.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newAuthClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("opening credentials store: %w", err)
			}
			if err := store.Delete(); err != nil {
				return fmt.Errorf("deleting credentials: %w", err)
			}
			fmt.Println("Credentials deleted.")
			return nil
		},
	}
}
