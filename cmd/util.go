// Package cmd implements the recalld subcommands.
package cmd

import (
	"github.com/spf13/cobra"
)

// Global flags shared by all subcommands.
var (
	cfgFile string
)

// RegisterGlobalFlags attaches the shared persistent flags to the root
// command.
func RegisterGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.recalld/config.yaml)")
}
