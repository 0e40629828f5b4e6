package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pagedeskctl",
	Short: "Operator tool for a pagedesk server",
	Long: `pagedeskctl signs and replays webhook fixtures, runs the subscription
handshake and reads admin stats from a running pagedesk server.`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "settings file path (default is $HOME/.pagedeskctl.yaml)")
	rootCmd.PersistentFlags().String("addr", "", "server base url (default http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().String("admin-key", "", "admin api key")
	rootCmd.PersistentFlags().String("app-secret", "", "app secret used to sign webhook bodies")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")
}
