package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pagedesk/pkg/webhook"
)

func init() {
	rootCmd.AddCommand(signCmd)
}

var signCmd = &cobra.Command{
	Use:   "sign [file|-]",
	Short: "Print the X-Hub-Signature-256 header for a body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settingsFor(cmd)
		if err != nil {
			return err
		}
		if s.AppSecret == "" {
			return fmt.Errorf("app secret required: pass --app-secret or set app_secret")
		}
		body, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(body, s.AppSecret))
		return nil
	},
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}
