// Package cli implements the hikari command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "hikari",
	Short: "Fleet configuration control plane for container-composition deployments",
	Long: `hikari — server-driven reconciliation of docker-compose stacks across a fleet of nodes.

Get started:
  hikari server              Run the AdminAPI
  hikari agent               Run a push-subscribed node
  hikari daemon               Run a poll-subscribed node
  hikari encrypt -i <in> -o <out>   Encrypt a catalog bundle
  hikari decrypt -i <in> -o <out>   Decrypt a catalog bundle
  hikari dry-run -i <catalog>       Emit compose YAML without applying`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "hikari.toml", "path to hikari.toml")

	rootCmd.AddCommand(
		encryptCmd,
		decryptCmd,
		dryRunCmd,
		daemonCmd,
		serverCmd,
		agentCmd,
	)
}
