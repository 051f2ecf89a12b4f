package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/compose"
	"github.com/theinhumaneme/hikari/internal/config"
	"github.com/theinhumaneme/hikari/internal/daemon"
)

var daemonPrivateKey string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pull-reconciliation driver",
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&daemonPrivateKey, "private-key", "", "path to the RSA private key (PEM) used to decrypt bundles")
	daemonCmd.MarkFlagRequired("private-key") //nolint:errcheck
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	identity, err := config.LoadNodeIdentity(configPath)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}
	opts, err := config.LoadUpdateOptions(configPath)
	if err != nil {
		return fmt.Errorf("loading update options: %w", err)
	}

	runner := compose.New("", logger)
	d := daemon.New(*identity, *opts, daemonPrivateKey, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
