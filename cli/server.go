package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/config"
	"github.com/theinhumaneme/hikari/internal/db"
	"github.com/theinhumaneme/hikari/internal/server"
)

var serverAddr string

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the AdminAPI",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().StringVar(&serverAddr, "addr", "", "override the configured bind_address")
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading server config: %w", err)
	}
	addr := cfg.BindAddress
	if serverAddr != "" {
		addr = serverAddr
	}

	repo, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer repo.Close()

	srv := server.New(repo, logger, cfg.APIKey, cfg.CORSOrigins)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Start(ctx, addr)
}
