package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/agent"
	"github.com/theinhumaneme/hikari/internal/compose"
	"github.com/theinhumaneme/hikari/internal/config"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the push-reconciliation driver",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	identity, err := config.LoadNodeIdentity(configPath)
	if err != nil {
		return fmt.Errorf("loading node identity: %w", err)
	}
	agentCfg, err := config.LoadAgentConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading agent config: %w", err)
	}

	runner := compose.New("", logger)
	a := agent.New(*identity, *agentCfg, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
