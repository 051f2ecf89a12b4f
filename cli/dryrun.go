package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theinhumaneme/hikari/internal/catalog"
	"github.com/theinhumaneme/hikari/internal/compose"
)

var dryRunInput string

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Emit compose YAML for a catalog without applying it",
	Long: `Load a catalog JSON document and materialize every stack's compose file
into the current directory, without invoking pull/up/down.`,
	RunE: runDryRun,
}

func init() {
	dryRunCmd.Flags().StringVarP(&dryRunInput, "input", "i", "", "path to the catalog JSON document")
	dryRunCmd.MarkFlagRequired("input") //nolint:errcheck
}

func runDryRun(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(dryRunInput)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	runner := compose.New("", nil)
	for _, dep := range cat.DeployConfigs {
		for _, stack := range dep.DeployStacks {
			path, err := runner.Materialize(".", stack.Filename, stack.ComposeSpec)
			if err != nil {
				return fmt.Errorf("materializing stack %s: %w", stack.StackName, err)
			}
			printInfo(fmt.Sprintf("wrote %s", path))
		}
	}
	return nil
}
