package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/upgrade"
	"github.com/spf13/cobra"
)

// UpgradeConfig holds configuration for the upgrade command
type UpgradeConfig struct {
	Write bool
	Diff  bool
}

// NewUpgradeConfig creates a new UpgradeConfig with default values
func NewUpgradeConfig() *UpgradeConfig {
	return &UpgradeConfig{
		Write: false,
		Diff:  false,
	}
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <file>...",
	Short: "Rewrite legacy agent frontmatter into the current format",
	Long: `Plan and optionally apply frontmatter rewrites: the deprecated
'name' and 'skills' fields are removed and the plural 'permissions' key
becomes 'permission'. Untouched fields keep their formatting.

Without --write the command only reports what it would change.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getUpgradeConfigFromFlags(cmd)

		if err := runUpgradeCommand(ctx, args, config); err != nil {
			presenter.Error(err, "upgrade failed")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewUpgradeConfig()
	upgradeCmd.Flags().Bool("write", defaults.Write, "Apply the planned changes to the files")
	upgradeCmd.Flags().Bool("diff", defaults.Diff, "Show a unified diff of the planned changes")
}

// getUpgradeConfigFromFlags extracts upgrade configuration from command flags
func getUpgradeConfigFromFlags(cmd *cobra.Command) *UpgradeConfig {
	config := NewUpgradeConfig()

	if write, err := cmd.Flags().GetBool("write"); err == nil {
		config.Write = write
	}
	if diff, err := cmd.Flags().GetBool("diff"); err == nil {
		config.Diff = diff
	}

	return config
}

func runUpgradeCommand(ctx context.Context, paths []string, config *UpgradeConfig) error {
	upgrader := upgrade.New()

	hadError := false
	planned := 0
	for _, path := range paths {
		plan, err := upgrader.PlanFile(ctx, path)
		if err != nil {
			presenter.Error(err, fmt.Sprintf("cannot plan upgrade for %s", path))
			hadError = true
			continue
		}

		if !plan.Changed {
			presenter.Info(fmt.Sprintf("%s is already current", path))
			continue
		}
		planned++

		presenter.Section(path)
		for _, action := range plan.Actions {
			presenter.Info(fmt.Sprintf("  - %s", action))
		}
		if config.Diff && plan.Diff != "" {
			fmt.Println(plan.Diff)
		}

		if config.Write {
			if err := plan.Apply(); err != nil {
				presenter.Error(err, fmt.Sprintf("cannot apply upgrade to %s", path))
				hadError = true
				continue
			}
			presenter.Success(fmt.Sprintf("Upgraded %s", path))
		}
	}

	if planned > 0 && !config.Write {
		presenter.Info("Run again with --write to apply these changes")
	}
	if hadError {
		return fmt.Errorf("one or more files could not be upgraded")
	}
	return nil
}
