package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/scaffold"
	"github.com/spf13/cobra"
)

// InitConfig holds configuration for the init command
type InitConfig struct {
	Dir  string
	Mode string
}

// NewInitConfig creates a new InitConfig with default values
func NewInitConfig() *InitConfig {
	return &InitConfig{
		Dir:  "",
		Mode: agent.ModeAll,
	}
}

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Scaffold a new agent definition",
	Long: `Create a new agent definition file from the built-in template.

The name must be lowercase alphanumeric with hyphens (underscores are
normalized). The file is written to ~/.config/opencode/agent by default
and refuses to overwrite an existing agent.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getInitConfigFromFlags(cmd)

		path, err := scaffold.Create(ctx, scaffold.Options{
			Name: args[0],
			Dir:  config.Dir,
			Mode: config.Mode,
		})
		if err != nil {
			presenter.Error(err, "failed to create agent")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Created agent at %s", path))
		presenter.Info("Next steps:")
		presenter.Info("  1. Replace the [TODO] sections with the agent's actual instructions")
		presenter.Info(fmt.Sprintf("  2. Run: agentlint validate %s", path))
	},
}

func init() {
	defaults := NewInitConfig()
	initCmd.Flags().String("dir", defaults.Dir, "Target directory (defaults to ~/.config/opencode/agent)")
	initCmd.Flags().String("mode", defaults.Mode, fmt.Sprintf("Agent mode (%s)", strings.Join(agent.Modes, ", ")))
}

// getInitConfigFromFlags extracts init configuration from command flags
func getInitConfigFromFlags(cmd *cobra.Command) *InitConfig {
	config := NewInitConfig()

	if dir, err := cmd.Flags().GetString("dir"); err == nil {
		config.Dir = dir
	}
	if mode, err := cmd.Flags().GetString("mode"); err == nil {
		config.Mode = mode
	}

	return config
}
