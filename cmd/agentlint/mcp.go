package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/mcp"
	"github.com/spf13/cobra"
)

// MCPConfig holds configuration for the mcp command
type MCPConfig struct {
	AgentDirs []string
}

// NewMCPConfig creates a new MCPConfig with default values
func NewMCPConfig() *MCPConfig {
	return &MCPConfig{
		AgentDirs: []string{},
	}
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve agentlint tools over the Model Context Protocol",
	Long: `Start an MCP server on stdin/stdout exposing validation, auditing,
permission resolution and agent discovery as tools.

Intended to be launched by an MCP host, not interactively: stdout
carries the protocol, so all logging goes to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		config := getMCPConfigFromFlags(cmd)

		// stdout is the protocol channel
		logger.SetLogOutput(os.Stderr)

		server, err := mcp.NewServer(&mcp.ServerConfig{AgentDirs: config.AgentDirs})
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return server.Serve(ctx)
	},
}

func init() {
	defaults := NewMCPConfig()
	mcpCmd.Flags().StringSlice("dir", defaults.AgentDirs, "Agent directories to serve (overrides discovery defaults)")
}

// getMCPConfigFromFlags extracts mcp configuration from command flags
func getMCPConfigFromFlags(cmd *cobra.Command) *MCPConfig {
	config := NewMCPConfig()

	if dirs, err := cmd.Flags().GetStringSlice("dir"); err == nil {
		config.AgentDirs = dirs
	}

	return config
}
