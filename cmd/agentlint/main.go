package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("AGENTLINT")
	viper.AutomaticEnv()

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "fmt")

	// Config file support: a repo-local agentlint-config.yaml wins over the
	// user-level ~/.agentlint/config.yaml.
	viper.SetConfigType("yaml")
	viper.SetConfigName("agentlint-config")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		viper.AddConfigPath("$HOME/.agentlint")
		_ = viper.ReadInConfig()
	}
}

var tracingShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "agentlint",
	Short: "Lint, audit and manage OpenCode agent definitions",
	Long: `agentlint works on OpenCode agent definition files (markdown with YAML
frontmatter). It validates frontmatter against the current format, resolves
permission rules, scores definition quality, scaffolds new agents and keeps
documentation consistent with the format.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			logger.G(ctx).WithError(err).Warn("invalid log level, keeping default")
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		shutdown, err := initTracing(ctx)
		if err != nil {
			logger.G(ctx).WithError(err).Warn("failed to initialize tracing")
			return
		}
		tracingShutdown = shutdown
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if tracingShutdown != nil {
			if err := tracingShutdown(cmd.Context()); err != nil {
				logger.G(cmd.Context()).WithError(err).Warn("failed to shut down tracing")
			}
		}
	},
	// Default behavior is to show help if no subcommand is provided
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(withTracing(validateCmd))
	rootCmd.AddCommand(withTracing(auditCmd))
	rootCmd.AddCommand(withTracing(resolveCmd))
	rootCmd.AddCommand(withTracing(checkCmd))
	rootCmd.AddCommand(withTracing(upgradeCmd))
	rootCmd.AddCommand(withTracing(listCmd))
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
