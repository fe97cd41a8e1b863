package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jingkaihe/agentlint/pkg/audit"
	"github.com/jingkaihe/agentlint/pkg/history"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/spf13/cobra"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Limit      int
	JSONOutput bool
}

// NewHistoryConfig creates a new HistoryConfig with default values
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Limit:      10,
		JSONOutput: false,
	}
}

var historyCmd = &cobra.Command{
	Use:   "history <agent-name>",
	Short: "Show recorded audit results for an agent",
	Long: `List past audit results for an agent, most recent first.

Audits are recorded with 'agentlint audit --save'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getHistoryConfigFromFlags(cmd)

		if err := runHistoryCommand(ctx, args[0], config); err != nil {
			presenter.Error(err, "failed to read audit history")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewHistoryConfig()
	historyCmd.Flags().Int("limit", defaults.Limit, "Maximum number of audits to show")
	historyCmd.Flags().Bool("json", defaults.JSONOutput, "Output results as JSON")
}

// getHistoryConfigFromFlags extracts history configuration from command flags
func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()

	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func runHistoryCommand(ctx context.Context, agentName string, config *HistoryConfig) error {
	store, err := history.Open(ctx, "")
	if err != nil {
		return err
	}
	defer store.Close()

	audits, err := store.ListByAgent(ctx, agentName, config.Limit)
	if err != nil {
		return err
	}

	if len(audits) == 0 {
		presenter.Warning(fmt.Sprintf("No audits recorded for %s", agentName))
		return nil
	}

	output := NewHistoryOutput(agentName, audits, config)
	return output.Render(os.Stdout)
}

// HistoryOutput represents the data structure for history command output
type HistoryOutput struct {
	Agent  string          `json:"agent"`
	Audits []*audit.Result `json:"audits"`
	Format OutputFormat    `json:"-"`
}

// NewHistoryOutput creates a HistoryOutput from stored audit results
func NewHistoryOutput(agentName string, audits []*audit.Result, config *HistoryConfig) *HistoryOutput {
	format := TableFormat
	if config.JSONOutput {
		format = JSONFormat
	}
	return &HistoryOutput{Agent: agentName, Audits: audits, Format: format}
}

// Render writes the output to the provided writer
func (o *HistoryOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output as JSON
func (o *HistoryOutput) renderJSON(w io.Writer) error {
	jsonData, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders the audit history as a formatted table
func (o *HistoryOutput) renderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AUDITED\tOVERALL\tBAND\tRISK\tID")
	for _, result := range o.Audits {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\n",
			result.AuditedAt.Format(time.RFC3339),
			result.Overall,
			result.Band(),
			result.RiskLevel,
			result.ID,
		)
	}
	return tw.Flush()
}
