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

// AuditConfig holds configuration for the audit command
type AuditConfig struct {
	Save       bool
	JSONOutput bool
}

// NewAuditConfig creates a new AuditConfig with default values
func NewAuditConfig() *AuditConfig {
	return &AuditConfig{
		Save:       false,
		JSONOutput: false,
	}
}

var auditCmd = &cobra.Command{
	Use:   "audit <file>",
	Short: "Score an agent definition across five quality categories",
	Long: `Audit an agent definition and score it on frontmatter quality, tool
safety, instruction quality, security and documentation, each from 0 to 5.
The report includes findings, recommendations and a risk classification.

Use --save to record the result in the audit history database so scores
can be compared across runs with 'agentlint history'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getAuditConfigFromFlags(cmd)
		runAuditCommand(ctx, config, args[0])
	},
}

func init() {
	defaults := NewAuditConfig()
	auditCmd.Flags().Bool("save", defaults.Save, "Save the result to the audit history database")
	auditCmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
}

// getAuditConfigFromFlags extracts audit configuration from command flags
func getAuditConfigFromFlags(cmd *cobra.Command) *AuditConfig {
	config := NewAuditConfig()

	if save, err := cmd.Flags().GetBool("save"); err == nil {
		config.Save = save
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func runAuditCommand(ctx context.Context, config *AuditConfig, path string) {
	auditor := audit.New()
	result, err := auditor.AuditFile(ctx, path)
	if err != nil {
		presenter.Error(err, "failed to audit agent")
		os.Exit(1)
	}

	if config.Save {
		store, err := history.Open(ctx, "")
		if err != nil {
			presenter.Error(err, "failed to open audit history database")
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Save(ctx, result); err != nil {
			presenter.Error(err, "failed to save audit result")
			os.Exit(1)
		}
	}

	format := TableFormat
	if config.JSONOutput {
		format = JSONFormat
	}
	output := NewAuditOutput(result, format)
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "failed to render audit result")
		os.Exit(1)
	}

	if config.Save && !config.JSONOutput {
		presenter.Success(fmt.Sprintf("Audit saved for %s (id %s)", result.AgentName, result.ID))
	}
}

// AuditOutput represents the output for audit
type AuditOutput struct {
	Result *audit.Result
	Format OutputFormat
}

// NewAuditOutput creates a new AuditOutput
func NewAuditOutput(result *audit.Result, format OutputFormat) *AuditOutput {
	return &AuditOutput{
		Result: result,
		Format: format,
	}
}

// Render formats and renders the audit result to the specified writer
func (o *AuditOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output in JSON format
func (o *AuditOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		*audit.Result
		Band audit.Band `json:"band"`
	}

	output := jsonOutput{
		Result: o.Result,
		Band:   o.Result.Band(),
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders the audit result as a score table with findings and
// recommendations
func (o *AuditOutput) renderText(w io.Writer) error {
	result := o.Result

	fmt.Fprintf(w, "Agent:   %s\n", result.AgentName)
	fmt.Fprintf(w, "Audited: %s\n", result.AuditedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Overall: %.2f / 5.00 (%s)\n", result.Overall, result.Band())
	fmt.Fprintf(w, "Risk:    %s\n\n", result.RiskLevel)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSCORE")
	for _, category := range audit.Categories {
		fmt.Fprintf(tw, "%s\t%.1f\n", category.Label(), result.Score(category))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Findings) > 0 {
		fmt.Fprintln(w, "\nFindings:")
		for _, finding := range result.Findings {
			fmt.Fprintf(w, "  - %s\n", finding)
		}
	}
	if len(result.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, recommendation := range result.Recommendations {
			fmt.Fprintf(w, "  - %s\n", recommendation)
		}
	}

	return nil
}
