package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/jingkaihe/agentlint/pkg/validate"
	"github.com/spf13/cobra"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	JSONOutput bool
}

// NewValidateConfig creates a new ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{
		JSONOutput: false,
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate agent definition files",
	Long: `Validate agent definition files against the current frontmatter format.

Each file gets a report of findings grouped by severity (error, risk,
warning, info). The command exits with status 1 when any file has a
blocking finding.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getValidateConfigFromFlags(cmd)
		runValidateCommand(ctx, config, args)
	},
}

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
}

// getValidateConfigFromFlags extracts validate configuration from command flags
func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()

	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func runValidateCommand(ctx context.Context, config *ValidateConfig, paths []string) {
	validator := validate.New()

	// Load failures are already blocking findings in the reports, so the
	// aggregated error only needs a log line.
	reports, err := validator.CheckAll(ctx, paths)
	if err != nil {
		logger.G(ctx).WithError(err).Debug("some agent files failed to load")
	}

	format := TableFormat
	if config.JSONOutput {
		format = JSONFormat
	}
	output := NewValidateOutput(reports, format)
	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "failed to render validation results")
		os.Exit(1)
	}

	if !output.AllValid() {
		os.Exit(1)
	}
}

// ValidateOutput represents the output for validate
type ValidateOutput struct {
	Reports []*validate.Report
	Format  OutputFormat
}

// NewValidateOutput creates a new ValidateOutput
func NewValidateOutput(reports []*validate.Report, format OutputFormat) *ValidateOutput {
	return &ValidateOutput{
		Reports: reports,
		Format:  format,
	}
}

// AllValid reports whether every report is free of blocking findings.
func (o *ValidateOutput) AllValid() bool {
	for _, report := range o.Reports {
		if !report.Valid() {
			return false
		}
	}
	return true
}

func (o *ValidateOutput) validCount() int {
	count := 0
	for _, report := range o.Reports {
		if report.Valid() {
			count++
		}
	}
	return count
}

// Render formats and renders the validation reports to the specified writer
func (o *ValidateOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output in JSON format
func (o *ValidateOutput) renderJSON(w io.Writer) error {
	type jsonOutput struct {
		Valid   bool               `json:"valid"`
		Reports []*validate.Report `json:"reports"`
	}

	output := jsonOutput{
		Valid:   o.AllValid(),
		Reports: o.Reports,
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders per-file finding blocks with a closing summary line
func (o *ValidateOutput) renderText(w io.Writer) error {
	for i, report := range o.Reports {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := writeReportBlock(w, report); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d of %d files valid\n", o.validCount(), len(o.Reports))
	return err
}

// writeReportBlock writes one report as a header plus severity-ordered
// finding rows. Shared with watch mode, which re-renders single reports.
func writeReportBlock(w io.Writer, report *validate.Report) error {
	header := report.Agent
	if report.Path != "" {
		header = fmt.Sprintf("%s (%s)", report.Agent, report.Path)
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	if len(report.Findings) == 0 {
		_, err := fmt.Fprintln(w, "no findings")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, severity := range validate.Severities {
		for _, finding := range report.Filter(severity) {
			field := finding.Field
			if field == "" {
				field = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", strings.ToUpper(string(finding.Severity)), field, finding.Message)
			if finding.Suggestion != "" {
				fmt.Fprintf(tw, "\t\tsuggestion: %s\n", finding.Suggestion)
			}
		}
	}
	return tw.Flush()
}
