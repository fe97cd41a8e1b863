package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jingkaihe/agentlint/pkg/consistency"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/spf13/cobra"
)

// CheckConfig holds configuration for the check command
type CheckConfig struct {
	JSONOutput bool
}

// NewCheckConfig creates a new CheckConfig with default values
func NewCheckConfig() *CheckConfig {
	return &CheckConfig{
		JSONOutput: false,
	}
}

var checkCmd = &cobra.Command{
	Use:   "check [directory]",
	Short: "Check a documentation tree for agent-format drift",
	Long: `Scan markdown files for deprecated frontmatter fields in YAML
examples, the plural 'permissions:' misspelling, stale agent directory
paths, broken relative links, and duplicate section numbers in SKILL.md.

Defaults to the current directory. Exits 1 when blocking issues are found.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getCheckConfigFromFlags(cmd)

		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		if err := runCheckCommand(ctx, root, config); err != nil {
			presenter.Error(err, "failed to check documentation tree")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewCheckConfig()
	checkCmd.Flags().Bool("json", defaults.JSONOutput, "Output report as JSON")
}

// getCheckConfigFromFlags extracts check configuration from command flags
func getCheckConfigFromFlags(cmd *cobra.Command) *CheckConfig {
	config := NewCheckConfig()

	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func runCheckCommand(ctx context.Context, root string, config *CheckConfig) error {
	report, err := consistency.New().CheckTree(ctx, root)
	if err != nil {
		return err
	}

	output := NewCheckOutput(report, config)
	if err := output.Render(os.Stdout); err != nil {
		return err
	}

	if !report.Consistent() {
		os.Exit(1)
	}
	return nil
}

// CheckOutput represents the data structure for check command output
type CheckOutput struct {
	Report *consistency.Report
	Format OutputFormat
}

// NewCheckOutput creates a CheckOutput from a consistency report
func NewCheckOutput(report *consistency.Report, config *CheckConfig) *CheckOutput {
	format := TableFormat
	if config.JSONOutput {
		format = JSONFormat
	}
	return &CheckOutput{Report: report, Format: format}
}

// Render writes the output to the provided writer
func (o *CheckOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output as JSON
func (o *CheckOutput) renderJSON(w io.Writer) error {
	jsonData, err := json.MarshalIndent(o.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders the report as a formatted table
func (o *CheckOutput) renderText(w io.Writer) error {
	r := o.Report

	if len(r.Issues) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, issue := range r.Issues {
			location := issue.File
			if issue.Line > 0 {
				location = fmt.Sprintf("%s:%d", issue.File, issue.Line)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", location, issue.Severity, issue.Message)
			if issue.Suggestion != "" {
				fmt.Fprintf(tw, "\t\tsuggestion: %s\n", issue.Suggestion)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	_, err := fmt.Fprintf(w, "%d files checked, %d YAML examples checked: %d errors, %d warnings\n",
		r.FilesChecked, r.YAMLBlocksChecked, len(r.Errors()), len(r.Warnings()))
	return err
}
