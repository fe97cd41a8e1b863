package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/permission"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/spf13/cobra"
)

// ResolveConfig holds configuration for the resolve command
type ResolveConfig struct {
	JSONOutput bool
}

// NewResolveConfig creates a new ResolveConfig with default values
func NewResolveConfig() *ResolveConfig {
	return &ResolveConfig{
		JSONOutput: false,
	}
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file> <tool> <operation>...",
	Short: "Resolve what an agent's permission rules decide for an operation",
	Long: `Resolve an operation against an agent's permission rules for one tool.

Rules are evaluated in document order and the last matching pattern wins,
so a trailing specific rule overrides an earlier wildcard. Operation
arguments are joined with spaces; put them after -- when they carry
flags of their own:

  agentlint resolve reviewer.md bash -- git status --porcelain`,
	Args: cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getResolveConfigFromFlags(cmd)
		runResolveCommand(ctx, config, args[0], args[1], strings.Join(args[2:], " "))
	},
}

func init() {
	defaults := NewResolveConfig()
	resolveCmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
}

// getResolveConfigFromFlags extracts resolve configuration from command flags
func getResolveConfigFromFlags(cmd *cobra.Command) *ResolveConfig {
	config := NewResolveConfig()

	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func runResolveCommand(ctx context.Context, config *ResolveConfig, path, tool, operation string) {
	if !permission.ValidTool(tool) {
		presenter.Error(fmt.Errorf("invalid tool %q (valid tools: %v)", tool, permission.Tools), "cannot resolve permission")
		os.Exit(1)
	}

	doc, err := agent.Load(ctx, path)
	if err != nil {
		presenter.Error(err, "failed to load agent file")
		os.Exit(1)
	}

	output := &ResolveOutput{
		Agent:     doc.Name,
		Tool:      tool,
		Operation: operation,
	}
	if config.JSONOutput {
		output.Format = JSONFormat
	}

	if pol, ok := doc.Definition.PermissionFor(tool); ok {
		output.HasPolicy = true
		resolver, err := pol.Resolver()
		if err != nil {
			presenter.Error(err, "agent has an invalid permission pattern")
			os.Exit(1)
		}
		outcome := resolver.Resolve(operation)
		output.Matched = outcome.Matched
		output.Decision = outcome.Decision
		output.Pattern = outcome.Pattern
	}

	if err := output.Render(os.Stdout); err != nil {
		presenter.Error(err, "failed to render resolution")
		os.Exit(1)
	}
}

// ResolveOutput represents the output for resolve
type ResolveOutput struct {
	Agent     string              `json:"agent"`
	Tool      string              `json:"tool"`
	Operation string              `json:"operation"`
	HasPolicy bool                `json:"hasPolicy"`
	Matched   bool                `json:"matched"`
	Decision  permission.Decision `json:"decision,omitempty"`
	Pattern   string              `json:"pattern,omitempty"`
	Format    OutputFormat        `json:"-"`
}

// Render formats and renders the resolution to the specified writer
func (o *ResolveOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output in JSON format
func (o *ResolveOutput) renderJSON(w io.Writer) error {
	jsonData, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}

	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders the resolution as aligned key/value lines
func (o *ResolveOutput) renderText(w io.Writer) error {
	fmt.Fprintf(w, "Agent:     %s\n", o.Agent)
	fmt.Fprintf(w, "Tool:      %s\n", o.Tool)
	fmt.Fprintf(w, "Operation: %s\n", o.Operation)

	switch {
	case !o.HasPolicy:
		_, err := fmt.Fprintf(w, "Decision:  none (no permission policy for %s; the runtime default applies)\n", o.Tool)
		return err
	case !o.Matched:
		_, err := fmt.Fprintln(w, "Decision:  none (no pattern matched; the runtime default applies)")
		return err
	case o.Pattern == "":
		_, err := fmt.Fprintf(w, "Decision:  %s (blanket policy)\n", o.Decision)
		return err
	default:
		_, err := fmt.Fprintf(w, "Decision:  %s (pattern %q)\n", o.Decision, o.Pattern)
		return err
	}
}
