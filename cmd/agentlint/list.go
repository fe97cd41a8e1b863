package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/presenter"
	"github.com/spf13/cobra"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Dirs     []string
	ShowPath bool
	JSON     bool
}

// NewListConfig creates a new ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{
		Dirs:     []string{},
		ShowPath: false,
		JSON:     false,
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered agent definitions",
	Long: `List agent definitions from the standard discovery directories.

Project agents (.opencode/agent) shadow global agents
(~/.config/opencode/agent) with the same name. Pass --dir to search
explicit directories instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getListConfigFromFlags(cmd)

		if err := runListCommand(ctx, config); err != nil {
			presenter.Error(err, "failed to list agents")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringSlice("dir", defaults.Dirs, "Directories to search (overrides discovery defaults)")
	listCmd.Flags().Bool("show-path", defaults.ShowPath, "Include the file path column")
	listCmd.Flags().Bool("json", defaults.JSON, "Output results as JSON")
}

// getListConfigFromFlags extracts list configuration from command flags
func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()

	if dirs, err := cmd.Flags().GetStringSlice("dir"); err == nil {
		config.Dirs = dirs
	}
	if showPath, err := cmd.Flags().GetBool("show-path"); err == nil {
		config.ShowPath = showPath
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}

	return config
}

func runListCommand(ctx context.Context, config *ListConfig) error {
	var opts []agent.Option
	if len(config.Dirs) > 0 {
		opts = append(opts, agent.WithDirs(config.Dirs...))
	}
	discovery, err := agent.NewDiscovery(opts...)
	if err != nil {
		return err
	}

	docs, err := discovery.List(ctx)
	if err != nil {
		return err
	}

	output := NewListOutput(docs, config)
	return output.Render(os.Stdout)
}

// ListOutput represents the data structure for list command output
type ListOutput struct {
	Agents   []AgentSummary `json:"agents"`
	Count    int            `json:"count"`
	ShowPath bool           `json:"-"`
	Format   OutputFormat   `json:"-"`
}

// AgentSummary is a single row of the agent listing
type AgentSummary struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Description string   `json:"description"`
	Mode        string   `json:"mode"`
	Tools       []string `json:"tools,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
}

// NewListOutput creates a ListOutput from discovered documents
func NewListOutput(docs []*agent.Document, config *ListConfig) *ListOutput {
	format := TableFormat
	if config.JSON {
		format = JSONFormat
	}

	summaries := make([]AgentSummary, 0, len(docs))
	for _, doc := range docs {
		hidden := doc.Definition.Hidden != nil && *doc.Definition.Hidden
		summaries = append(summaries, AgentSummary{
			Name:        doc.Name,
			Path:        doc.Path,
			Description: doc.Definition.Description,
			Mode:        doc.Definition.EffectiveMode(),
			Tools:       doc.Definition.EnabledTools(),
			Hidden:      hidden,
		})
	}

	return &ListOutput{
		Agents:   summaries,
		Count:    len(summaries),
		ShowPath: config.ShowPath,
		Format:   format,
	}
}

// Render writes the output to the provided writer
func (o *ListOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderText(w)
}

// renderJSON renders the output as JSON
func (o *ListOutput) renderJSON(w io.Writer) error {
	jsonData, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("error generating JSON output: %v", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// renderText renders the output as a formatted table
func (o *ListOutput) renderText(w io.Writer) error {
	if len(o.Agents) == 0 {
		_, err := fmt.Fprintln(w, "No agents found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := "NAME\tMODE\tTOOLS\tDESCRIPTION"
	if o.ShowPath {
		header += "\tPATH"
	}
	fmt.Fprintln(tw, header)

	for _, a := range o.Agents {
		name := a.Name
		if a.Hidden {
			name += " (hidden)"
		}
		tools := strings.Join(a.Tools, ",")
		if tools == "" {
			tools = "-"
		}
		row := fmt.Sprintf("%s\t%s\t%s\t%s", name, a.Mode, tools, truncateDescription(a.Description))
		if o.ShowPath {
			row += "\t" + a.Path
		}
		fmt.Fprintln(tw, row)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\n%d agents\n", o.Count)
	return err
}

// truncateDescription shortens long descriptions for table display
func truncateDescription(desc string) string {
	desc = strings.ReplaceAll(desc, "\n", " ")
	if len(desc) <= 60 {
		return desc
	}
	return strings.TrimSpace(desc[:57]) + "..."
}
