// Package mcp serves agentlint over the Model Context Protocol so that
// LLM hosts can validate, audit and inspect agent definitions as tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/audit"
	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/permission"
	"github.com/jingkaihe/agentlint/pkg/validate"
	"github.com/jingkaihe/agentlint/pkg/version"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
)

const serverInstructions = `agentlint checks OpenCode agent definition files (markdown with YAML frontmatter).
Use validate_agent to find schema problems, audit_agent to score quality,
resolve_permission to see what an agent's permission rules decide for an
operation, and list_agents to discover agent definitions on this machine.`

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// AgentDirs overrides the default discovery directories used by the
	// list_agents tool.
	AgentDirs []string
}

// Server exposes validation, auditing and permission resolution as MCP
// tools over stdio.
type Server struct {
	mcpServer *server.MCPServer
	discovery *agent.Discovery
	validator *validate.Validator
	auditor   *audit.Auditor
}

// NewServer creates the MCP server and registers its tools.
func NewServer(config *ServerConfig) (*Server, error) {
	var opts []agent.Option
	if len(config.AgentDirs) > 0 {
		opts = append(opts, agent.WithDirs(config.AgentDirs...))
	}
	discovery, err := agent.NewDiscovery(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure agent discovery")
	}

	s := &Server{
		discovery: discovery,
		validator: validate.New(),
		auditor:   audit.New(),
	}

	s.mcpServer = server.NewMCPServer(
		"agentlint",
		version.Get().Version,
		server.WithToolCapabilities(false),
		server.WithInstructions(serverInstructions),
		server.WithRecovery(),
	)
	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcpgo.NewTool("validate_agent",
		mcpgo.WithDescription("Validate an agent definition against the frontmatter format and report findings grouped by severity"),
		mcpgo.WithString("path", mcpgo.Description("Path to the agent definition file")),
		mcpgo.WithString("content", mcpgo.Description("Inline agent definition content, used when no path is given")),
		mcpgo.WithString("name", mcpgo.Description("Agent name to attribute inline content to")),
	), s.handleValidateAgent)

	s.mcpServer.AddTool(mcpgo.NewTool("audit_agent",
		mcpgo.WithDescription("Score an agent definition across five quality categories and report findings and recommendations"),
		mcpgo.WithString("path", mcpgo.Description("Path to the agent definition file")),
		mcpgo.WithString("content", mcpgo.Description("Inline agent definition content, used when no path is given")),
		mcpgo.WithString("name", mcpgo.Description("Agent name to attribute inline content to")),
	), s.handleAuditAgent)

	s.mcpServer.AddTool(mcpgo.NewTool("resolve_permission",
		mcpgo.WithDescription("Resolve what an agent's permission rules decide for a tool operation"),
		mcpgo.WithString("path", mcpgo.Description("Path to the agent definition file")),
		mcpgo.WithString("content", mcpgo.Description("Inline agent definition content, used when no path is given")),
		mcpgo.WithString("name", mcpgo.Description("Agent name to attribute inline content to")),
		mcpgo.WithString("tool",
			mcpgo.Required(),
			mcpgo.Description("Tool the operation runs under"),
			mcpgo.Enum(permission.Tools...),
		),
		mcpgo.WithString("operation",
			mcpgo.Required(),
			mcpgo.Description("Operation to resolve, for example a shell command line"),
		),
	), s.handleResolvePermission)

	s.mcpServer.AddTool(mcpgo.NewTool("list_agents",
		mcpgo.WithDescription("List agent definitions discovered in the configured agent directories"),
	), s.handleListAgents)
}

// Serve runs the server on stdin/stdout until the context is cancelled
// or the host closes the stream. All logging goes to stderr so stdout
// stays a clean protocol channel.
func (s *Server) Serve(ctx context.Context) error {
	logger.G(ctx).WithField("version", version.Get().Version).Info("starting MCP server on stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

type validateResult struct {
	Valid  bool             `json:"valid"`
	Report *validate.Report `json:"report"`
}

type auditResult struct {
	*audit.Result
	QualityBand audit.Band `json:"band"`
}

type resolveResult struct {
	Agent     string              `json:"agent"`
	Tool      string              `json:"tool"`
	Operation string              `json:"operation"`
	HasPolicy bool                `json:"hasPolicy"`
	Matched   bool                `json:"matched"`
	Decision  permission.Decision `json:"decision,omitempty"`
	Pattern   string              `json:"pattern,omitempty"`
}

type agentSummary struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Description string   `json:"description"`
	Mode        string   `json:"mode"`
	Tools       []string `json:"tools,omitempty"`
	Hidden      bool     `json:"hidden,omitempty"`
}

type listResult struct {
	Agents []agentSummary `json:"agents"`
	Count  int            `json:"count"`
}

func (s *Server) handleValidateAgent(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := request.Params.Arguments
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	switch {
	case path != "":
		// Load failures surface as blocking findings in the report so
		// the caller always gets a structured answer for a path.
		report := s.validator.CheckFile(ctx, path)
		return textResult(validateResult{Valid: report.Valid(), Report: report})
	case content != "":
		doc, err := agent.Parse(argName(args), content)
		if err != nil {
			return mcpgo.NewToolResultError(errors.Wrap(err, "cannot parse agent content").Error()), nil
		}
		report := s.validator.Check(doc)
		return textResult(validateResult{Valid: report.Valid(), Report: report})
	default:
		return mcpgo.NewToolResultError("either path or content is required"), nil
	}
}

func (s *Server) handleAuditAgent(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	doc, err := s.loadDocument(ctx, request.Params.Arguments)
	if err != nil {
		return mcpgo.NewToolResultError(errors.Wrap(err, "cannot load agent document").Error()), nil
	}

	result := s.auditor.Audit(doc)
	return textResult(auditResult{Result: result, QualityBand: result.Band()})
}

func (s *Server) handleResolvePermission(ctx context.Context, request mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := request.Params.Arguments
	tool, _ := args["tool"].(string)
	if !permission.ValidTool(tool) {
		return mcpgo.NewToolResultError(fmt.Sprintf("invalid tool %q (valid tools: %v)", tool, permission.Tools)), nil
	}
	operation, _ := args["operation"].(string)

	doc, err := s.loadDocument(ctx, args)
	if err != nil {
		return mcpgo.NewToolResultError(errors.Wrap(err, "cannot load agent document").Error()), nil
	}

	resp := resolveResult{
		Agent:     doc.Name,
		Tool:      tool,
		Operation: operation,
	}
	if pol, ok := doc.Definition.PermissionFor(tool); ok {
		resp.HasPolicy = true
		resolver, err := pol.Resolver()
		if err != nil {
			return mcpgo.NewToolResultError(errors.Wrap(err, "agent has an invalid permission pattern").Error()), nil
		}
		outcome := resolver.Resolve(operation)
		resp.Matched = outcome.Matched
		resp.Decision = outcome.Decision
		resp.Pattern = outcome.Pattern
	}

	return textResult(resp)
}

func (s *Server) handleListAgents(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	docs, err := s.discovery.List(ctx)
	if err != nil {
		return mcpgo.NewToolResultError(errors.Wrap(err, "failed to list agents").Error()), nil
	}

	summaries := make([]agentSummary, 0, len(docs))
	for _, doc := range docs {
		summary := agentSummary{
			Name:        doc.Name,
			Path:        doc.Path,
			Description: doc.Definition.Description,
			Mode:        doc.Definition.EffectiveMode(),
			Tools:       doc.Definition.EnabledTools(),
		}
		if doc.Definition.Hidden != nil {
			summary.Hidden = *doc.Definition.Hidden
		}
		summaries = append(summaries, summary)
	}

	return textResult(listResult{Agents: summaries, Count: len(summaries)})
}

func (s *Server) loadDocument(ctx context.Context, args map[string]any) (*agent.Document, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	switch {
	case path != "":
		return agent.Load(ctx, path)
	case content != "":
		return agent.Parse(argName(args), content)
	default:
		return nil, errors.New("either path or content is required")
	}
}

func argName(args map[string]any) string {
	if name, ok := args["name"].(string); ok && name != "" {
		return name
	}
	return "inline"
}

func textResult(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal tool result")
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
