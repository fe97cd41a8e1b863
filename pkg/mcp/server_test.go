package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gitInspectorAgent = `---
description: Runs read-only git inspection commands for status reporting.
tools:
  bash: true
permission:
  bash:
    "*": ask
    "git status*": allow
    "git status --porcelain": deny
---

# Git Inspector

Run git status variants and report the results.
`

func newTestServer(t *testing.T, dirs ...string) *Server {
	t.Helper()
	s, err := NewServer(&ServerConfig{AgentDirs: dirs})
	require.NoError(t, err)
	return s
}

func callRequest(args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func decodeResult(t *testing.T, result *mcpgo.CallToolResult, v any) {
	t.Helper()
	require.False(t, result.IsError, "tool returned error: %s", resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), v))
}

func rpcCall(t *testing.T, s *Server, id int, method, params string) map[string]any {
	t.Helper()

	msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":%q`, id, method)
	if params != "" {
		msg += `,"params":` + params
	}
	msg += `}`

	raw := s.mcpServer.HandleMessage(context.Background(), json.RawMessage(msg))
	require.NotNil(t, raw)

	data, err := json.Marshal(raw)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded["error"], "rpc error: %v", decoded["error"])
	return decoded
}

func TestListToolsOverRPC(t *testing.T) {
	s := newTestServer(t)

	rpcCall(t, s, 1, "initialize",
		`{"protocolVersion":"2024-11-05","clientInfo":{"name":"tester","version":"0.0.1"},"capabilities":{}}`)
	resp := rpcCall(t, s, 2, "tools/list", "")

	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "missing result: %v", resp)
	tools, ok := result["tools"].([]any)
	require.True(t, ok, "missing tools: %v", result)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t,
		[]string{"validate_agent", "audit_agent", "resolve_permission", "list_agents"},
		names)
}

func TestHandleValidateAgentInline(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleValidateAgent(context.Background(), callRequest(map[string]any{
		"content": "---\ndescription: Performs code review on demand.\nmode: helper\n---\n\nReview the changes.\n",
		"name":    "reviewer",
	}))
	require.NoError(t, err)

	var decoded struct {
		Valid  bool `json:"valid"`
		Report struct {
			Agent    string `json:"agent"`
			Findings []struct {
				Severity string `json:"severity"`
				Field    string `json:"field"`
			} `json:"findings"`
		} `json:"report"`
	}
	decodeResult(t, result, &decoded)

	assert.False(t, decoded.Valid)
	assert.Equal(t, "reviewer", decoded.Report.Agent)

	var modeError bool
	for _, finding := range decoded.Report.Findings {
		if finding.Severity == "error" && finding.Field == "mode" {
			modeError = true
		}
	}
	assert.True(t, modeError, "expected a blocking finding for the invalid mode")
}

func TestHandleValidateAgentPath(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "git-inspector.md")
	require.NoError(t, os.WriteFile(path, []byte(gitInspectorAgent), 0o644))

	result, err := s.handleValidateAgent(context.Background(), callRequest(map[string]any{"path": path}))
	require.NoError(t, err)

	var decoded struct {
		Valid  bool `json:"valid"`
		Report struct {
			Agent string `json:"agent"`
			Path  string `json:"path"`
		} `json:"report"`
	}
	decodeResult(t, result, &decoded)

	assert.True(t, decoded.Valid)
	assert.Equal(t, "git-inspector", decoded.Report.Agent)
	assert.Equal(t, path, decoded.Report.Path)
}

func TestHandleValidateAgentMissingFile(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "missing.md")

	result, err := s.handleValidateAgent(context.Background(), callRequest(map[string]any{"path": path}))
	require.NoError(t, err)

	var decoded struct {
		Valid  bool `json:"valid"`
		Report struct {
			Findings []struct {
				Message string `json:"message"`
			} `json:"findings"`
		} `json:"report"`
	}
	decodeResult(t, result, &decoded)

	assert.False(t, decoded.Valid)
	require.Len(t, decoded.Report.Findings, 1)
	assert.Contains(t, decoded.Report.Findings[0].Message, "File not found")
}

func TestHandleValidateAgentWithoutInput(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleValidateAgent(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "path or content")
}

func TestHandleAuditAgent(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleAuditAgent(context.Background(), callRequest(map[string]any{
		"content": "---\nmode: all\n---\n\nShort.\n",
		"name":    "bare",
	}))
	require.NoError(t, err)

	var decoded struct {
		AgentName string             `json:"agentName"`
		Overall   float64            `json:"overallScore"`
		Band      string             `json:"band"`
		RiskLevel string             `json:"riskLevel"`
		Scores    map[string]float64 `json:"scores"`
	}
	decodeResult(t, result, &decoded)

	assert.Equal(t, "bare", decoded.AgentName)
	assert.InDelta(t, 3.48, decoded.Overall, 0.001)
	assert.Equal(t, "Fair", decoded.Band)
	assert.Equal(t, "LOW", decoded.RiskLevel)
	assert.Len(t, decoded.Scores, 5)
}

func TestHandleAuditAgentUnparsable(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleAuditAgent(context.Background(), callRequest(map[string]any{
		"content": "no frontmatter here",
	}))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "cannot load agent document")
}

func TestHandleResolvePermission(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		operation string
		decision  string
		pattern   string
	}{
		{"git status --porcelain", "deny", "git status --porcelain"},
		{"git status -sb", "allow", "git status*"},
		{"ls -la", "ask", "*"},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			result, err := s.handleResolvePermission(context.Background(), callRequest(map[string]any{
				"content":   gitInspectorAgent,
				"name":      "git-inspector",
				"tool":      "bash",
				"operation": tt.operation,
			}))
			require.NoError(t, err)

			var decoded struct {
				Agent     string `json:"agent"`
				Tool      string `json:"tool"`
				HasPolicy bool   `json:"hasPolicy"`
				Matched   bool   `json:"matched"`
				Decision  string `json:"decision"`
				Pattern   string `json:"pattern"`
			}
			decodeResult(t, result, &decoded)

			assert.Equal(t, "git-inspector", decoded.Agent)
			assert.Equal(t, "bash", decoded.Tool)
			assert.True(t, decoded.HasPolicy)
			assert.True(t, decoded.Matched)
			assert.Equal(t, tt.decision, decoded.Decision)
			assert.Equal(t, tt.pattern, decoded.Pattern)
		})
	}
}

func TestHandleResolvePermissionWithoutPolicy(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleResolvePermission(context.Background(), callRequest(map[string]any{
		"content":   gitInspectorAgent,
		"tool":      "edit",
		"operation": "main.go",
	}))
	require.NoError(t, err)

	var decoded struct {
		HasPolicy bool `json:"hasPolicy"`
		Matched   bool `json:"matched"`
	}
	decodeResult(t, result, &decoded)

	assert.False(t, decoded.HasPolicy)
	assert.False(t, decoded.Matched)
	assert.NotContains(t, resultText(t, result), `"decision"`)
}

func TestHandleResolvePermissionInvalidTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleResolvePermission(context.Background(), callRequest(map[string]any{
		"content":   gitInspectorAgent,
		"tool":      "read",
		"operation": "main.go",
	}))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid tool")
}

func TestHandleListAgents(t *testing.T) {
	dir := t.TempDir()
	reviewer := `---
description: Reviews pull requests for style and correctness issues.
mode: subagent
hidden: true
tools:
  read: true
  grep: true
---

Review the diff.
`
	helper := `---
description: Answers quick questions about the codebase layout.
---

Answer questions.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reviewer.md"), []byte(reviewer), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.md"), []byte(helper), 0o644))

	s := newTestServer(t, dir)
	result, err := s.handleListAgents(context.Background(), mcpgo.CallToolRequest{})
	require.NoError(t, err)

	var decoded struct {
		Agents []struct {
			Name   string   `json:"name"`
			Mode   string   `json:"mode"`
			Tools  []string `json:"tools"`
			Hidden bool     `json:"hidden"`
		} `json:"agents"`
		Count int `json:"count"`
	}
	decodeResult(t, result, &decoded)

	assert.Equal(t, 2, decoded.Count)
	require.Len(t, decoded.Agents, 2)
	assert.Equal(t, "helper", decoded.Agents[0].Name)
	assert.Equal(t, "all", decoded.Agents[0].Mode)
	assert.Equal(t, "reviewer", decoded.Agents[1].Name)
	assert.Equal(t, "subagent", decoded.Agents[1].Mode)
	assert.True(t, decoded.Agents[1].Hidden)
	assert.ElementsMatch(t, []string{"read", "grep"}, decoded.Agents[1].Tools)
}
