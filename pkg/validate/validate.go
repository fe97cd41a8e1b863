// Package validate checks agent definitions against the frontmatter schema
// and the body conventions agents are expected to follow. Checks run
// independently and accumulate findings; nothing short-circuits except a
// document that cannot be parsed at all.
package validate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/permission"
)

const (
	maxDescriptionChars   = 1024
	shortDescriptionChars = 20
	manyToolsThreshold    = 9
	minSafetyKeywords     = 3
)

// triggerPhrases are the wordings hosts look for when deciding to route
// work to an agent.
var triggerPhrases = []string{"use when", "use for", "invoke when", "use proactively"}

// safetyKeywords indicate the body documents some form of caution around
// command execution.
var safetyKeywords = []string{
	"safety", "confirm", "verification", "backup",
	"always", "never", "before", "check", "verify",
}

type deprecatedGuidance struct {
	message    string
	suggestion string
}

var deprecatedFields = map[string]deprecatedGuidance{
	"name": {
		message:    "Deprecated field 'name' is ignored: the agent name comes from the filename",
		suggestion: "Remove 'name:' and rename the file instead",
	},
	"skills": {
		message:    "Deprecated field 'skills' is ignored: skills are loaded at runtime via the skill tool",
		suggestion: "Remove 'skills:' and let the agent invoke skills with the skill tool",
	},
	"permissions": {
		message:    "Deprecated field 'permissions' is ignored: the supported field is 'permission'",
		suggestion: "Rename 'permissions:' to 'permission:'",
	},
}

// Validator checks agent documents against the definition schema.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Check validates a parsed document and returns the report. Checking is
// pure: the same document always yields the same report.
func (v *Validator) Check(doc *agent.Document) *Report {
	report := &Report{Agent: doc.Name, Path: doc.Path}

	v.checkDescription(report, doc)
	v.checkMode(report, doc)
	v.checkTools(report, doc)
	v.checkPermission(report, doc)
	v.checkModel(report, doc)
	v.checkTemperature(report, doc)
	v.checkMaxSteps(report, doc)
	v.checkHidden(report, doc)
	v.checkDeprecated(report, doc)
	v.checkName(report, doc)
	v.checkBody(report, doc)

	return report
}

// CheckFile loads and validates the agent definition at path. Load
// failures become a single blocking finding rather than an error, so every
// input yields a report.
func (v *Validator) CheckFile(ctx context.Context, path string) *Report {
	doc, err := agent.Load(ctx, path)
	if err != nil {
		logger.G(ctx).WithField("path", path).WithError(err).Debug("agent file failed to load")
		return reportForLoadError(path, err)
	}
	return v.Check(doc)
}

// CheckAll validates every path and returns one report per input. Load
// failures appear both as blocking findings in the corresponding report and
// aggregated in the returned error.
func (v *Validator) CheckAll(ctx context.Context, paths []string) ([]*Report, error) {
	var merr *multierror.Error
	reports := make([]*Report, 0, len(paths))

	for _, path := range paths {
		doc, err := agent.Load(ctx, path)
		if err != nil {
			merr = multierror.Append(merr, err)
			reports = append(reports, reportForLoadError(path, err))
			continue
		}
		reports = append(reports, v.Check(doc))
	}

	return reports, merr.ErrorOrNil()
}

func reportForLoadError(path string, err error) *Report {
	report := &Report{Agent: agent.NameFromPath(path), Path: path}
	switch {
	case errors.Is(err, os.ErrNotExist):
		report.add(SeverityError, "", fmt.Sprintf("File not found: %s", path))
	case errors.Is(err, agent.ErrNoFrontmatter):
		report.add(SeverityError, "frontmatter", "Missing frontmatter (file must start with ---)")
	default:
		report.add(SeverityError, "frontmatter", fmt.Sprintf("Cannot parse agent file: %v", errors.Cause(err)))
	}
	return report
}

func (v *Validator) checkDescription(report *Report, doc *agent.Document) {
	raw := doc.Meta["description"]
	if raw == nil || raw == "" {
		report.add(SeverityError, "description", "Missing required field: description")
		return
	}

	desc, ok := raw.(string)
	if !ok {
		report.add(SeverityError, "description", "'description' must be a string")
		return
	}

	length := utf8.RuneCountInString(desc)
	if length > maxDescriptionChars {
		report.add(SeverityError, "description",
			fmt.Sprintf("Description exceeds %d chars (got %d)", maxDescriptionChars, length))
	}
	if length < shortDescriptionChars {
		report.add(SeverityWarning, "description",
			fmt.Sprintf("Description is very short (%d chars). Add more detail.", length))
	}

	if !strings.Contains(desc, "<example>") {
		report.add(SeverityWarning, "description",
			"Description missing <example> blocks. Consider adding usage examples.")
	}

	if !agent.ContainsAny(desc, triggerPhrases...) {
		report.add(SeverityInfo, "description",
			"Consider adding trigger keywords like 'Use when...' to the description")
	}
}

func (v *Validator) checkMode(report *Report, doc *agent.Document) {
	raw := doc.Meta["mode"]
	if raw == nil {
		report.add(SeverityInfo, "mode", "No 'mode' specified (defaults to 'all')")
		return
	}

	mode, ok := raw.(string)
	if !ok || !agent.ValidMode(mode) {
		report.add(SeverityError, "mode",
			fmt.Sprintf("Invalid mode '%v'. Must be: %s", raw, strings.Join(agent.Modes, ", ")))
	}
}

func (v *Validator) checkTools(report *Report, doc *agent.Document) {
	raw := doc.Meta["tools"]
	if raw == nil {
		report.add(SeverityInfo, "tools", "No 'tools' specified (uses global config)")
		return
	}

	block, _ := doc.Item("tools")
	entries, ok := block.(yaml.MapSlice)
	if !ok {
		report.add(SeverityError, "tools", "'tools' must be a mapping of tool names to booleans")
		return
	}

	var invalid []string
	enabled := map[string]bool{}
	enabledCount := 0

	for _, item := range entries {
		name := fmt.Sprintf("%v", item.Key)
		if !agent.ValidToolName(name) {
			invalid = append(invalid, name)
		}

		value, ok := item.Value.(bool)
		if !ok {
			report.add(SeverityError, "tools."+name,
				fmt.Sprintf("Tool '%s' must be true/false (boolean), not '%v'", name, item.Value))
			continue
		}
		enabled[name] = value
		if value {
			enabledCount++
		}
	}

	if len(invalid) > 0 {
		report.add(SeverityError, "tools",
			fmt.Sprintf("Invalid tools: %s", strings.Join(invalid, ", ")))
	}

	if enabledCount >= manyToolsThreshold {
		report.add(SeverityWarning, "tools",
			fmt.Sprintf("Agent has %d tools enabled. Consider if all are necessary.", enabledCount))
	}
	if enabled["write"] && !enabled["read"] {
		report.add(SeverityWarning, "tools.write",
			"Agent has 'write' but not 'read'. Consider adding read.")
	}
	if enabled["edit"] && !enabled["read"] {
		report.add(SeverityWarning, "tools.edit",
			"Agent has 'edit' but not 'read'. Consider adding read.")
	}
}

func (v *Validator) checkPermission(report *Report, doc *agent.Document) {
	raw := doc.Meta["permission"]
	if raw != nil {
		block, _ := doc.Item("permission")
		entries, ok := block.(yaml.MapSlice)
		if !ok {
			report.add(SeverityError, "permission",
				"'permission' must be a mapping of tool names to decisions")
		} else {
			for _, entry := range entries {
				v.checkPermissionEntry(report, entry)
			}
		}
	}

	// bash without any permission rules is the riskiest configuration a
	// definition can carry, so it gets its own severity.
	if doc.Definition.ToolEnabled("bash") && !hasPermissionKey(doc, "bash") {
		report.addWithSuggestion(SeverityRisk, "permission.bash",
			"Agent has 'bash' enabled but no bash permission rules configured",
			`Add a permission.bash block with a default "*": ask rule`)
	}
}

func (v *Validator) checkPermissionEntry(report *Report, entry yaml.MapItem) {
	tool := fmt.Sprintf("%v", entry.Key)
	field := "permission." + tool

	if !permission.ValidTool(tool) {
		report.add(SeverityWarning, field, fmt.Sprintf("Unusual permission key '%s'", tool))
	}

	switch value := entry.Value.(type) {
	case string:
		if _, err := permission.ParseDecision(value); err != nil {
			report.add(SeverityError, field,
				fmt.Sprintf("Permission '%s' has invalid value '%s'. Must be: allow, ask, deny", tool, value))
		}
	case yaml.MapSlice:
		if permission.ValidTool(tool) && !permission.PatternCapable(tool) {
			report.add(SeverityError, field,
				fmt.Sprintf("Permission '%s' does not accept pattern rules (only %s do)",
					tool, strings.Join(permission.PatternTools, ", ")))
		}

		starIndex := -1
		for i, rule := range value {
			pattern := fmt.Sprintf("%v", rule.Key)
			if err := permission.CheckPattern(pattern); err != nil {
				report.add(SeverityError, field,
					fmt.Sprintf("Permission '%s' pattern '%s' is not a valid glob", tool, pattern))
			}

			level, ok := rule.Value.(string)
			if !ok {
				report.add(SeverityError, field,
					fmt.Sprintf("Permission '%s' pattern '%s' has invalid value '%v'", tool, pattern, rule.Value))
				continue
			}
			if _, err := permission.ParseDecision(level); err != nil {
				report.add(SeverityError, field,
					fmt.Sprintf("Permission '%s' pattern '%s' has invalid value '%s'", tool, pattern, level))
			}

			if pattern == "*" {
				starIndex = i
			}
		}

		if starIndex > 0 {
			report.addWithSuggestion(SeverityWarning, field,
				fmt.Sprintf("Permission '%s': %d rule(s) before the catch-all '*' never take effect (last match wins)",
					tool, starIndex),
				`List "*" first so later, more specific rules override it`)
		}
	default:
		report.add(SeverityError, field,
			fmt.Sprintf("Permission '%s' must be a decision or a mapping of patterns to decisions", tool))
	}
}

func hasPermissionKey(doc *agent.Document, tool string) bool {
	block, ok := doc.Item("permission")
	if !ok {
		return false
	}
	entries, ok := block.(yaml.MapSlice)
	if !ok {
		return false
	}
	for _, entry := range entries {
		if fmt.Sprintf("%v", entry.Key) == tool {
			return true
		}
	}
	return false
}

func (v *Validator) checkModel(report *Report, doc *agent.Document) {
	raw := doc.Meta["model"]
	if raw == nil || raw == "" {
		return
	}

	model, ok := raw.(string)
	if !ok {
		report.add(SeverityError, "model", "'model' must be a string")
		return
	}
	if !strings.Contains(model, "/") {
		report.add(SeverityWarning, "model",
			fmt.Sprintf("Model '%s' should be in format 'provider/model-id'", model))
	}
}

func (v *Validator) checkTemperature(report *Report, doc *agent.Document) {
	raw := doc.Meta["temperature"]
	if raw == nil {
		return
	}

	var value float64
	switch t := raw.(type) {
	case int:
		value = float64(t)
	case int64:
		value = float64(t)
	case float64:
		value = t
	default:
		report.add(SeverityError, "temperature", "'temperature' must be a number")
		return
	}

	if value < 0.0 || value > 1.0 {
		report.add(SeverityError, "temperature",
			fmt.Sprintf("'temperature' must be between 0.0 and 1.0 (got %v)", raw))
	}
}

func (v *Validator) checkMaxSteps(report *Report, doc *agent.Document) {
	raw := doc.Meta["maxSteps"]
	if raw == nil {
		return
	}

	var value int64
	switch n := raw.(type) {
	case int:
		value = int64(n)
	case int64:
		value = n
	default:
		report.add(SeverityError, "maxSteps", "'maxSteps' must be an integer")
		return
	}

	if value < 1 {
		report.add(SeverityError, "maxSteps", "'maxSteps' must be at least 1")
	}
}

func (v *Validator) checkHidden(report *Report, doc *agent.Document) {
	raw := doc.Meta["hidden"]
	if raw == nil {
		return
	}

	value, ok := raw.(bool)
	if !ok {
		report.add(SeverityError, "hidden", "'hidden' must be true/false (boolean)")
		return
	}

	if value && doc.Definition.Mode != agent.ModeSubagent {
		report.add(SeverityWarning, "hidden", "'hidden' is only meaningful for mode: subagent")
	}
}

func (v *Validator) checkDeprecated(report *Report, doc *agent.Document) {
	for _, field := range agent.DeprecatedFields {
		if !doc.HasField(field) {
			continue
		}
		guidance := deprecatedFields[field]
		report.addWithSuggestion(SeverityError, field, guidance.message, guidance.suggestion)
	}
}

func (v *Validator) checkName(report *Report, doc *agent.Document) {
	if doc.Name == "" {
		return
	}
	if !agent.ValidName(doc.Name) {
		report.addWithSuggestion(SeverityError, "filename",
			fmt.Sprintf("Agent name '%s' must be lowercase alphanumeric with hyphens (1-64 chars)", doc.Name),
			"Use lowercase letters, digits and single hyphens, e.g. code-reviewer.md")
	}
}

func (v *Validator) checkBody(report *Report, doc *agent.Document) {
	if strings.TrimSpace(doc.Body) == "" {
		report.add(SeverityError, "body", "Agent has no instruction content after frontmatter")
		return
	}

	stats := agent.AnalyzeBody(doc.Body)

	if doc.Definition.ToolEnabled("bash") &&
		agent.CountOccurrences(doc.Body, safetyKeywords...) < minSafetyKeywords {
		report.add(SeverityWarning, "body",
			"Agent has 'bash' enabled but no clear safety protocols found")
	}

	if stats.Headings == 0 {
		report.add(SeverityWarning, "body",
			"No sections found (no ## headings). Consider organizing with headings.")
	}
	if stats.CodeFences == 0 {
		report.add(SeverityInfo, "body",
			"No code blocks found. Consider adding command examples.")
	}
}
