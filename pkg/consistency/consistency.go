// Package consistency checks a documentation tree for agent-format drift:
// deprecated frontmatter fields inside YAML examples, the plural
// "permissions:" misspelling, stale agent directory paths, broken relative
// links, and duplicate section numbers in SKILL.md.
package consistency

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/telemetry"
	"github.com/jingkaihe/agentlint/pkg/validate"
)

// correctAgentPath is the directory documentation should point readers to.
const correctAgentPath = "~/.config/opencode/agent/"

// wrongAgentPaths are directory spellings that predate the current layout or
// belong to other products.
var wrongAgentPaths = []string{
	"~/.config/opencode/agents/",
	"~/.config/claude/agent/",
	"~/.claude/agent/",
}

var deprecatedFieldSuggestions = map[string]string{
	"name":        "Remove 'name:' - agent name comes from the filename",
	"skills":      "Remove 'skills:' - skills are loaded at runtime via the skill tool. Document when to load skills in agent instructions instead.",
	"permissions": "Rename to 'tools:' for tool enablement, or 'permission:' for access control patterns",
}

var (
	yamlFencePattern = regexp.MustCompile("(?is)```ya?ml[ \t]*\r?\n(.*?)```")
	linkPattern      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	numberedHeading  = regexp.MustCompile(`^(#{2,4})\s*([0-9]+)\.\s+(.+)`)
)

// Issue is one consistency problem found in the tree.
type Issue struct {
	Severity   validate.Severity `json:"severity"`
	File       string            `json:"file"`
	Line       int               `json:"line,omitempty"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// Report is the outcome of checking one documentation tree.
type Report struct {
	Root              string  `json:"root"`
	FilesChecked      int     `json:"filesChecked"`
	YAMLBlocksChecked int     `json:"yamlBlocksChecked"`
	Issues            []Issue `json:"issues"`
}

// Errors returns the blocking issues.
func (r *Report) Errors() []Issue {
	return r.filter(validate.SeverityError)
}

// Warnings returns the advisory issues.
func (r *Report) Warnings() []Issue {
	return r.filter(validate.SeverityWarning)
}

// Consistent reports whether the tree has no blocking issues.
func (r *Report) Consistent() bool {
	return len(r.Errors()) == 0
}

func (r *Report) filter(severity validate.Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

func (r *Report) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Checker walks documentation trees.
type Checker struct{}

// New creates a Checker.
func New() *Checker {
	return &Checker{}
}

// CheckTree checks every markdown file under root and returns the report.
// Issues are ordered by file, then by line.
func (c *Checker) CheckTree(ctx context.Context, root string) (*Report, error) {
	var report *Report
	err := telemetry.WithSpan(ctx, "consistency.check_tree", func(ctx context.Context) error {
		var err error
		report, err = c.checkTree(ctx, root)
		return err
	}, attribute.String("tree.root", root))
	return report, err
}

func (c *Checker) checkTree(ctx context.Context, root string) (*Report, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %q", root)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, errors.Wrapf(err, "cannot check %q", root)
	}

	files, err := doublestar.Glob(os.DirFS(absRoot), "**/*.md")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list markdown files")
	}

	report := &Report{Root: root, FilesChecked: len(files)}
	for _, rel := range files {
		c.checkFile(report, absRoot, rel)
	}
	c.checkLinks(report, absRoot, files)
	c.checkSectionNumbers(report, absRoot)

	telemetry.SetAttributes(ctx,
		attribute.Int("tree.files", len(files)),
		attribute.Int("tree.issues", len(report.Issues)),
	)
	logger.G(ctx).WithField("files", len(files)).
		WithField("issues", len(report.Issues)).
		Debug("consistency check complete")
	return report, nil
}

func (c *Checker) checkFile(report *Report, absRoot, rel string) {
	content, err := os.ReadFile(filepath.Join(absRoot, rel))
	if err != nil {
		report.add(Issue{
			Severity: validate.SeverityError,
			File:     rel,
			Message:  fmt.Sprintf("Could not read file: %v", err),
		})
		return
	}

	text := string(content)
	lines := strings.Split(text, "\n")

	c.checkYAMLBlocks(report, rel, text)
	c.checkAgentPaths(report, rel, lines)
	c.checkSkillsReferences(report, rel, lines)
}

// checkYAMLBlocks scans fenced yaml examples for deprecated fields at any
// indentation and verifies each example actually parses.
func (c *Checker) checkYAMLBlocks(report *Report, rel, text string) {
	for _, match := range yamlFencePattern.FindAllStringSubmatchIndex(text, -1) {
		report.YAMLBlocksChecked++
		block := text[match[2]:match[3]]
		fenceLine := strings.Count(text[:match[0]], "\n") + 1

		permissionsFlagged := false
		for i, line := range strings.Split(block, "\n") {
			key := strings.TrimLeft(line, " \t")
			for _, field := range agent.DeprecatedFields {
				if strings.HasPrefix(key, field+":") {
					report.add(Issue{
						Severity:   validate.SeverityError,
						File:       rel,
						Line:       fenceLine + 1 + i,
						Message:    fmt.Sprintf("Deprecated field '%s:' found in YAML example", field),
						Suggestion: deprecatedFieldSuggestions[field],
					})
				}
			}
			if !permissionsFlagged && strings.HasPrefix(key, "permissions:") {
				permissionsFlagged = true
				report.add(Issue{
					Severity:   validate.SeverityError,
					File:       rel,
					Line:       fenceLine + 1 + i,
					Message:    "Field 'permissions:' should be 'permission:' (singular)",
					Suggestion: "Change 'permissions:' to 'permission:'",
				})
			}
		}

		// Examples that carry a full agent file start with a frontmatter
		// document; decoding the first document covers both forms.
		var node yaml.Node
		if err := yaml.NewDecoder(strings.NewReader(block)).Decode(&node); err != nil && !errors.Is(err, io.EOF) {
			report.add(Issue{
				Severity:   validate.SeverityWarning,
				File:       rel,
				Line:       fenceLine,
				Message:    fmt.Sprintf("YAML example does not parse: %v", err),
				Suggestion: "Fix the example so it can be copied as-is",
			})
		}
	}
}

func (c *Checker) checkAgentPaths(report *Report, rel string, lines []string) {
	for i, line := range lines {
		for _, wrong := range wrongAgentPaths {
			if strings.Contains(line, wrong) {
				report.add(Issue{
					Severity:   validate.SeverityError,
					File:       rel,
					Line:       i + 1,
					Message:    fmt.Sprintf("Incorrect path '%s' found", wrong),
					Suggestion: fmt.Sprintf("Change to '%s'", correctAgentPath),
				})
			}
		}
	}
}

// checkSkillsReferences flags prose that appears to tell readers to put a
// skills: entry in frontmatter. Mentions that explain the deprecation are
// left alone.
func (c *Checker) checkSkillsReferences(report *Report, rel string, lines []string) {
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if !strings.Contains(strings.ToLower(line), "skills:") {
			continue
		}

		start := i - 2
		if start < 0 {
			start = 0
		}
		end := i + 4
		if end > len(lines) {
			end = len(lines)
		}
		context := strings.ToLower(strings.Join(lines[start:end], " "))

		if strings.Contains(context, "deprecated") ||
			strings.Contains(context, "runtime") ||
			strings.Contains(context, "not") {
			continue
		}
		if strings.Contains(context, "frontmatter") ||
			strings.Contains(context, "yaml") ||
			strings.Contains(context, "add") {
			report.add(Issue{
				Severity:   validate.SeverityWarning,
				File:       rel,
				Line:       i + 1,
				Message:    "Possible reference to deprecated 'skills:' field usage",
				Suggestion: "Verify this doesn't suggest using skills: in frontmatter",
			})
		}
	}
}

func (c *Checker) checkLinks(report *Report, absRoot string, files []string) {
	for _, rel := range files {
		content, err := os.ReadFile(filepath.Join(absRoot, rel))
		if err != nil {
			continue
		}
		text := string(content)

		for _, match := range linkPattern.FindAllStringSubmatchIndex(text, -1) {
			linkText := text[match[2]:match[3]]
			target := text[match[4]:match[5]]

			if strings.HasPrefix(target, "http://") ||
				strings.HasPrefix(target, "https://") ||
				strings.HasPrefix(target, "#") {
				continue
			}
			target = strings.TrimPrefix(target, "./")

			stat := target
			if idx := strings.Index(stat, "#"); idx >= 0 {
				stat = stat[:idx]
			}
			if stat == "" {
				continue
			}

			resolved := filepath.Join(absRoot, filepath.Dir(rel), filepath.FromSlash(stat))
			relToRoot, err := filepath.Rel(absRoot, resolved)
			if err != nil || strings.HasPrefix(relToRoot, "..") {
				continue
			}

			if _, err := os.Stat(resolved); err != nil {
				report.add(Issue{
					Severity:   validate.SeverityWarning,
					File:       rel,
					Line:       strings.Count(text[:match[0]], "\n") + 1,
					Message:    fmt.Sprintf("Broken link: [%s](%s)", linkText, target),
					Suggestion: fmt.Sprintf("Verify the file exists at: %s", filepath.ToSlash(relToRoot)),
				})
			}
		}
	}
}

// checkSectionNumbers flags duplicate numbered headings in SKILL.md, the
// index document of a skill tree. Trees without one are fine.
func (c *Checker) checkSectionNumbers(report *Report, absRoot string) {
	content, err := os.ReadFile(filepath.Join(absRoot, "SKILL.md"))
	if err != nil {
		return
	}

	seenPerLevel := map[int]map[string]int{}
	for i, line := range strings.Split(string(content), "\n") {
		m := numberedHeading.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		level := len(m[1])
		number := m[2]

		seen := seenPerLevel[level]
		if seen == nil {
			seen = map[string]int{}
			seenPerLevel[level] = seen
		}
		if first, ok := seen[number]; ok {
			report.add(Issue{
				Severity:   validate.SeverityError,
				File:       "SKILL.md",
				Line:       i + 1,
				Message:    fmt.Sprintf("Duplicate section number '%s.' (first seen at line %d)", number, first),
				Suggestion: "Renumber sections sequentially",
			})
			continue
		}
		seen[number] = i + 1
	}
}
