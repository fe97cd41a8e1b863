package consistency

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentlint/pkg/validate"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func checkTree(t *testing.T, root string) *Report {
	t.Helper()
	report, err := New().CheckTree(context.Background(), root)
	require.NoError(t, err)
	return report
}

func TestCheckTreeClean(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "SKILL.md", "# Skill\n\n## 1. Overview\n\n## 2. Usage\n\nSee [the reference](references/fields.md).\n")
	writeDoc(t, root, "references/fields.md",
		"# Fields\n\nStore agents under `~/.config/opencode/agent/`.\n\n"+
			"```yaml\ndescription: An example agent.\nmode: subagent\n```\n")

	report := checkTree(t, root)

	assert.True(t, report.Consistent())
	assert.Empty(t, report.Issues)
	assert.Equal(t, 2, report.FilesChecked)
	assert.Equal(t, 1, report.YAMLBlocksChecked)
}

func TestCheckTreeDeprecatedFieldsInYAML(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "guide.md",
		"# Guide\n\nExample:\n\n"+
			"```yaml\nname: helper\ndescription: An example.\npermissions:\n  bash: ask\n```\n")

	report := checkTree(t, root)

	require.False(t, report.Consistent())
	errs := report.Errors()
	require.Len(t, errs, 3)

	assert.Equal(t, "Deprecated field 'name:' found in YAML example", errs[0].Message)
	assert.Equal(t, 6, errs[0].Line)
	assert.Contains(t, errs[0].Suggestion, "agent name comes from the filename")

	assert.Equal(t, "Deprecated field 'permissions:' found in YAML example", errs[1].Message)
	assert.Equal(t, 8, errs[1].Line)

	assert.Equal(t, "Field 'permissions:' should be 'permission:' (singular)", errs[2].Message)
	assert.Equal(t, 8, errs[2].Line)
	assert.Equal(t, "Change 'permissions:' to 'permission:'", errs[2].Suggestion)
}

func TestCheckTreeIndentedDeprecatedField(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "guide.md",
		"```yaml\nagent:\n  skills:\n    - git\n```\n")

	report := checkTree(t, root)

	require.Len(t, report.Errors(), 1)
	assert.Equal(t, "Deprecated field 'skills:' found in YAML example", report.Errors()[0].Message)
	assert.Equal(t, 3, report.Errors()[0].Line)
}

func TestCheckTreeUnparsableYAMLBlock(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "guide.md",
		"# Guide\n\n```yaml\ndescription: [unclosed\n```\n")

	report := checkTree(t, root)

	assert.True(t, report.Consistent())
	require.Len(t, report.Warnings(), 1)
	assert.Contains(t, report.Warnings()[0].Message, "YAML example does not parse")
	assert.Equal(t, 3, report.Warnings()[0].Line)
	assert.Equal(t, 1, report.YAMLBlocksChecked)
}

func TestCheckTreeIgnoresNonYAMLFences(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "guide.md",
		"```bash\nname: not-yaml-here\n```\n\n```yaml\nmode: all\n```\n")

	report := checkTree(t, root)

	assert.Empty(t, report.Issues)
	assert.Equal(t, 1, report.YAMLBlocksChecked)
}

func TestCheckTreeWrongAgentPath(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "install.md",
		"# Install\n\nCopy the file into `~/.config/opencode/agents/` and restart.\n")

	report := checkTree(t, root)

	require.False(t, report.Consistent())
	issue := report.Errors()[0]
	assert.Equal(t, "Incorrect path '~/.config/opencode/agents/' found", issue.Message)
	assert.Equal(t, 3, issue.Line)
	assert.Equal(t, "Change to '~/.config/opencode/agent/'", issue.Suggestion)
}

func TestCheckTreeSkillsProseReference(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "howto.md",
		"# Howto\n\nAdd skills: git to your frontmatter for git access.\n")

	report := checkTree(t, root)

	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, "Possible reference to deprecated 'skills:' field usage", report.Warnings()[0].Message)
	assert.Equal(t, 3, report.Warnings()[0].Line)
}

func TestCheckTreeSkillsDeprecationExplanationAllowed(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "howto.md",
		"# Howto\n\nThe skills: field is deprecated and ignored by the loader.\n")

	report := checkTree(t, root)

	assert.Empty(t, report.Issues)
}

func TestCheckTreeLinks(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "SKILL.md", "# Skill\n\n## 1. Overview\n")
	writeDoc(t, root, "guide.md", strings.Join([]string{
		"# Guide",
		"",
		"Good: [skill](SKILL.md) and [site](https://example.com) and [top](#top).",
		"Anchored: [overview](SKILL.md#1-overview).",
		"Relative: [skill again](./SKILL.md).",
		"Bad: [setup](missing.md).",
		"",
	}, "\n"))

	report := checkTree(t, root)

	require.Len(t, report.Warnings(), 1)
	issue := report.Warnings()[0]
	assert.Equal(t, "Broken link: [setup](missing.md)", issue.Message)
	assert.Equal(t, "guide.md", issue.File)
	assert.Equal(t, 6, issue.Line)
	assert.Equal(t, "Verify the file exists at: missing.md", issue.Suggestion)
}

func TestCheckTreeLinkFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "SKILL.md", "# Skill\n")
	writeDoc(t, root, "references/fields.md", "Up: [skill](../SKILL.md). Gone: [x](../nope.md).\n")

	report := checkTree(t, root)

	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, "references/fields.md", report.Warnings()[0].File)
	assert.Equal(t, "Verify the file exists at: nope.md", report.Warnings()[0].Suggestion)
}

func TestCheckTreeDuplicateSectionNumbers(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "SKILL.md", strings.Join([]string{
		"# Skill",
		"",
		"## 1. First",
		"## 2. Second",
		"## 2. Duplicate",
		"### 1. Nested level is tracked separately",
		"",
	}, "\n"))

	report := checkTree(t, root)

	require.False(t, report.Consistent())
	require.Len(t, report.Errors(), 1)
	issue := report.Errors()[0]
	assert.Equal(t, "SKILL.md", issue.File)
	assert.Equal(t, 5, issue.Line)
	assert.Equal(t, "Duplicate section number '2.' (first seen at line 4)", issue.Message)
}

func TestCheckTreeMissingRoot(t *testing.T) {
	_, err := New().CheckTree(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCheckTreeIgnoresNonMarkdown(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "notes.txt", "name: helper in a text file is fine\n")
	writeDoc(t, root, "doc.md", "# Doc\n")

	report := checkTree(t, root)

	assert.Equal(t, 1, report.FilesChecked)
	assert.Empty(t, report.Issues)
}

func TestReportSeverityHelpers(t *testing.T) {
	report := &Report{Issues: []Issue{
		{Severity: validate.SeverityError, Message: "e"},
		{Severity: validate.SeverityWarning, Message: "w"},
	}}

	assert.Len(t, report.Errors(), 1)
	assert.Len(t, report.Warnings(), 1)
	assert.False(t, report.Consistent())
}
