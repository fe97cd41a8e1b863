package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeBody(t *testing.T) {
	body := "# Title\n\n" +
		"## Overview\n\nIntro text.\n\n" +
		"## Workflow\n\n### Step One\n\nDo the thing:\n\n" +
		"```bash\nls -la\n```\n\n" +
		"```\nplain block\n```\n"

	stats := AnalyzeBody(body)

	// Level 1 headings are the title, not a section.
	assert.Equal(t, 2, stats.Sections)
	assert.Equal(t, 3, stats.Headings)
	assert.Equal(t, 2, stats.CodeFences)
	assert.Greater(t, stats.Lines, 10)
}

func TestAnalyzeBodyEmpty(t *testing.T) {
	assert.Equal(t, BodyStats{}, AnalyzeBody(""))
	assert.Equal(t, BodyStats{}, AnalyzeBody("   \n  \n"))
}

func TestAnalyzeBodyNoStructure(t *testing.T) {
	stats := AnalyzeBody("Just a single paragraph of instructions with no headings.")

	assert.Equal(t, 1, stats.Lines)
	assert.Equal(t, 0, stats.Sections)
	assert.Equal(t, 0, stats.Headings)
	assert.Equal(t, 0, stats.CodeFences)
}

func TestContainsAny(t *testing.T) {
	body := "ALWAYS verify the target before deleting. Never skip the backup."

	assert.True(t, ContainsAny(body, "always"))
	assert.True(t, ContainsAny(body, "missing", "backup"))
	assert.False(t, ContainsAny(body, "rollback", "snapshot"))
	assert.False(t, ContainsAny(""))
}

func TestCountOccurrences(t *testing.T) {
	body := "Check the file, verify the checksum, and confirm with the user."

	assert.Equal(t, 3, CountOccurrences(body, "check", "verify", "confirm"))
	assert.Equal(t, 1, CountOccurrences(body, "verify", "backup", "snapshot"))
	assert.Equal(t, 0, CountOccurrences(body))
}
