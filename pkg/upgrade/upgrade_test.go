package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentlint/pkg/agent"
)

const legacyAgent = `---
name: old-reviewer
description: Reviews staged changes for style and correctness issues.
skills:
  - code-review
  - security-basics
permissions:
  bash:
    "git status *": allow
    "*": ask
# subagent so it stays out of the primary agent list
mode: subagent
---

# Reviewer

Review the staged changes one hunk at a time.
`

const upgradedAgent = `---
description: Reviews staged changes for style and correctness issues.
permission:
  bash:
    "git status *": allow
    "*": ask
# subagent so it stays out of the primary agent list
mode: subagent
---

# Reviewer

Review the staged changes one hunk at a time.
`

func TestPlanLegacyAgent(t *testing.T) {
	doc, err := agent.Parse("old-reviewer", legacyAgent)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.True(t, plan.Changed)
	assert.Equal(t, "old-reviewer", plan.Agent)
	assert.Equal(t, []string{
		"remove deprecated field 'name' (the agent name comes from the filename)",
		"remove deprecated field 'skills' (skills load at runtime via the skill tool)",
		"rename 'permissions' to 'permission'",
	}, plan.Actions)
	assert.Equal(t, legacyAgent, plan.Before)
	assert.Equal(t, upgradedAgent, plan.After)
}

func TestPlanDiff(t *testing.T) {
	doc, err := agent.Parse("old-reviewer", legacyAgent)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.Contains(t, plan.Diff, "--- old-reviewer.md")
	assert.Contains(t, plan.Diff, "+++ old-reviewer.md")
	assert.Contains(t, plan.Diff, "-name: old-reviewer")
	assert.Contains(t, plan.Diff, "-permissions:")
	assert.Contains(t, plan.Diff, "+permission:")
}

func TestPlanUpgradedParses(t *testing.T) {
	doc, err := agent.Parse("old-reviewer", legacyAgent)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	upgraded, err := agent.Parse("old-reviewer", plan.After)
	require.NoError(t, err)
	assert.False(t, upgraded.HasField("name"))
	assert.False(t, upgraded.HasField("skills"))
	assert.False(t, upgraded.HasField("permissions"))
	require.Len(t, upgraded.Definition.Permission, 1)
	pol := upgraded.Definition.Permission[0]
	assert.Equal(t, "bash", pol.Tool)
	require.Len(t, pol.Rules, 2)
	assert.Equal(t, "git status *", pol.Rules[0].Pattern)
	assert.Equal(t, agent.ModeSubagent, upgraded.EffectiveMode())
}

func TestPlanRenamesInlinePermissions(t *testing.T) {
	doc, err := agent.Parse("runner", "---\ndescription: Runs things.\npermissions: {bash: ask}\n---\n\nBody.\n")
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"rename 'permissions' to 'permission'"}, plan.Actions)
	assert.Contains(t, plan.After, "permission: {bash: ask}\n")
	assert.NotContains(t, plan.After, "permissions:")
}

func TestPlanDropsPermissionsWhenPermissionExists(t *testing.T) {
	source := `---
description: Migrated agent that still carries both spellings.
permission:
  bash:
    "*": ask
permissions:
  bash:
    "*": allow
---

Body.
`
	doc, err := agent.Parse("migrated", source)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.Equal(t, []string{"remove 'permissions' (an explicit 'permission' block already exists)"}, plan.Actions)
	assert.NotContains(t, plan.After, "permissions:")
	assert.NotContains(t, plan.After, "allow")

	upgraded, err := agent.Parse("migrated", plan.After)
	require.NoError(t, err)
	require.Len(t, upgraded.Definition.Permission, 1)
	require.Len(t, upgraded.Definition.Permission[0].Rules, 1)
	assert.Equal(t, "*", upgraded.Definition.Permission[0].Rules[0].Pattern)
}

func TestPlanNoChanges(t *testing.T) {
	source := "---\ndescription: Already current.\nmode: subagent\n---\n\nBody.\n"
	doc, err := agent.Parse("current", source)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.False(t, plan.Changed)
	assert.Empty(t, plan.Actions)
	assert.Empty(t, plan.Diff)
	assert.Equal(t, source, plan.Before)
	assert.Equal(t, source, plan.After)
}

func TestPlanFileAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old-reviewer.md")
	require.NoError(t, os.WriteFile(path, []byte(legacyAgent), 0o644))

	plan, err := New().PlanFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, plan.Path)
	assert.True(t, plan.Changed)
	assert.Contains(t, plan.Diff, "--- "+path)

	require.NoError(t, plan.Apply())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, upgradedAgent, string(content))

	doc, err := agent.Load(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, doc.HasField("name"))
	assert.False(t, doc.HasField("skills"))
	assert.True(t, doc.HasField("permission"))
}

func TestApplyWithoutPath(t *testing.T) {
	doc, err := agent.Parse("old-reviewer", legacyAgent)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	err = plan.Apply()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file path")
}

func TestApplyUnchangedIsNoop(t *testing.T) {
	plan := &Plan{Changed: false}
	assert.NoError(t, plan.Apply())
}

func TestPlanFileMissing(t *testing.T) {
	_, err := New().PlanFile(context.Background(), filepath.Join(t.TempDir(), "absent.md"))
	require.Error(t, err)
}

func TestRewriteKeepsBodyDashes(t *testing.T) {
	source := "---\nname: dashy\ndescription: Keeps horizontal rules intact.\n---\n\nIntro.\n\n---\n\nOutro.\n"
	doc, err := agent.Parse("dashy", source)
	require.NoError(t, err)

	plan, err := New().Plan(doc)
	require.NoError(t, err)

	assert.Equal(t, "---\ndescription: Keeps horizontal rules intact.\n---\n\nIntro.\n\n---\n\nOutro.\n", plan.After)
}
