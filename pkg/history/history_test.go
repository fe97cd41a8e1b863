package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/agentlint/pkg/audit"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "agentlint.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(name string, at time.Time, overall float64) *audit.Result {
	return &audit.Result{
		ID:        uuid.New().String(),
		AgentName: name,
		AuditedAt: at,
		Overall:   overall,
		Scores: map[audit.Category]float64{
			audit.CategoryFrontmatter: 4.5,
			audit.CategoryToolSafety:  overall,
		},
		Findings:        []string{"bash enabled but no permission patterns defined"},
		Recommendations: []string{"Add a permission block for bash"},
		RiskLevel:       audit.RiskHigh,
	}
}

func TestSaveAndLatest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	saved := sampleResult("code-reviewer", time.Now(), 3.8)
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Latest(ctx, "code-reviewer")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "code-reviewer", got.AgentName)
	assert.Equal(t, 3.8, got.Overall)
	assert.Equal(t, saved.Scores, got.Scores)
	assert.Equal(t, saved.Findings, got.Findings)
	assert.Equal(t, saved.Recommendations, got.Recommendations)
	assert.Equal(t, audit.RiskHigh, got.RiskLevel)
	assert.WithinDuration(t, saved.AuditedAt, got.AuditedAt, time.Second)
}

func TestLatestWithoutAudits(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Latest(context.Background(), "never-audited")
	assert.ErrorIs(t, err, ErrNoAudits)
}

func TestListByAgentNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, sampleResult("code-reviewer", base, 2.5)))
	require.NoError(t, store.Save(ctx, sampleResult("code-reviewer", base.Add(time.Hour), 3.5)))
	require.NoError(t, store.Save(ctx, sampleResult("code-reviewer", base.Add(2*time.Hour), 4.5)))
	require.NoError(t, store.Save(ctx, sampleResult("doc-writer", base, 5.0)))

	results, err := store.ListByAgent(ctx, "code-reviewer", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 4.5, results[0].Overall)
	assert.Equal(t, 3.5, results[1].Overall)
	assert.Equal(t, 2.5, results[2].Overall)

	limited, err := store.ListByAgent(ctx, "code-reviewer", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, 4.5, limited[0].Overall)

	other, err := store.ListByAgent(ctx, "doc-writer", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSaveOverwritesSameID(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result := sampleResult("code-reviewer", time.Now(), 2.0)
	require.NoError(t, store.Save(ctx, result))

	result.Overall = 4.0
	result.Findings = nil
	require.NoError(t, store.Save(ctx, result))

	results, err := store.ListByAgent(ctx, "code-reviewer", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4.0, results[0].Overall)
	assert.Empty(t, results[0].Findings)
}

func TestOpenDefaultPath(t *testing.T) {
	base := t.TempDir()
	t.Setenv("AGENTLINT_BASE_PATH", base)

	store, err := Open(context.Background(), "")
	require.NoError(t, err)
	defer store.Close()

	assert.FileExists(t, filepath.Join(base, "agentlint.db"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentlint.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, sampleResult("code-reviewer", time.Now(), 3.0)))
	require.NoError(t, first.Close())

	second, err := Open(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	results, err := second.ListByAgent(ctx, "code-reviewer", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
