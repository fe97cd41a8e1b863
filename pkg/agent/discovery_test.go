package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgent(t *testing.T, dir, name, description string) string {
	t.Helper()
	content := "---\ndescription: " + description + "\n---\n\nBody.\n"
	path := filepath.Join(dir, name+".md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscoveryFind(t *testing.T) {
	dir := t.TempDir()
	path := writeAgent(t, dir, "code-reviewer", "Reviews code.")

	discovery, err := NewDiscovery(WithDirs(dir))
	require.NoError(t, err)

	found, err := discovery.Find(context.Background(), "code-reviewer")
	require.NoError(t, err)
	assert.Equal(t, path, found)

	_, err = discovery.Find(context.Background(), "absent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `agent "absent" not found`)
}

func TestDiscoveryLoad(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "planner", "Plans work.")

	discovery, err := NewDiscovery(WithDirs(dir))
	require.NoError(t, err)

	doc, err := discovery.Load(context.Background(), "planner")
	require.NoError(t, err)
	assert.Equal(t, "planner", doc.Name)
	assert.Equal(t, "Plans work.", doc.Definition.Description)
}

func TestDiscoveryList(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "alpha", "First agent.")
	writeAgent(t, dir, "beta", "Second agent.")

	// Non-markdown files and subdirectories are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an agent"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	discovery, err := NewDiscovery(WithDirs(dir))
	require.NoError(t, err)

	docs, err := discovery.List(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "alpha", docs[0].Name)
	assert.Equal(t, "beta", docs[1].Name)
}

func TestDiscoveryListPrecedence(t *testing.T) {
	repoDir := t.TempDir()
	homeDir := t.TempDir()

	writeAgent(t, repoDir, "shared", "Repo version.")
	writeAgent(t, homeDir, "shared", "Home version.")
	writeAgent(t, homeDir, "home-only", "Only at home.")

	discovery, err := NewDiscovery(WithDirs(repoDir, homeDir))
	require.NoError(t, err)

	docs, err := discovery.List(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	byName := make(map[string]*Document)
	for _, doc := range docs {
		byName[doc.Name] = doc
	}
	assert.Equal(t, "Repo version.", byName["shared"].Definition.Description)
	assert.NotNil(t, byName["home-only"])
}

func TestDiscoveryListSkipsUnparsable(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "good", "Fine agent.")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.md"), []byte("no frontmatter at all\n"), 0o644))

	discovery, err := NewDiscovery(WithDirs(dir))
	require.NoError(t, err)

	docs, err := discovery.List(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "good", docs[0].Name)
}

func TestDiscoveryListMissingDirectory(t *testing.T) {
	discovery, err := NewDiscovery(WithDirs(filepath.Join(t.TempDir(), "does-not-exist")))
	require.NoError(t, err)

	docs, err := discovery.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewDiscoveryDefaults(t *testing.T) {
	discovery, err := NewDiscovery()
	require.NoError(t, err)

	dirs := discovery.Dirs()
	require.Len(t, dirs, 2)
	assert.Equal(t, filepath.Join(".opencode", "agent"), dirs[0])
	assert.Contains(t, dirs[1], filepath.Join(".config", "opencode", "agent"))
}

func TestWithDirsRequiresDirectories(t *testing.T) {
	_, err := NewDiscovery(WithDirs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one agent directory")
}
