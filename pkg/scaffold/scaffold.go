// Package scaffold creates new agent definition files from the built-in
// template. Names are normalized to the kebab-case form agent files use, and
// existing files are never overwritten.
package scaffold

import (
	"bytes"
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/logger"
)

//go:embed template.md
var agentTemplate string

// Options configures a scaffolded agent.
type Options struct {
	// Name is the requested agent name; underscores and uppercase are
	// normalized away before validation.
	Name string
	// Dir is the target directory. Defaults to ~/.config/opencode/agent.
	Dir string
	// Mode is the agent mode written into the frontmatter. Defaults to all.
	Mode string
}

type templateData struct {
	Name  string
	Title string
	Role  string
	Mode  string
}

// NormalizeName converts a requested name into the kebab-case form used for
// agent filenames: underscores become hyphens and letters are lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

// Title renders an agent name as a document title, e.g. "security-auditor"
// becomes "Security Auditor Agent".
func Title(name string) string {
	words := strings.Split(name, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ") + " Agent"
}

// Create writes a new agent definition file and returns its path. It fails
// if the normalized name is invalid, the mode is unknown, or the target file
// already exists.
func Create(ctx context.Context, opts Options) (string, error) {
	name := NormalizeName(opts.Name)
	if !agent.ValidName(name) {
		return "", errors.Errorf("invalid agent name %q (must be lowercase alphanumeric with hyphens, e.g. security-auditor)", opts.Name)
	}

	mode := opts.Mode
	if mode == "" {
		mode = agent.ModeAll
	}
	if !agent.ValidMode(mode) {
		return "", errors.Errorf("invalid mode %q (must be: %s)", mode, strings.Join(agent.Modes, ", "))
	}

	dir := opts.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "failed to get user home directory")
		}
		dir = filepath.Join(home, ".config", "opencode", "agent")
	}

	path := filepath.Join(dir, name+agent.Extension)
	if _, err := os.Stat(path); err == nil {
		return "", errors.Errorf("agent already exists at %s", path)
	}

	content, err := render(templateData{
		Name:  name,
		Title: Title(name),
		Role:  strings.ReplaceAll(name, "-", " ") + " specialist",
		Mode:  mode,
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create agent directory %q", dir)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write agent file %q", path)
	}

	logger.G(ctx).WithField("path", path).WithField("mode", mode).Debug("created agent from template")
	return path, nil
}

func render(data templateData) ([]byte, error) {
	tmpl, err := template.New("agent").Parse(agentTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse agent template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "failed to render agent template")
	}
	return buf.Bytes(), nil
}
