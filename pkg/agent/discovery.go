package agent

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/logger"
)

// Discovery locates agent definitions across the conventional directories.
type Discovery struct {
	dirs []string
}

// Option configures a Discovery.
type Option func(*Discovery) error

// WithDirs sets custom agent directories, ordered by precedence.
func WithDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		if len(dirs) == 0 {
			return errors.New("at least one agent directory must be specified")
		}
		d.dirs = dirs
		return nil
	}
}

// WithDefaultDirs sets the conventional agent directories: the repository
// local .opencode/agent first, then the user's ~/.config/opencode/agent.
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.dirs = []string{
			filepath.Join(".opencode", "agent"),
			filepath.Join(homeDir, ".config", "opencode", "agent"),
		}
		return nil
	}
}

// NewDiscovery creates a Discovery, defaulting to the conventional
// directories when no options are given.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, errors.Wrap(err, "failed to apply default agent directories")
		}
		return d, nil
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, errors.Wrap(err, "failed to apply discovery option")
		}
	}

	if len(d.dirs) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, errors.Wrap(err, "failed to apply default agent directories")
		}
	}

	return d, nil
}

// Dirs returns the configured directories in precedence order.
func (d *Discovery) Dirs() []string {
	return d.dirs
}

// Find returns the path of the named agent's definition file. Earlier
// directories win.
func (d *Discovery) Find(ctx context.Context, name string) (string, error) {
	for _, dir := range d.dirs {
		path := filepath.Join(dir, name+Extension)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("agent %q not found in directories: %v", name, d.dirs)
}

// Load finds and parses the named agent.
func (d *Discovery) Load(ctx context.Context, name string) (*Document, error) {
	path, err := d.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	return Load(ctx, path)
}

// List parses every agent definition in the configured directories. On name
// collisions the earlier directory wins, so repository-local definitions
// shadow user-level ones. Files that fail to parse are skipped with a
// warning; linting them is the validate command's job.
func (d *Discovery) List(ctx context.Context) ([]*Document, error) {
	var docs []*Document
	seen := make(map[string]bool)

	for _, dir := range d.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.G(ctx).WithField("dir", dir).Debug("agent directory not found, skipping")
			continue
		}

		var names []string
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
				continue
			}
			names = append(names, entry.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			agentName := strings.TrimSuffix(name, Extension)
			if seen[agentName] {
				continue
			}

			doc, err := Load(ctx, filepath.Join(dir, name))
			if err != nil {
				logger.G(ctx).WithField("agent", agentName).WithError(err).Warn("failed to load agent, skipping")
				continue
			}

			docs = append(docs, doc)
			seen[agentName] = true
		}
	}

	logger.G(ctx).WithField("count", len(docs)).Debug("discovered agents")
	return docs, nil
}
