// Package upgrade rewrites legacy agent frontmatter into the current
// format: the deprecated name and skills fields are removed and the plural
// permissions key becomes permission. The rewrite is line based, so the
// formatting and comments of untouched fields survive.
package upgrade

import (
	"context"
	"os"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/logger"
)

// Plan describes the rewrite for one document. A plan with Changed false
// leaves the file alone.
type Plan struct {
	Agent   string   `json:"agent"`
	Path    string   `json:"path,omitempty"`
	Changed bool     `json:"changed"`
	Actions []string `json:"actions,omitempty"`
	Diff    string   `json:"diff,omitempty"`

	Before string `json:"-"`
	After  string `json:"-"`
}

// Apply writes the upgraded content back to the plan's file. Unchanged
// plans are a no-op.
func (p *Plan) Apply() error {
	if !p.Changed {
		return nil
	}
	if p.Path == "" {
		return errors.New("plan has no file path to write")
	}
	if err := os.WriteFile(p.Path, []byte(p.After), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write upgraded agent file %q", p.Path)
	}
	return nil
}

// Upgrader plans frontmatter rewrites.
type Upgrader struct{}

// New creates an Upgrader.
func New() *Upgrader {
	return &Upgrader{}
}

// PlanFile loads the agent definition at path and plans its upgrade.
func (u *Upgrader) PlanFile(ctx context.Context, path string) (*Plan, error) {
	doc, err := agent.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	plan, err := u.Plan(doc)
	if err != nil {
		return nil, err
	}
	logger.G(ctx).WithField("path", path).WithField("changed", plan.Changed).Debug("planned agent upgrade")
	return plan, nil
}

// Plan computes the rewrite for a parsed document. Fields keep their
// document order; only the legacy entries are touched. The rewritten text
// is parsed again before the plan is returned, so a plan that would corrupt
// the document is an error instead.
func (u *Upgrader) Plan(doc *agent.Document) (*Plan, error) {
	plan := &Plan{Agent: doc.Name, Path: doc.Path, Before: doc.Source, After: doc.Source}

	drops := map[string]bool{}
	rename := false
	for _, item := range doc.Items {
		key, ok := item.Key.(string)
		if !ok {
			continue
		}
		switch key {
		case "name":
			drops["name"] = true
			plan.Actions = append(plan.Actions, "remove deprecated field 'name' (the agent name comes from the filename)")
		case "skills":
			drops["skills"] = true
			plan.Actions = append(plan.Actions, "remove deprecated field 'skills' (skills load at runtime via the skill tool)")
		case "permissions":
			if doc.HasField("permission") {
				drops["permissions"] = true
				plan.Actions = append(plan.Actions, "remove 'permissions' (an explicit 'permission' block already exists)")
			} else {
				rename = true
				plan.Actions = append(plan.Actions, "rename 'permissions' to 'permission'")
			}
		}
	}

	if len(plan.Actions) == 0 {
		return plan, nil
	}

	if doc.Source == "" {
		return nil, errors.New("document has no source content to rewrite")
	}
	after, err := rewriteFrontmatter(doc.Source, drops, rename)
	if err != nil {
		return nil, err
	}

	upgraded, err := agent.Parse(doc.Name, after)
	if err != nil {
		return nil, errors.Wrap(err, "upgrade produced an unparsable document")
	}
	for field := range drops {
		if upgraded.HasField(field) {
			return nil, errors.Errorf("upgrade failed to remove field %q", field)
		}
	}
	if rename && upgraded.HasField("permissions") {
		return nil, errors.New("upgrade failed to rename 'permissions'")
	}

	label := doc.Path
	if label == "" {
		label = doc.Name + agent.Extension
	}

	plan.Changed = true
	plan.After = after
	plan.Diff = udiff.Unified(label, label, doc.Source, after)
	return plan, nil
}

// rewriteFrontmatter removes the blocks of dropped top-level keys and
// renames the permissions key in place. A block runs from its key line to
// the next top-level key; indented continuation lines go with their key.
func rewriteFrontmatter(source string, drops map[string]bool, rename bool) (string, error) {
	lines := strings.Split(source, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", agent.ErrNoFrontmatter
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return "", errors.New("missing closing frontmatter delimiter")
	}

	out := make([]string, 0, len(lines))
	out = append(out, lines[0])
	skipping := false
	for i := 1; i < end; i++ {
		line := lines[i]
		if key, ok := topLevelKey(line); ok {
			switch {
			case drops[key]:
				skipping = true
				continue
			case key == "permissions" && rename:
				skipping = false
				out = append(out, "permission:"+strings.TrimPrefix(line, "permissions:"))
				continue
			default:
				skipping = false
			}
		} else if skipping {
			continue
		}
		out = append(out, line)
	}
	out = append(out, lines[end:]...)

	return strings.Join(out, "\n"), nil
}

// topLevelKey returns the key of an unindented "key:" line.
func topLevelKey(line string) (string, bool) {
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
		return "", false
	}
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", false
	}
	return strings.TrimSpace(line[:idx]), true
}
