package agent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v2"

	"github.com/jingkaihe/agentlint/pkg/logger"
	"github.com/jingkaihe/agentlint/pkg/permission"
)

// ErrNoFrontmatter is returned when a document does not open with a YAML
// frontmatter block.
var ErrNoFrontmatter = errors.New("missing frontmatter (file must start with ---)")

// NameFromPath derives the agent name from a file path.
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Extension)
}

// Parse parses an agent definition from its markdown source. The returned
// document carries both the raw frontmatter and the typed Definition; typed
// fields with malformed raw values stay zero so the validator can report
// them from the raw map.
func Parse(name, content string) (*Document, error) {
	if !strings.HasPrefix(content, "---") {
		return nil, ErrNoFrontmatter
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			meta.Meta,
		),
	)

	source := []byte(content)
	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(source, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid YAML frontmatter")
	}
	if metaData == nil {
		return nil, ErrNoFrontmatter
	}

	items, err := meta.TryGetItems(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid YAML frontmatter")
	}

	doc := &Document{
		Name:   name,
		Source: content,
		Meta:   metaData,
		Items:  items,
		Body:   extractBody(content),
	}
	doc.Definition = decodeDefinition(metaData, items)

	return doc, nil
}

// Load reads and parses the agent definition at path. The agent name comes
// from the filename stem.
func Load(ctx context.Context, path string) (*Document, error) {
	logger.G(ctx).WithField("path", path).Debug("loading agent definition")

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read agent file %q", path)
	}

	doc, err := Parse(NameFromPath(path), string(content))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse agent file %q", path)
	}
	doc.Path = path

	return doc, nil
}

// decodeDefinition fills the typed view from the raw frontmatter. Scalar
// fields decode best effort via mapstructure; the permission block is
// rebuilt from the ordered items so rule order survives.
func decodeDefinition(metaData map[string]interface{}, items yaml.MapSlice) Definition {
	var def Definition

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &def,
	})
	if err != nil {
		return def
	}
	// Decode errors mean some raw values have the wrong shape. Those fields
	// stay zero here and the validator reports them from the raw map.
	_ = decoder.Decode(metaData)

	def.Permission = extractPermission(items)
	return def
}

// extractPermission walks the ordered frontmatter for the permission block.
// Entries and pattern rules keep their document order. Entries whose values
// are neither a decision string nor a pattern mapping are skipped, as are
// rules with unrecognized decisions.
func extractPermission(items yaml.MapSlice) []permission.Policy {
	block, ok := lookupItem(items, "permission")
	if !ok {
		return nil
	}

	entries, ok := block.(yaml.MapSlice)
	if !ok {
		return nil
	}

	var policies []permission.Policy
	for _, entry := range entries {
		tool, ok := entry.Key.(string)
		if !ok {
			continue
		}

		switch value := entry.Value.(type) {
		case string:
			decision, err := permission.ParseDecision(value)
			if err != nil {
				continue
			}
			policies = append(policies, permission.Policy{Tool: tool, Decision: decision})
		case yaml.MapSlice:
			rules := make([]permission.Rule, 0, len(value))
			for _, rv := range value {
				pattern, ok := rv.Key.(string)
				if !ok {
					continue
				}
				raw, ok := rv.Value.(string)
				if !ok {
					continue
				}
				decision, err := permission.ParseDecision(raw)
				if err != nil {
					continue
				}
				rules = append(rules, permission.Rule{Pattern: pattern, Decision: decision})
			}
			policies = append(policies, permission.Policy{Tool: tool, Rules: rules})
		}
	}
	return policies
}

func lookupItem(items yaml.MapSlice, key string) (interface{}, bool) {
	for _, item := range items {
		if k, ok := item.Key.(string); ok && k == key {
			return item.Value, true
		}
	}
	return nil, false
}

// extractBody returns the markdown content after the closing frontmatter
// delimiter.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	frontmatterEnd := -1

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			frontmatterEnd = i
			break
		}
	}

	if frontmatterEnd == -1 {
		return content
	}

	return strings.Join(lines[frontmatterEnd+1:], "\n")
}
