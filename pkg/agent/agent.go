// Package agent models agent definition documents: markdown files with YAML
// frontmatter that configure an agent's description, mode, tool access, and
// permission rules. The package parses documents into both a raw view (for
// validation of arbitrary input) and a typed view (for well-formed files),
// and discovers definitions across the conventional directories.
package agent

import (
	"regexp"

	"gopkg.in/yaml.v2"

	"github.com/jingkaihe/agentlint/pkg/permission"
)

// Agent modes. Mode controls where an agent is available: as a top-level
// assistant, as a delegate for the task tool, or both.
const (
	ModePrimary  = "primary"
	ModeSubagent = "subagent"
	ModeAll      = "all"
)

// Modes lists the valid mode values.
var Modes = []string{ModePrimary, ModeSubagent, ModeAll}

// ValidMode reports whether s is a recognized mode.
func ValidMode(s string) bool {
	for _, m := range Modes {
		if m == s {
			return true
		}
	}
	return false
}

// ToolNames is the closed set of tools an agent definition may enable or
// disable.
var ToolNames = []string{
	"read", "write", "edit", "glob", "grep", "bash",
	"webfetch", "task", "todowrite", "todoread", "skill",
}

// ValidToolName reports whether name is a recognized tool.
func ValidToolName(name string) bool {
	for _, t := range ToolNames {
		if t == name {
			return true
		}
	}
	return false
}

// DeprecatedFields are frontmatter fields from earlier formats that current
// hosts ignore. Their presence is flagged as an error.
var DeprecatedFields = []string{"name", "skills", "permissions"}

// Extension is the file extension agent definitions use.
const Extension = ".md"

var nameRE = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidName reports whether name is a well-formed agent name: lowercase
// kebab-case, 1 to 64 characters.
func ValidName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	return nameRE.MatchString(name)
}

// Definition is the typed view of an agent's frontmatter. Parsing fills it
// best effort: fields whose raw values have the wrong shape stay zero, and
// the validator reports those from the raw map.
type Definition struct {
	Description string              `json:"description" yaml:"description" mapstructure:"description"`
	Mode        string              `json:"mode,omitempty" yaml:"mode,omitempty" mapstructure:"mode"`
	Tools       map[string]bool     `json:"tools,omitempty" yaml:"tools,omitempty" mapstructure:"tools"`
	Permission  []permission.Policy `json:"permission,omitempty" yaml:"-" mapstructure:"-"`
	Model       string              `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	Temperature *float64            `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxSteps    *int                `json:"maxSteps,omitempty" yaml:"maxSteps,omitempty" mapstructure:"maxSteps"`
	Hidden      *bool               `json:"hidden,omitempty" yaml:"hidden,omitempty" mapstructure:"hidden"`
}

// EffectiveMode returns the definition's mode, defaulting to all.
func (d *Definition) EffectiveMode() string {
	if d.Mode == "" {
		return ModeAll
	}
	return d.Mode
}

// ToolEnabled reports whether the named tool is explicitly enabled.
func (d *Definition) ToolEnabled(name string) bool {
	return d.Tools[name]
}

// EnabledTools returns the explicitly enabled tools in canonical order.
func (d *Definition) EnabledTools() []string {
	var enabled []string
	for _, name := range ToolNames {
		if d.Tools[name] {
			enabled = append(enabled, name)
		}
	}
	return enabled
}

// PermissionFor returns the permission policy declared for the named tool.
func (d *Definition) PermissionFor(tool string) (permission.Policy, bool) {
	for _, p := range d.Permission {
		if p.Tool == tool {
			return p, true
		}
	}
	return permission.Policy{}, false
}

// Document is a parsed agent definition file.
type Document struct {
	// Name is the agent's name, derived from the filename stem.
	Name string
	// Path is the source file, empty for in-memory documents.
	Path string
	// Source is the raw file content the document was parsed from.
	Source string
	// Meta is the raw frontmatter mapping.
	Meta map[string]interface{}
	// Items is the frontmatter in document order, preserving the order of
	// permission rules that resolution depends on.
	Items yaml.MapSlice
	// Definition is the typed frontmatter view.
	Definition Definition
	// Body is the markdown after the frontmatter block.
	Body string
}

// HasField reports whether the raw frontmatter contains the field, even when
// its value is null or of the wrong type.
func (d *Document) HasField(name string) bool {
	_, ok := d.Meta[name]
	return ok
}

// Item returns the raw value of a top-level frontmatter field from the
// ordered view. Nested mappings are yaml.MapSlice values, so callers can
// inspect entries in document order.
func (d *Document) Item(name string) (interface{}, bool) {
	return lookupItem(d.Items, name)
}
