// Package schema reflects the agent frontmatter format into a JSON schema
// for editor and YAML language-server integration.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentlint/pkg/permission"
)

// GenerateSchema reflects T into a JSON schema with closed properties and
// no $ref indirection.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// Frontmatter is the declarative shape of an agent definition's YAML
// frontmatter. It exists for schema reflection; parsing uses agent.Definition.
type Frontmatter struct {
	Description string      `json:"description" jsonschema:"minLength=1,maxLength=1024,description=What the agent does and when to use it"`
	Mode        string      `json:"mode,omitempty" jsonschema:"enum=primary,enum=subagent,enum=all,default=all,description=Where the agent is available"`
	Tools       *Tools      `json:"tools,omitempty" jsonschema:"description=Tools to enable (true) or disable (false)"`
	Permission  *Permission `json:"permission,omitempty" jsonschema:"description=Per-tool access decisions"`
	Model       string      `json:"model,omitempty" jsonschema:"description=Model identifier in provider/model form"`
	Temperature *float64    `json:"temperature,omitempty" jsonschema:"minimum=0,maximum=1,description=Sampling temperature"`
	MaxSteps    *int        `json:"maxSteps,omitempty" jsonschema:"minimum=1,description=Maximum agentic loop iterations"`
	Hidden      *bool       `json:"hidden,omitempty" jsonschema:"description=Hide the agent from listings (subagents only)"`
}

// Tools is the closed set of tool toggles. Keep in sync with agent.ToolNames.
type Tools struct {
	Read      *bool `json:"read,omitempty"`
	Write     *bool `json:"write,omitempty"`
	Edit      *bool `json:"edit,omitempty"`
	Glob      *bool `json:"glob,omitempty"`
	Grep      *bool `json:"grep,omitempty"`
	Bash      *bool `json:"bash,omitempty"`
	Webfetch  *bool `json:"webfetch,omitempty"`
	Task      *bool `json:"task,omitempty"`
	Todowrite *bool `json:"todowrite,omitempty"`
	Todoread  *bool `json:"todoread,omitempty"`
	Skill     *bool `json:"skill,omitempty"`
}

// Permission maps tools to access decisions. Pattern-capable tools also
// accept a glob-to-decision mapping, resolved last-match-wins.
type Permission struct {
	Edit     Decision     `json:"edit,omitempty"`
	Bash     PatternRules `json:"bash,omitempty"`
	Webfetch Decision     `json:"webfetch,omitempty"`
	Skill    PatternRules `json:"skill,omitempty"`
	Task     PatternRules `json:"task,omitempty"`
}

// Decision renders as the bare allow/ask/deny enum.
type Decision struct{}

// JSONSchema implements the jsonschema custom-schema hook.
func (Decision) JSONSchema() *jsonschema.Schema {
	return decisionSchema()
}

// PatternRules renders as either a bare decision or a glob-to-decision
// mapping.
type PatternRules struct{}

// JSONSchema implements the jsonschema custom-schema hook.
func (PatternRules) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			decisionSchema(),
			{
				Type:                 "object",
				Description:          "Glob patterns to decisions; the last matching pattern wins, so list \"*\" first",
				AdditionalProperties: decisionSchema(),
			},
		},
	}
}

func decisionSchema() *jsonschema.Schema {
	enum := make([]any, 0, len(permission.Decisions))
	for _, d := range permission.Decisions {
		enum = append(enum, string(d))
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

// Generate builds the frontmatter schema.
func Generate() *jsonschema.Schema {
	s := GenerateSchema[Frontmatter]()
	s.Title = "Agent definition frontmatter"
	s.Description = "YAML frontmatter of an OpenCode agent definition file"
	return s
}

// JSON renders the frontmatter schema as indented JSON.
func JSON() ([]byte, error) {
	data, err := json.MarshalIndent(Generate(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal frontmatter schema")
	}
	return data, nil
}
