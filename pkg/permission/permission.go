// Package permission models the permission block of an agent definition:
// per-tool decisions that are either a blanket value or an ordered list of
// glob pattern rules evaluated with last-match-wins semantics.
package permission

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Decision is the outcome an operation resolves to.
type Decision string

const (
	// Allow permits the operation without interaction.
	Allow Decision = "allow"
	// Ask requires interactive approval before the operation runs.
	Ask Decision = "ask"
	// Deny blocks the operation.
	Deny Decision = "deny"
)

// Decisions lists the valid decision values in their conventional order.
var Decisions = []Decision{Allow, Ask, Deny}

// ParseDecision converts a raw string into a Decision.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case Allow, Ask, Deny:
		return Decision(s), nil
	}
	return "", errors.Errorf("invalid permission value %q (must be allow, ask, or deny)", s)
}

// Tools is the closed set of tools that can carry a permission entry.
var Tools = []string{"edit", "bash", "webfetch", "skill", "task"}

// PatternTools is the subset of Tools whose permission entry may be a
// pattern map instead of a single decision. Operations for these tools are
// free-form strings (commands, skill names, subagent names) that patterns
// match against.
var PatternTools = []string{"bash", "skill", "task"}

// ValidTool reports whether name can appear as a permission key.
func ValidTool(name string) bool {
	for _, t := range Tools {
		if t == name {
			return true
		}
	}
	return false
}

// PatternCapable reports whether name accepts a pattern map.
func PatternCapable(name string) bool {
	for _, t := range PatternTools {
		if t == name {
			return true
		}
	}
	return false
}

// Rule pairs a glob pattern with the decision taken when an operation
// matches it. Pattern "*" matches every operation.
type Rule struct {
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Decision Decision `json:"decision" yaml:"decision"`
}

// CheckPattern reports whether pattern compiles as a glob. Patterns are
// compiled without separators so "*" matches any substring, including
// spaces and path separators.
func CheckPattern(pattern string) error {
	if _, err := glob.Compile(pattern); err != nil {
		return errors.Wrapf(err, "invalid pattern %q", pattern)
	}
	return nil
}

// Policy is one entry of an agent's permission block: either a blanket
// decision for the tool, or an ordered list of pattern rules in document
// order.
type Policy struct {
	Tool     string   `json:"tool"`
	Decision Decision `json:"decision,omitempty"`
	Rules    []Rule   `json:"rules,omitempty"`
}

// IsBlanket reports whether the policy is a single decision rather than a
// pattern list.
func (p Policy) IsBlanket() bool {
	return p.Rules == nil
}

// HasDecision reports whether the policy can ever produce d.
func (p Policy) HasDecision(d Decision) bool {
	if p.IsBlanket() {
		return p.Decision == d
	}
	for _, r := range p.Rules {
		if r.Decision == d {
			return true
		}
	}
	return false
}

// DefaultRule returns the catch-all "*" rule, if present. With duplicate
// "*" entries the last one is returned, since that is the one that takes
// effect under last-match-wins.
func (p Policy) DefaultRule() (Rule, bool) {
	var def Rule
	found := false
	for _, r := range p.Rules {
		if r.Pattern == "*" {
			def = r
			found = true
		}
	}
	return def, found
}
