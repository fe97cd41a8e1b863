package permission

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Outcome is the result of resolving an operation against a policy.
// Matched distinguishes an explicit decision from the no-match case, which
// the host handles by its own default (conventionally ask).
type Outcome struct {
	Decision Decision `json:"decision,omitempty"`
	Matched  bool     `json:"matched"`
	Pattern  string   `json:"pattern,omitempty"`
}

// Resolver answers "what happens when this agent performs operation X"
// for a single tool's policy. Pattern rules keep their document order and
// the last matching rule wins, so later rules override earlier ones
// regardless of how specific either pattern is.
type Resolver struct {
	blanket *Decision
	rules   []Rule
	globs   []glob.Glob
}

// NewResolver compiles an ordered rule list into a Resolver. Patterns are
// compiled without separators, matching how agent hosts treat shell
// commands as flat strings.
func NewResolver(rules []Rule) (*Resolver, error) {
	globs := make([]glob.Glob, len(rules))
	for i, rule := range rules {
		g, err := glob.Compile(rule.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", rule.Pattern)
		}
		globs[i] = g
	}
	return &Resolver{rules: rules, globs: globs}, nil
}

// NewBlanketResolver returns a Resolver that resolves every operation to d.
func NewBlanketResolver(d Decision) *Resolver {
	return &Resolver{blanket: &d}
}

// Resolver builds the resolver for this policy.
func (p Policy) Resolver() (*Resolver, error) {
	if p.IsBlanket() {
		return NewBlanketResolver(p.Decision), nil
	}
	return NewResolver(p.Rules)
}

// Resolve scans the rules in order and returns the decision of the last
// rule whose pattern matches operation. When nothing matches, the returned
// Outcome has Matched false and no decision.
func (r *Resolver) Resolve(operation string) Outcome {
	if r.blanket != nil {
		return Outcome{Decision: *r.blanket, Matched: true}
	}

	var out Outcome
	for i, g := range r.globs {
		if g.Match(operation) {
			out = Outcome{
				Decision: r.rules[i].Decision,
				Matched:  true,
				Pattern:  r.rules[i].Pattern,
			}
		}
	}
	return out
}

// Rules returns the resolver's rule list in document order. Blanket
// resolvers have none.
func (r *Resolver) Rules() []Rule {
	return r.rules
}
