// Package audit scores agent definitions against a quality rubric: five
// categories scored down from a 5.0 base with fixed deductions, an overall
// mean, and a coarse risk level derived from the tool and permission shape.
package audit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jingkaihe/agentlint/pkg/agent"
	"github.com/jingkaihe/agentlint/pkg/permission"
)

const (
	baseScore             = 5.0
	shortDescriptionChars = 50
	manyToolsThreshold    = 9
	minSections           = 3
	minCodeFences         = 2
	minBodyLines          = 50
	minSafetyKeywords     = 3
	minDenyPatterns       = 2
)

var triggerPhrases = []string{"use when", "use for", "invoke when", "use proactively"}

var safetyKeywords = []string{
	"safety", "confirm", "always", "never", "backup", "verify", "check",
}

// Category identifies one scored rubric category.
type Category string

const (
	CategoryFrontmatter   Category = "frontmatter_quality"
	CategoryToolSafety    Category = "tool_safety"
	CategoryInstructions  Category = "instruction_quality"
	CategorySecurity      Category = "security"
	CategoryDocumentation Category = "documentation"
)

// Categories lists the scored categories in report order.
var Categories = []Category{
	CategoryFrontmatter,
	CategoryToolSafety,
	CategoryInstructions,
	CategorySecurity,
	CategoryDocumentation,
}

// Label returns the category name for display, e.g. "Frontmatter Quality".
func (c Category) Label() string {
	words := strings.Split(string(c), "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// RiskLevel is the coarse risk classification of an agent's capabilities.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// Band is the quality band an overall score falls in.
type Band string

const (
	BandExcellent Band = "Excellent"
	BandGood      Band = "Good"
	BandFair      Band = "Fair"
	BandPoor      Band = "Poor"
	BandCritical  Band = "Critical"
)

// BandFor maps an overall score to its quality band.
func BandFor(score float64) Band {
	switch {
	case score >= 4.5:
		return BandExcellent
	case score >= 3.5:
		return BandGood
	case score >= 2.5:
		return BandFair
	case score >= 1.5:
		return BandPoor
	default:
		return BandCritical
	}
}

// Result is one audit of one agent definition.
type Result struct {
	ID              string               `json:"id"`
	AgentName       string               `json:"agentName"`
	AuditedAt       time.Time            `json:"auditedAt"`
	Overall         float64              `json:"overallScore"`
	Scores          map[Category]float64 `json:"scores"`
	Findings        []string             `json:"findings"`
	Recommendations []string             `json:"recommendations"`
	RiskLevel       RiskLevel            `json:"riskLevel"`
}

// Band returns the quality band of the overall score.
func (r *Result) Band() Band {
	return BandFor(r.Overall)
}

// Score returns the score of one category.
func (r *Result) Score(c Category) float64 {
	return r.Scores[c]
}

// tally accumulates one category's score alongside the result's shared
// finding and recommendation lists.
type tally struct {
	result *Result
	score  float64
}

func newTally(result *Result) *tally {
	return &tally{result: result, score: baseScore}
}

func (t *tally) deduct(points float64, finding, recommendation string) {
	t.score -= points
	t.result.Findings = append(t.result.Findings, finding)
	t.result.Recommendations = append(t.result.Recommendations, recommendation)
}

func (t *tally) commit(category Category) {
	t.result.Scores[category] = math.Max(0, t.score)
}

// Auditor scores agent documents. Scoring is deterministic; only the result
// ID and timestamp vary between runs.
type Auditor struct{}

// New creates an Auditor.
func New() *Auditor {
	return &Auditor{}
}

// Audit scores a parsed document across all categories.
func (a *Auditor) Audit(doc *agent.Document) *Result {
	result := &Result{
		ID:              uuid.New().String(),
		AgentName:       doc.Name,
		AuditedAt:       time.Now(),
		Scores:          make(map[Category]float64, len(Categories)),
		Findings:        []string{},
		Recommendations: []string{},
	}
	stats := agent.AnalyzeBody(doc.Body)

	a.scoreFrontmatter(result, doc)
	a.scoreToolSafety(result, doc)
	a.scoreInstructions(result, doc, stats)
	a.scoreSecurity(result, doc)
	a.scoreDocumentation(result, doc)

	var sum float64
	for _, score := range result.Scores {
		sum += score
	}
	result.Overall = math.Round(sum/float64(len(result.Scores))*100) / 100
	result.RiskLevel = assessRisk(&doc.Definition)
	result.Recommendations = dedupe(result.Recommendations)

	return result
}

// AuditFile loads and audits the agent definition at path.
func (a *Auditor) AuditFile(ctx context.Context, path string) (*Result, error) {
	doc, err := agent.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Audit(doc), nil
}

func (a *Auditor) scoreFrontmatter(result *Result, doc *agent.Document) {
	t := newTally(result)

	desc, _ := doc.Meta["description"].(string)
	if desc == "" {
		t.deduct(2.0, "Missing description",
			"Add a description with triggers and examples")
	} else {
		if utf8.RuneCountInString(desc) < shortDescriptionChars {
			t.deduct(0.5, "Description is too short",
				"Add more detail to description including trigger conditions")
		}
		if !strings.Contains(desc, "<example>") {
			t.deduct(0.5, "Description missing <example> blocks",
				"Add <example> blocks showing typical usage")
		}
		if !agent.ContainsAny(desc, triggerPhrases...) {
			t.deduct(0.3, "Description missing trigger keywords",
				"Add 'Use when...' to clarify when to invoke agent")
		}
	}

	if raw := doc.Meta["mode"]; raw != nil && raw != "" {
		if mode, ok := raw.(string); !ok || !agent.ValidMode(mode) {
			t.deduct(0.5, fmt.Sprintf("Invalid mode: %v", raw),
				"Mode must be 'primary', 'subagent', or 'all'")
		}
	}

	t.commit(CategoryFrontmatter)
}

func (a *Auditor) scoreToolSafety(result *Result, doc *agent.Document) {
	t := newTally(result)
	def := &doc.Definition

	enabled := 0
	for _, on := range def.Tools {
		if on {
			enabled++
		}
	}
	if enabled >= manyToolsThreshold {
		t.deduct(1.0, fmt.Sprintf("Many tools enabled (%d)", enabled),
			"Review if all tools are necessary - apply least privilege")
	}

	if def.ToolEnabled("bash") {
		pol, ok := def.PermissionFor("bash")
		switch {
		case !ok || (!pol.IsBlanket() && len(pol.Rules) == 0):
			t.deduct(1.5, "bash enabled but no permission patterns defined",
				"Add permission patterns for bash commands")
		case !pol.IsBlanket():
			if !pol.HasDecision(permission.Deny) {
				t.deduct(0.5, "No deny rules for dangerous bash commands",
					"Add deny rules for rm -rf, dd, mkfs, etc.")
			}
			if _, found := pol.DefaultRule(); !found {
				t.deduct(0.3, "No default (*) bash permission rule",
					"Add '*': ask as default bash permission")
			}
		}
	}

	if def.ToolEnabled("write") && !def.ToolEnabled("read") {
		t.deduct(0.5, "write enabled without read",
			"Add read tool (agent should read before writing)")
	}
	if def.ToolEnabled("edit") && !def.ToolEnabled("read") {
		t.deduct(0.5, "edit enabled without read",
			"Add read tool (agent must read before editing)")
	}

	t.commit(CategoryToolSafety)
}

func (a *Auditor) scoreInstructions(result *Result, doc *agent.Document, stats agent.BodyStats) {
	t := newTally(result)

	if stats.Sections < minSections {
		t.deduct(1.0, "Few sections in instructions",
			"Organize instructions with clear ## headings")
	}
	if stats.CodeFences < minCodeFences {
		t.deduct(0.5, "Few code examples",
			"Add more code/command examples")
	}
	if !agent.ContainsAny(doc.Body, "workflow") {
		t.deduct(0.5, "No workflow section found",
			"Add a Workflow section with step-by-step process")
	}
	if !agent.ContainsAny(doc.Body, "responsibilit") {
		t.deduct(0.3, "No responsibilities section found",
			"Add Core Responsibilities section")
	}
	if stats.Lines < minBodyLines {
		t.deduct(0.5, "Instructions are quite short",
			"Add more comprehensive guidance and examples")
	}

	t.commit(CategoryInstructions)
}

func (a *Auditor) scoreSecurity(result *Result, doc *agent.Document) {
	t := newTally(result)
	def := &doc.Definition

	if def.ToolEnabled("bash") {
		if agent.CountOccurrences(doc.Body, safetyKeywords...) < minSafetyKeywords {
			t.deduct(1.5, "bash enabled but few safety keywords in instructions",
				"Add safety protocols: confirmation prompts, backup procedures")
		}

		// A blanket decision carries no patterns to inspect; only absent or
		// pattern-form policies are scored on deny coverage.
		pol, ok := def.PermissionFor("bash")
		if !ok || !pol.IsBlanket() {
			denies := 0
			for _, rule := range pol.Rules {
				if rule.Decision == permission.Deny {
					denies++
				}
			}
			if denies < minDenyPatterns {
				t.deduct(0.5, "Few deny patterns for bash",
					"Add more deny patterns for dangerous commands")
			}
		}
	}

	if def.ToolEnabled("write") && !agent.ContainsAny(doc.Body, "overwrite", "exist") {
		t.deduct(0.5, "write enabled but no overwrite safety mentioned",
			"Add guidance on checking file existence before writing")
	}

	if (def.ToolEnabled("read") || def.ToolEnabled("bash")) &&
		!agent.ContainsAny(doc.Body, "secret", "password", "credential") {
		t.deduct(0.3, "No guidance on handling sensitive data",
			"Add guidelines for handling secrets and credentials")
	}

	t.commit(CategorySecurity)
}

func (a *Auditor) scoreDocumentation(result *Result, doc *agent.Document) {
	t := newTally(result)

	sections := []struct {
		keyword string
		label   string
	}{
		{"overview", "Overview or introduction"},
		{"responsibilit", "Core responsibilities"},
		{"example", "Usage examples"},
		{"error", "Error handling"},
	}
	for _, s := range sections {
		if !agent.ContainsAny(doc.Body, s.keyword) {
			t.deduct(0.5, "Missing "+s.label, "Add "+s.label+" section")
		}
	}

	if !agent.ContainsAny(doc.Body, "limitation", "cannot") {
		t.deduct(0.3, "Limitations not clearly stated",
			"Document what agent CANNOT do")
	}

	t.commit(CategoryDocumentation)
}

// assessRisk classifies by capability shape: bash is HIGH unless its pattern
// rules both deny something and default "*" to ask; write or edit without
// bash is MEDIUM.
func assessRisk(def *agent.Definition) RiskLevel {
	if def.ToolEnabled("bash") {
		if pol, ok := def.PermissionFor("bash"); ok && !pol.IsBlanket() {
			rule, found := pol.DefaultRule()
			if found && rule.Decision == permission.Ask && pol.HasDecision(permission.Deny) {
				return RiskMedium
			}
		}
		return RiskHigh
	}
	if def.ToolEnabled("write") || def.ToolEnabled("edit") {
		return RiskMedium
	}
	return RiskLow
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
