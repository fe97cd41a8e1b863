package validate

// Severity classifies a finding. Only errors block use of an agent
// definition; risks flag configurations that are legal but dangerous,
// warnings flag quality problems, and info findings are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityRisk    Severity = "risk"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{SeverityError, SeverityRisk, SeverityWarning, SeverityInfo}

// Rank returns the severity's position for ordering, lower is more severe.
func (s Severity) Rank() int {
	for i, sev := range Severities {
		if sev == s {
			return i
		}
	}
	return len(Severities)
}

// Finding is a single validation result tied to a frontmatter field or the
// document body.
type Finding struct {
	Severity   Severity `json:"severity"`
	Field      string   `json:"field,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Report collects the findings for one agent definition. Running the same
// document through validation twice yields identical reports; checks never
// mutate the document.
type Report struct {
	Agent    string    `json:"agent,omitempty"`
	Path     string    `json:"path,omitempty"`
	Findings []Finding `json:"findings"`
}

// Valid reports whether the document passed validation, meaning no
// error-severity findings. Risks and warnings do not block.
func (r *Report) Valid() bool {
	return r.Count(SeverityError) == 0
}

// Count returns the number of findings with the given severity.
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Filter returns the findings with the given severity, in document order.
func (r *Report) Filter(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) add(sev Severity, field, message string) {
	r.Findings = append(r.Findings, Finding{Severity: sev, Field: field, Message: message})
}

func (r *Report) addWithSuggestion(sev Severity, field, message, suggestion string) {
	r.Findings = append(r.Findings, Finding{Severity: sev, Field: field, Message: message, Suggestion: suggestion})
}
