package agent

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BodyStats summarizes the structure of an agent's markdown body. Both the
// validator and the auditor score against these counts.
type BodyStats struct {
	// Lines is the number of lines after trimming surrounding whitespace.
	Lines int
	// Sections counts top-level "##" section headings only.
	Sections int
	// Headings counts all organizing headings (level 2 and deeper).
	Headings int
	// CodeFences counts complete fenced code blocks.
	CodeFences int
}

// AnalyzeBody parses the markdown body and returns its structural counts.
func AnalyzeBody(body string) BodyStats {
	stats := BodyStats{}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return stats
	}
	stats.Lines = len(strings.Split(trimmed, "\n"))

	md := goldmark.New()
	source := []byte(body)
	root := md.Parser().Parse(text.NewReader(source))

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 2 {
				stats.Sections++
			}
			if node.Level >= 2 {
				stats.Headings++
			}
		case *ast.FencedCodeBlock:
			stats.CodeFences++
		}
		return ast.WalkContinue, nil
	})

	return stats
}

// ContainsAny reports whether text contains any of the terms,
// case-insensitively.
func ContainsAny(text string, terms ...string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// CountOccurrences returns how many of the terms appear in text,
// case-insensitively. Each term counts at most once.
func CountOccurrences(text string, terms ...string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			count++
		}
	}
	return count
}
