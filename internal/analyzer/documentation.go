package analyzer

import (
	"regexp"
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// DocumentationAnalyzer finds missing or incomplete docs: undocumented exported functions/types, undocumented
// parameters, missing return descriptions, and README review triggers
// for public API surface changes.
type DocumentationAnalyzer struct{}

func (a *DocumentationAnalyzer) Name() string { return "documentation" }

var exportedDecl = regexp.MustCompile(`^\s*(?:func|type)\s+(?:\([^)]*\)\s*)?([A-Z]\w*)`)
var docComment = regexp.MustCompile(`^\s*//`)
var paramList = regexp.MustCompile(`\(([^)]*)\)`)

func (a *DocumentationAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	for _, artifact := range artifacts {
		if looksLikeTestFile(artifact.Path) {
			continue
		}
		lines := strings.Split(artifact.Content, "\n")
		for i, line := range lines {
			m := exportedDecl.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			hasDoc := i > 0 && docComment.MatchString(lines[i-1])
			complex := isComplexDecl(line)

			if !hasDoc {
				priority := domain.PriorityMedium
				if complex {
					priority = domain.PriorityHigh
				}
				out = append(out, newImprovement(domain.CategoryDocumentation, priority, artifact.Path, i+1,
					"exported identifier "+name+" is undocumented",
					"no doc comment precedes this exported declaration",
					"add a doc comment starting with the identifier's name",
					domain.ImpactMedium, domain.EffortTrivial))
				continue
			}

			if strings.HasPrefix(strings.TrimSpace(line), "func") {
				params := extractParamNames(line)
				if len(params) > 2 && !mentionsAnyParam(lines[i-1], params) {
					out = append(out, newImprovement(domain.CategoryDocumentation, domain.PriorityMedium, artifact.Path, i+1,
						"parameters of "+name+" are undocumented",
						"the function takes several parameters but its doc comment does not describe them",
						"document the purpose of each non-obvious parameter",
						domain.ImpactLow, domain.EffortTrivial))
				}
				if hasNamedReturn(line) && !strings.Contains(strings.ToLower(lines[i-1]), "return") {
					out = append(out, newImprovement(domain.CategoryDocumentation, domain.PriorityMedium, artifact.Path, i+1,
						"return value of "+name+" is undocumented",
						"the function returns a value but its doc comment does not describe it",
						"describe what the function returns, including error conditions",
						domain.ImpactLow, domain.EffortTrivial))
				}
			}
		}

		if looksLikePublicAPIFile(artifact.Path) && !strings.Contains(strings.ToLower(artifact.Content), "readme") {
			out = append(out, newImprovement(domain.CategoryDocumentation, domain.PriorityMedium, artifact.Path, 0,
				"public API surface changed without a README note",
				"this file appears to add or change exported API surface",
				"review whether README or usage docs need an update",
				domain.ImpactMedium, domain.EffortTrivial))
		}
	}

	return out
}

func isComplexDecl(line string) bool {
	params := extractParamNames(line)
	return len(params) > 3 || strings.Contains(line, "interface")
}

func extractParamNames(line string) []string {
	m := paramList.FindStringSubmatch(line)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return nil
	}
	parts := strings.Split(m[1], ",")
	var names []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			names = append(names, p)
		}
	}
	return names
}

func mentionsAnyParam(docLine string, params []string) bool {
	lower := strings.ToLower(docLine)
	for _, p := range params {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		if strings.Contains(lower, strings.ToLower(fields[0])) {
			return true
		}
	}
	return false
}

func hasNamedReturn(line string) bool {
	return strings.Count(line, ")") >= 2
}

func looksLikePublicAPIFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "api") || strings.Contains(lower, "client") || strings.Contains(lower, "public")
}
