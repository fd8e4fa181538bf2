package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// CodeQualityAnalyzer finds cyclomatic-complexity, duplication,
// oversized-function, and unused-import smells. Unused local variables
// are not detected.
type CodeQualityAnalyzer struct{}

func (a *CodeQualityAnalyzer) Name() string { return "code_quality" }

var branchKeyword = regexp.MustCompile(`\b(if|for|case|&&|\|\|)\b`)
var funcOpen = regexp.MustCompile(`^\s*func\s+\w`)
var importLine = regexp.MustCompile(`^\s*"([\w./-]+)"\s*$`)

func (a *CodeQualityAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	for _, artifact := range artifacts {
		lines := strings.Split(artifact.Content, "\n")
		out = append(out, a.complexityFindings(artifact.Path, lines)...)
		out = append(out, a.oversizedFunctionFindings(artifact.Path, lines)...)
		out = append(out, a.unusedImportFindings(artifact.Path, lines)...)
	}

	out = append(out, a.duplicateBlockFindings(artifacts)...)
	return out
}

func (a *CodeQualityAnalyzer) complexityFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	inFunc := false
	funcStart := 0
	branches := 0

	flush := func(endLine int) {
		if !inFunc {
			return
		}
		complexity := branches + 1
		switch {
		case complexity > 15:
			out = append(out, newImprovement(domain.CategoryCodeQuality, domain.PriorityHigh, path, funcStart,
				"high cyclomatic complexity",
				fmt.Sprintf("estimated cyclomatic complexity %d exceeds 15", complexity),
				"split the function into smaller, single-purpose functions",
				domain.ImpactHigh, domain.EffortMedium))
		case complexity > 10:
			out = append(out, newImprovement(domain.CategoryCodeQuality, domain.PriorityMedium, path, funcStart,
				"elevated cyclomatic complexity",
				fmt.Sprintf("estimated cyclomatic complexity %d exceeds 10", complexity),
				"extract conditional branches into helper functions",
				domain.ImpactMedium, domain.EffortSmall))
		}
	}

	for i, line := range lines {
		if funcOpen.MatchString(line) {
			flush(i)
			inFunc = true
			funcStart = i + 1
			branches = 0
			continue
		}
		if inFunc {
			branches += len(branchKeyword.FindAllString(line, -1))
		}
	}
	flush(len(lines))
	return out
}

func (a *CodeQualityAnalyzer) oversizedFunctionFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	funcStart := -1

	for i, line := range lines {
		if funcOpen.MatchString(line) {
			if funcStart >= 0 && i-funcStart > 50 {
				out = append(out, newImprovement(domain.CategoryCodeQuality, domain.PriorityMedium, path, funcStart+1,
					"function exceeds 50 lines",
					fmt.Sprintf("function spans %d lines", i-funcStart),
					"extract cohesive sub-steps into their own functions",
					domain.ImpactMedium, domain.EffortMedium))
			}
			funcStart = i
		}
	}
	if funcStart >= 0 && len(lines)-funcStart > 50 {
		out = append(out, newImprovement(domain.CategoryCodeQuality, domain.PriorityMedium, path, funcStart+1,
			"function exceeds 50 lines",
			fmt.Sprintf("function spans %d lines", len(lines)-funcStart),
			"extract cohesive sub-steps into their own functions",
			domain.ImpactMedium, domain.EffortMedium))
	}
	return out
}

func (a *CodeQualityAnalyzer) unusedImportFindings(path string, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	inImportBlock := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "import (" {
			inImportBlock = true
			continue
		}
		if inImportBlock && trimmed == ")" {
			inImportBlock = false
			continue
		}
		if !inImportBlock {
			continue
		}
		m := importLine.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		pkg := lastSegment(m[1])
		if pkg == "" || strings.Contains(strings.Join(lines, "\n"), pkg+".") {
			continue
		}
		out = append(out, newImprovement(domain.CategoryCodeQuality, domain.PriorityLow, path, i+1,
			"possibly unused import",
			fmt.Sprintf("import %q has no apparent reference in the file", m[1]),
			"remove the import if it is genuinely unused",
			domain.ImpactLow, domain.EffortTrivial))
	}
	return out
}

func lastSegment(importPath string) string {
	parts := strings.Split(importPath, "/")
	return parts[len(parts)-1]
}

// duplicateBlockMinLines is the minimum normalized-line run length that
// counts as a duplicate block.
const duplicateBlockMinLines = 6

// duplicateBlockFindings compares every artifact pair's normalized text
// and flags long common runs using go-diff's character-level diff,
// counting the newline-delimited lines in each equal run, to find
// duplicated blocks across the artifact set.
func (a *CodeQualityAnalyzer) duplicateBlockFindings(artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement
	dmp := diffmatchpatch.New()

	for i := 0; i < len(artifacts); i++ {
		for j := i + 1; j < len(artifacts); j++ {
			left := normalizeLines(artifacts[i].Content)
			right := normalizeLines(artifacts[j].Content)
			if left == "" || right == "" {
				continue
			}

			diffs := dmp.DiffMain(left, right, false)
			diffs = dmp.DiffCleanupSemantic(diffs)

			for _, d := range diffs {
				if d.Type != diffmatchpatch.DiffEqual {
					continue
				}
				runLines := strings.Count(d.Text, "\n") + 1
				if runLines < duplicateBlockMinLines {
					continue
				}
				priority := domain.PriorityMedium
				if runLines >= duplicateBlockMinLines*2 {
					priority = domain.PriorityHigh
				}
				out = append(out, newImprovement(domain.CategoryCodeQuality, priority, artifacts[j].Path, 0,
					"duplicate block",
					fmt.Sprintf("%d normalized lines duplicated between %s and %s", runLines, artifacts[i].Path, artifacts[j].Path),
					"extract the shared logic into a common function",
					domain.ImpactMedium, domain.EffortMedium))
			}
		}
	}
	return out
}

// normalizeLines strips leading/trailing whitespace from every line and
// drops blank lines, so indentation-only differences don't defeat
// duplicate detection.
func normalizeLines(content string) string {
	var sb strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		sb.WriteString(trimmed)
		sb.WriteString("\n")
	}
	return sb.String()
}
