package analyzer

import (
	"regexp"
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// UXAnalyzer finds user-facing rough edges: short or
// generic error messages, long-running loops with no progress logging,
// CLI flags without help text, and unvalidated user input.
type UXAnalyzer struct{}

func (a *UXAnalyzer) Name() string { return "ux" }

var errorConstruction = regexp.MustCompile(`(?i)(errors\.New|fmt\.Errorf|panic)\(\s*"([^"]*)"`)
var genericErrorText = map[string]bool{
	"error": true, "failed": true, "something went wrong": true, "oops": true, "bad request": true,
}
var cliFlagDecl = regexp.MustCompile(`\.(String|Int|Bool|Duration|Float64)Var?\(`)
var helpKeyword = regexp.MustCompile(`(?i)"[^"]*"\s*,\s*[^,]*,\s*"`)
var userInputRead = regexp.MustCompile(`(?i)\b(os\.Args|flag\.Arg|bufio\.NewReader|Scanln|r\.FormValue|r\.URL\.Query)\b`)
var validationCall = regexp.MustCompile(`(?i)\b(valid|sanitiz|parse|require)\w*\(`)

func (a *UXAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	for _, artifact := range artifacts {
		lines := strings.Split(artifact.Content, "\n")

		for i, line := range lines {
			if m := errorConstruction.FindStringSubmatch(line); m != nil {
				text := strings.TrimSpace(m[2])
				if len(text) < 10 || genericErrorText[strings.ToLower(text)] {
					out = append(out, newImprovement(domain.CategoryUX, domain.PriorityHigh, artifact.Path, i+1,
						"error message is short or generic",
						"the error text gives a caller little to act on: \""+text+"\"",
						"include the failing value or operation in the error message",
						domain.ImpactHigh, domain.EffortTrivial))
				}
			}

			if cliFlagDecl.MatchString(line) && !helpKeyword.MatchString(line) {
				out = append(out, newImprovement(domain.CategoryUX, domain.PriorityMedium, artifact.Path, i+1,
					"CLI flag defined without help text",
					"this flag declaration does not appear to include a usage description",
					"add a short usage string describing the flag",
					domain.ImpactMedium, domain.EffortTrivial))
			}

			if userInputRead.MatchString(line) {
				window := strings.Join(lines[i:min(i+8, len(lines))], "\n")
				if !validationCall.MatchString(window) {
					out = append(out, newImprovement(domain.CategoryUX, domain.PriorityMedium, artifact.Path, i+1,
						"user input read without apparent validation",
						"input is read from a user-controlled source with no nearby validation or parsing check",
						"validate or parse the input before using it",
						domain.ImpactMedium, domain.EffortSmall))
				}
			}
		}

		out = append(out, a.longRunningLoopFindings(artifact, lines)...)
	}

	return out
}

func (a *UXAnalyzer) longRunningLoopFindings(artifact Artifact, lines []string) []*domain.Improvement {
	var out []*domain.Improvement
	depth := 0
	loopStart := -1

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if loopOpen.MatchString(trimmed) {
			if depth == 0 {
				loopStart = i
			}
			depth++
			continue
		}
		if strings.Contains(trimmed, "}") && depth > 0 {
			depth--
			if depth == 0 && loopStart >= 0 {
				body := strings.Join(lines[loopStart:i], "\n")
				if i-loopStart > 20 && !strings.Contains(strings.ToLower(body), "log") {
					out = append(out, newImprovement(domain.CategoryUX, domain.PriorityMedium, artifact.Path, loopStart+1,
						"long-running loop has no progress logging",
						"this loop spans many lines with no apparent log statement",
						"log progress periodically so long operations are observable",
						domain.ImpactMedium, domain.EffortTrivial))
				}
				loopStart = -1
			}
		}
	}
	return out
}
