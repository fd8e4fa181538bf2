package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// TestingAnalyzer finds gaps in test coverage and test quality:
// public functions with no apparent test reference, error paths
// without a negative test, assertion-free test functions, and heavy
// mocking without verification. Missing edge cases are not detected.
type TestingAnalyzer struct{}

func (a *TestingAnalyzer) Name() string { return "testing" }

var publicFuncDecl = regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Z]\w*)\s*\(`)
var testFuncDecl = regexp.MustCompile(`^\s*func\s+Test\w*\s*\(`)
var assertionCall = regexp.MustCompile(`\b(assert|require|t\.Error|t\.Fatal|expect)\w*\.`)
var mockCall = regexp.MustCompile(`(?i)\bmock\w*\(`)
var mockAssertionCall = regexp.MustCompile(`(?i)\b(assertExpectations|verify|assertCalled)\w*\(`)
var errorReturn = regexp.MustCompile(`\breturn\s+.*\berr\b`)

func (a *TestingAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	testFileContent := combinedTestContent(artifacts)

	for _, artifact := range artifacts {
		if looksLikeTestFile(artifact.Path) {
			out = append(out, a.testFileFindings(artifact)...)
			continue
		}
		out = append(out, a.sourceFileFindings(artifact, testFileContent)...)
	}

	return out
}

func combinedTestContent(artifacts []Artifact) string {
	var sb strings.Builder
	for _, a := range artifacts {
		if looksLikeTestFile(a.Path) {
			sb.WriteString(a.Content)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (a *TestingAnalyzer) sourceFileFindings(artifact Artifact, testFileContent string) []*domain.Improvement {
	var out []*domain.Improvement
	lines := strings.Split(artifact.Content, "\n")

	for i, line := range lines {
		m := publicFuncDecl.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := m[1]
		if !strings.Contains(testFileContent, name) {
			priority := domain.PriorityMedium
			if len(testFileContent) == 0 {
				priority = domain.PriorityHigh
			}
			out = append(out, newImprovement(domain.CategoryTesting, priority, artifact.Path, i+1,
				fmt.Sprintf("public function %s has no apparent test", name),
				"no test file references this exported function by name",
				"add a test exercising its normal and edge-case behavior",
				domain.ImpactHigh, domain.EffortSmall))
		}

		if errorReturn.MatchString(strings.Join(lines[i:min(i+20, len(lines))], "\n")) {
			if !strings.Contains(strings.ToLower(testFileContent), strings.ToLower(name)+"_error") &&
				!strings.Contains(strings.ToLower(testFileContent), strings.ToLower(name)+"error") {
				out = append(out, newImprovement(domain.CategoryTesting, domain.PriorityMedium, artifact.Path, i+1,
					fmt.Sprintf("%s has an error path with no apparent negative test", name),
					"the function returns an error but no test appears to exercise the failure case",
					"add a test that forces the error path and asserts on it",
					domain.ImpactMedium, domain.EffortSmall))
			}
		}
	}
	return out
}

func (a *TestingAnalyzer) testFileFindings(artifact Artifact) []*domain.Improvement {
	var out []*domain.Improvement
	lines := strings.Split(artifact.Content, "\n")

	funcStart := -1
	flush := func(end int) {
		if funcStart < 0 {
			return
		}
		body := strings.Join(lines[funcStart:end], "\n")
		if countLinesMatching(body, func(l string) bool { return assertionCall.MatchString(l) }) == 0 {
			out = append(out, newImprovement(domain.CategoryTesting, domain.PriorityLow, artifact.Path, funcStart+1,
				"test function has no assertions",
				"this test function does not appear to call any assertion helper",
				"add assertions that verify the expected outcome",
				domain.ImpactLow, domain.EffortTrivial))
		}
		if mockCall.MatchString(body) && !mockAssertionCall.MatchString(body) {
			out = append(out, newImprovement(domain.CategoryTesting, domain.PriorityLow, artifact.Path, funcStart+1,
				"mocks used without verifying expectations",
				"the test configures mocks but never verifies they were called as expected",
				"assert on mock call expectations before the test ends",
				domain.ImpactLow, domain.EffortTrivial))
		}
	}

	for i, line := range lines {
		if testFuncDecl.MatchString(line) {
			flush(i)
			funcStart = i
		}
	}
	flush(len(lines))
	return out
}
