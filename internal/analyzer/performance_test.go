package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

func TestPerformanceAnalyzer_FlagsDBCallInLoop(t *testing.T) {
	a := &PerformanceAnalyzer{}
	src := "func run(ids []string) {\n" +
		"\tfor _, id := range ids {\n" +
		"\t\trow := db.Query(id)\n" +
		"\t\t_ = row\n" +
		"\t}\n" +
		"}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "svc.go", Content: src}})

	require.NotEmpty(t, improvements)
	found := false
	for _, imp := range improvements {
		if imp.Title == "database call inside loop (N+1 pattern)" {
			found = true
			assert.Equal(t, domain.PriorityHigh, imp.Priority)
		}
	}
	assert.True(t, found)
}

func TestPerformanceAnalyzer_FlagsDeeplyNestedLoops(t *testing.T) {
	a := &PerformanceAnalyzer{}
	src := "func run(matrix [][][]int) {\n" +
		"\tfor i := range matrix {\n" +
		"\t\tfor j := range matrix[i] {\n" +
		"\t\t\tfor k := range matrix[i][j] {\n" +
		"\t\t\t\t_ = k\n" +
		"\t\t\t}\n" +
		"\t\t}\n" +
		"\t}\n" +
		"}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "svc.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "deeply nested loops" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPerformanceAnalyzer_FlagsStringConcatInLoop(t *testing.T) {
	a := &PerformanceAnalyzer{}
	src := "func run(items []string) string {\n" +
		"\tresult := \"\"\n" +
		"\tfor _, item := range items {\n" +
		"\t\tresult += \"prefix\" + item\n" +
		"\t}\n" +
		"\treturn result\n" +
		"}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "svc.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "string concatenation in loop" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPerformanceAnalyzer_NoFindingsOnCleanCode(t *testing.T) {
	a := &PerformanceAnalyzer{}
	src := "func add(a, b int) int {\n\treturn a + b\n}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "math.go", Content: src}})
	assert.Empty(t, improvements)
}
