package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

func TestCodeQualityAnalyzer_FlagsHighComplexity(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	var body strings.Builder
	body.WriteString("func decide(n int) string {\n")
	for i := 0; i < 18; i++ {
		body.WriteString("\tif n == 0 || n == 1 {\n\t\tn++\n\t}\n")
	}
	body.WriteString("\treturn \"done\"\n}\n")

	improvements := a.Analyze(nil, []Artifact{{Path: "decide.go", Content: body.String()}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "high cyclomatic complexity" {
			found = true
			assert.Equal(t, domain.PriorityHigh, imp.Priority)
		}
	}
	assert.True(t, found)
}

func TestCodeQualityAnalyzer_FlagsOversizedFunction(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	var body strings.Builder
	body.WriteString("func big() {\n")
	for i := 0; i < 60; i++ {
		body.WriteString("\tdoWork()\n")
	}
	body.WriteString("}\n")

	improvements := a.Analyze(nil, []Artifact{{Path: "big.go", Content: body.String()}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "function exceeds 50 lines" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCodeQualityAnalyzer_FlagsUnusedImport(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	src := "package main\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"

	improvements := a.Analyze(nil, []Artifact{{Path: "main.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "possibly unused import" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCodeQualityAnalyzer_NoUnusedImportWhenReferenced(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	src := "package main\n\nimport (\n\t\"fmt\"\n)\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n"

	improvements := a.Analyze(nil, []Artifact{{Path: "main.go", Content: src}})
	for _, imp := range improvements {
		assert.NotEqual(t, "possibly unused import", imp.Title)
	}
}

func TestCodeQualityAnalyzer_FlagsDuplicateBlockAcrossArtifacts(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	shared := "line one\nline two\nline three\nline four\nline five\nline six\n"
	artifacts := []Artifact{
		{Path: "a.go", Content: shared + "unique to a\n"},
		{Path: "b.go", Content: shared + "unique to b\n"},
	}

	improvements := a.Analyze(nil, artifacts)

	require.NotEmpty(t, improvements)
	found := false
	for _, imp := range improvements {
		if imp.Title == "duplicate block" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCodeQualityAnalyzer_NoDuplicateFindingBelowThreshold(t *testing.T) {
	a := &CodeQualityAnalyzer{}
	artifacts := []Artifact{
		{Path: "a.go", Content: "one\ntwo\n"},
		{Path: "b.go", Content: "one\ntwo\n"},
	}

	improvements := a.duplicateBlockFindings(artifacts)
	assert.Empty(t, improvements)
}
