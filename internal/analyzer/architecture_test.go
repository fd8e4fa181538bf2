package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/swarmforge/swarmforge/internal/domain"
)

func TestArchitectureAnalyzer_FlagsMixedConcerns(t *testing.T) {
	a := &ArchitectureAnalyzer{}
	src := "type Service struct{}\n" +
		"func (s *Service) GetUser() {}\n" +
		"func (s *Service) SaveUser() {}\n" +
		"func (s *Service) RenderPage() {}\n" +
		"func (s *Service) SendEmail() {}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "service.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if strings.Contains(imp.Title, "mixes") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestArchitectureAnalyzer_FlagsGodObject(t *testing.T) {
	a := &ArchitectureAnalyzer{}
	var body strings.Builder
	body.WriteString("type Manager struct{}\n")
	for i := 0; i < 12; i++ {
		body.WriteString("func (m *Manager) Method")
		body.WriteString(string(rune('A' + i)))
		body.WriteString("() {}\n")
	}
	improvements := a.Analyze(nil, []Artifact{{Path: "manager.go", Content: body.String()}})

	found := false
	for _, imp := range improvements {
		if strings.Contains(imp.Title, "god object") {
			found = true
			assert.Equal(t, domain.PriorityHigh, imp.Priority)
		}
	}
	assert.True(t, found)
}

func TestArchitectureAnalyzer_FlagsTypeSwitch(t *testing.T) {
	a := &ArchitectureAnalyzer{}
	src := "func handle(v any) {\n\tswitch v.(type) {\n\tcase int:\n\t}\n}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "dispatch.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if imp.Title == "dispatch via type switch" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestArchitectureAnalyzer_FlagsDataOnlyContainer(t *testing.T) {
	a := &ArchitectureAnalyzer{}
	src := "type Point struct {\n\tX int\n\tY int\n}\n"
	improvements := a.Analyze(nil, []Artifact{{Path: "point.go", Content: src}})

	found := false
	for _, imp := range improvements {
		if strings.Contains(imp.Title, "data-only container") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestArchitectureAnalyzer_FlagsCircularImport(t *testing.T) {
	a := &ArchitectureAnalyzer{}
	artifacts := []Artifact{
		{Path: "foo/foo.go", Content: "import (\n\t\"example.com/proj/bar\"\n)\n"},
		{Path: "bar/bar.go", Content: "import (\n\t\"example.com/proj/foo\"\n)\n"},
	}
	improvements := a.Analyze(nil, artifacts)

	found := false
	for _, imp := range improvements {
		if strings.Contains(imp.Title, "circular import") {
			found = true
		}
	}
	assert.True(t, found)
}
