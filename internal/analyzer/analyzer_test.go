package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

type stubAnalyzer struct {
	name   string
	output []*domain.Improvement
}

func (s *stubAnalyzer) Name() string { return s.name }
func (s *stubAnalyzer) Analyze(*domain.Task, []Artifact) []*domain.Improvement {
	return s.output
}

func TestPipeline_DedupsByAnalyzerFileLineTitle(t *testing.T) {
	imp := &domain.Improvement{TargetFile: "a.go", TargetLine: 1, Title: "dup", Priority: domain.PriorityLow, Impact: domain.ImpactLow, Effort: domain.EffortTrivial}
	p := NewPipeline(
		&stubAnalyzer{name: "z", output: []*domain.Improvement{imp}},
	)
	out1 := p.Run(nil, nil)
	require.Len(t, out1, 1)

	// The same analyzer emitting the identical finding twice collapses
	// to one entry: repeats of source/file/line/title are dropped.
	p2 := NewPipeline(
		&stubAnalyzer{name: "z", output: []*domain.Improvement{imp, imp}},
	)
	out2 := p2.Run(nil, nil)
	assert.Len(t, out2, 1)
}

func TestPipeline_SortsByPriorityThenAnalyzerName(t *testing.T) {
	low := &domain.Improvement{TargetFile: "a.go", Title: "low-one", Priority: domain.PriorityLow, Impact: domain.ImpactLow, Effort: domain.EffortTrivial}
	high := &domain.Improvement{TargetFile: "b.go", Title: "high-one", Priority: domain.PriorityHigh, Impact: domain.ImpactLow, Effort: domain.EffortTrivial}

	p := NewPipeline(
		&stubAnalyzer{name: "bravo", output: []*domain.Improvement{low}},
		&stubAnalyzer{name: "alpha", output: []*domain.Improvement{high}},
	)
	out := p.Run(nil, nil)

	require.Len(t, out, 2)
	assert.Equal(t, domain.PriorityHigh, out[0].Priority)
	assert.Equal(t, "alpha", out[0].AnalyzerSource)
}

func TestEngine_ReturnsTopMaxImprovements(t *testing.T) {
	imps := []*domain.Improvement{
		{TargetFile: "a.go", Title: "a", Priority: domain.PriorityLow, Category: domain.CategoryUX, Impact: domain.ImpactLow, Effort: domain.EffortLarge},
		{TargetFile: "b.go", Title: "b", Priority: domain.PriorityHigh, Category: domain.CategoryTesting, Impact: domain.ImpactCritical, Effort: domain.EffortTrivial},
		{TargetFile: "c.go", Title: "c", Priority: domain.PriorityMedium, Category: domain.CategoryCodeQuality, Impact: domain.ImpactMedium, Effort: domain.EffortMedium},
	}
	pipeline := NewPipeline(&stubAnalyzer{name: "solo", output: imps})
	engine := NewEngine(pipeline, 2)

	top := engine.TopImprovements(nil, nil)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Title)
	assert.GreaterOrEqual(t, top[0].PriorityScore, top[1].PriorityScore)
}

func TestEngine_DefaultsToOneWhenMaxIsZero(t *testing.T) {
	pipeline := NewPipeline(&stubAnalyzer{name: "solo", output: []*domain.Improvement{
		{TargetFile: "a.go", Title: "a", Priority: domain.PriorityLow, Category: domain.CategoryUX, Impact: domain.ImpactLow, Effort: domain.EffortLarge},
		{TargetFile: "b.go", Title: "b", Priority: domain.PriorityHigh, Category: domain.CategoryTesting, Impact: domain.ImpactCritical, Effort: domain.EffortTrivial},
	}})
	engine := NewEngine(pipeline, 0)

	top := engine.TopImprovements(nil, nil)
	assert.Len(t, top, 1)
}

func TestNewDefaultPipeline_RegistersSixAnalyzers(t *testing.T) {
	p := NewDefaultPipeline()
	names := p.RegisteredNames()
	assert.Len(t, names, 6)
	for _, want := range []string{"performance", "code_quality", "testing", "documentation", "ux", "architecture"} {
		assert.True(t, names[want], "expected analyzer %q to be registered", want)
	}
}
