// Package analyzer implements the six heuristic code analyzers and the
// pipeline that aggregates, deduplicates, and ranks their Improvements.
package analyzer

import (
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// Artifact is one file produced for a task; analyzers inspect but never
// execute these.
type Artifact struct {
	Path    string
	Content string
}

// Analyzer is any component producing Improvements from a task's
// artifacts. Analyze must be deterministic given identical artifacts
// and must degrade gracefully — log and skip — on unreadable input,
// never executing anything it inspects.
type Analyzer interface {
	Name() string
	Analyze(task *domain.Task, artifacts []Artifact) []*domain.Improvement
}

// Pipeline runs a configured set of analyzers and aggregates their
// output.
type Pipeline struct {
	analyzers []Analyzer
}

// NewPipeline builds a Pipeline from the given analyzers.
func NewPipeline(analyzers ...Analyzer) *Pipeline {
	return &Pipeline{analyzers: analyzers}
}

// NewDefaultPipeline wires the six stock analyzers.
func NewDefaultPipeline() *Pipeline {
	return NewPipeline(
		&PerformanceAnalyzer{},
		&CodeQualityAnalyzer{},
		&TestingAnalyzer{},
		&DocumentationAnalyzer{},
		&UXAnalyzer{},
		&ArchitectureAnalyzer{},
	)
}

// RegisteredNames returns every analyzer's name, for Improvement.Validate.
func (p *Pipeline) RegisteredNames() map[string]bool {
	names := make(map[string]bool, len(p.analyzers))
	for _, a := range p.analyzers {
		names[a.Name()] = true
	}
	return names
}

// Run invokes every analyzer, flattens their output, deduplicates by
// (analyzer_source, target_file, target_line, title), and returns the
// union sorted first by priority (high -> medium -> low) then by
// analyzer name
func (p *Pipeline) Run(task *domain.Task, artifacts []Artifact) []*domain.Improvement {
	type dedupKey struct {
		source string
		file   string
		line   int
		title  string
	}

	seen := make(map[dedupKey]bool)
	var all []*domain.Improvement

	for _, a := range p.analyzers {
		for _, imp := range a.Analyze(task, artifacts) {
			imp.AnalyzerSource = a.Name()
			key := dedupKey{source: imp.AnalyzerSource, file: imp.TargetFile, line: imp.TargetLine, title: imp.Title}
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, imp)
		}
	}

	domain.SortImprovements(all)
	return all
}

// Engine wraps a Pipeline the way the Moderator consumes it: ask for
// every Improvement, rank by priority score, return the top
// max_improvements (default 1).
type Engine struct {
	pipeline        *Pipeline
	maxImprovements int
}

// NewEngine builds an Engine over pipeline. maxImprovements <= 0 uses
// a default of 1.
func NewEngine(pipeline *Pipeline, maxImprovements int) *Engine {
	if maxImprovements <= 0 {
		maxImprovements = 1
	}
	return &Engine{pipeline: pipeline, maxImprovements: maxImprovements}
}

// TopImprovements runs the pipeline, computes priority scores, ranks,
// and returns the top maxImprovements entries.
func (e *Engine) TopImprovements(task *domain.Task, artifacts []Artifact) []*domain.Improvement {
	improvements := e.pipeline.Run(task, artifacts)
	for _, imp := range improvements {
		imp.ComputePriorityScore()
	}
	domain.RankByPriorityScore(improvements)
	if len(improvements) > e.maxImprovements {
		improvements = improvements[:e.maxImprovements]
	}
	return improvements
}

func looksLikeTestFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "_test.") || strings.Contains(lower, "test_") || strings.Contains(lower, "/tests/")
}

// countLinesMatching is a small shared helper: how many lines of
// content satisfy match.
func countLinesMatching(content string, match func(line string) bool) int {
	count := 0
	for _, line := range strings.Split(content, "\n") {
		if match(line) {
			count++
		}
	}
	return count
}
