package analyzer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// PerformanceAnalyzer finds heuristic performance smells: nested loops,
// string concatenation in loops, N+1-shaped database calls, and
// list-append-in-loop. Repeated pure calls are not detected.
type PerformanceAnalyzer struct{}

func (a *PerformanceAnalyzer) Name() string { return "performance" }

var loopOpen = regexp.MustCompile(`\b(for|while)\b.*\{?\s*$`)
var dbCallInLoop = regexp.MustCompile(`(?i)\b(query|find|select|fetch|get)\w*\s*\(`)
var appendInLoop = regexp.MustCompile(`\bappend\s*\(`)

func (a *PerformanceAnalyzer) Analyze(_ *domain.Task, artifacts []Artifact) []*domain.Improvement {
	var out []*domain.Improvement

	for _, artifact := range artifacts {
		lines := strings.Split(artifact.Content, "\n")
		depth := 0
		maxDepthSeen := 0
		concatInLoop := false

		for i, line := range lines {
			trimmed := strings.TrimSpace(line)
			if loopOpen.MatchString(trimmed) {
				depth++
				if depth > maxDepthSeen {
					maxDepthSeen = depth
				}
			}
			if strings.Contains(trimmed, "}") && depth > 0 {
				depth--
			}

			if depth > 0 {
				if strings.Contains(trimmed, "+=") && strings.Contains(trimmed, "\"") {
					concatInLoop = true
				}
				if dbCallInLoop.MatchString(trimmed) {
					out = append(out, newImprovement(domain.CategoryPerformance, domain.PriorityHigh, artifact.Path, i+1,
						"database call inside loop (N+1 pattern)",
						"a data-access call appears inside a loop body, suggesting one round-trip per iteration",
						"batch the lookup outside the loop or load the collection in one query",
						domain.ImpactHigh, domain.EffortMedium))
				}
				if appendInLoop.MatchString(trimmed) {
					out = append(out, newImprovement(domain.CategoryPerformance, domain.PriorityLow, artifact.Path, i+1,
						"append in loop",
						"repeated append calls inside a loop",
						"pre-size the collection if the final length is known",
						domain.ImpactLow, domain.EffortTrivial))
				}
			}
		}

		if maxDepthSeen >= 3 {
			out = append(out, newImprovement(domain.CategoryPerformance, domain.PriorityHigh, artifact.Path, 0,
				"deeply nested loops",
				fmt.Sprintf("loop nesting reaches depth %d", maxDepthSeen),
				"extract inner loop bodies into named functions or flatten the iteration",
				domain.ImpactHigh, domain.EffortMedium))
		} else if maxDepthSeen == 2 {
			out = append(out, newImprovement(domain.CategoryPerformance, domain.PriorityMedium, artifact.Path, 0,
				"nested loop",
				"loop nesting reaches depth 2",
				"consider whether the inner loop can be replaced with a lookup",
				domain.ImpactMedium, domain.EffortSmall))
		}

		if concatInLoop {
			out = append(out, newImprovement(domain.CategoryPerformance, domain.PriorityMedium, artifact.Path, 0,
				"string concatenation in loop",
				"string values are built with += inside a loop",
				"use a string builder and join once after the loop",
				domain.ImpactMedium, domain.EffortSmall))
		}
	}

	return out
}

func newImprovement(category domain.Category, priority domain.Priority, file string, line int, title, description, proposed string, impact domain.Impact, effort domain.Effort) *domain.Improvement {
	return &domain.Improvement{
		ID:             uuid.NewString(),
		Category:       category,
		Priority:       priority,
		TargetFile:     file,
		TargetLine:     line,
		Title:          title,
		Description:    description,
		ProposedChange: proposed,
		Impact:         impact,
		Effort:         effort,
		CreatedAt:      time.Now(),
	}
}
