// Package decomposer turns a requirement text into an ordered task
// list. This is a heuristic reference implementation, a line/sentence
// splitter rather than a real NL decomposer: just enough to drive the
// substrate end-to-end.
package decomposer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/swarmforge/swarmforge/internal/domain"
)

// Decomposer turns a natural-language requirement into an ordered list of
// pending Tasks with non-empty acceptance criteria.
type Decomposer interface {
	Decompose(requirementText string) ([]*domain.Task, error)
}

// Heuristic splits a requirement on periods, semicolons, newlines, and
// explicit list markers ("1.", "-", "*") into one task per clause,
// synthesizing two acceptance criteria per task: one that restates the
// clause, one boilerplate "tests exist" criterion that keeps the
// reviewer's test_coverage sub-reviewer meaningful from task 1 onward. A
// requirement that doesn't split into recognizable clauses yields a
// single task covering the whole text.
type Heuristic struct {
	// idPrefix names generated task ids, default "task".
	idPrefix string
}

// NewHeuristic builds the reference Decomposer.
func NewHeuristic() *Heuristic { return &Heuristic{idPrefix: "task"} }

var (
	listMarker  = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+`)
	sentenceEnd = regexp.MustCompile(`(?:\.|;|\n)+\s*`)
)

// Decompose implements Decomposer.
func (h *Heuristic) Decompose(requirementText string) ([]*domain.Task, error) {
	text := strings.TrimSpace(requirementText)
	if text == "" {
		return nil, fmt.Errorf("decomposer: empty requirement text")
	}

	clauses := splitClauses(text)
	tasks := make([]*domain.Task, 0, len(clauses))
	for i, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		id := fmt.Sprintf("%s_%03d", h.idPrefix, i+1)
		criteria := []string{
			fmt.Sprintf("Implements: %s", clause),
			"Includes automated tests covering the new behavior",
		}
		t := domain.NewTask(id, clause, criteria)
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		id := fmt.Sprintf("%s_001", h.idPrefix)
		tasks = append(tasks, domain.NewTask(id, text, []string{
			fmt.Sprintf("Implements: %s", text),
			"Includes automated tests covering the new behavior",
		}))
	}

	return tasks, nil
}

// splitClauses first tries explicit list markers; if none are found it
// falls back to splitting on periods, semicolons, and newlines.
func splitClauses(text string) []string {
	if listMarker.MatchString(text) {
		parts := listMarker.Split(text, -1)
		var out []string
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	parts := sentenceEnd.Split(text, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
