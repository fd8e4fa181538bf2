// Package reviewer implements the PR Reviewer: five weighted
// sub-reviewers whose scores sum to the overall result, with approval
// requiring score >= 80 and no blocking issues.
package reviewer

import (
	"github.com/swarmforge/swarmforge/internal/domain"
)

// Artifact is one file the TechLead's backend collaborator produced for
// a task; sub-reviewers inspect these rather than executing them.
type Artifact struct {
	Path    string
	Content []byte
}

// SubResult is what a sub-reviewer returns: a partial score, feedback
// entries, and optionally blocking issues/suggestions. Modeled as a
// result value rather than an exception so a sub-reviewer failure is
// data, not control flow.
type SubResult struct {
	Score          int
	Feedback       []domain.FeedbackEntry
	BlockingIssues []string
	Suggestions    []string
}

// SubReviewer scores one criterion against a task's produced artifacts
// and declared acceptance criteria.
type SubReviewer interface {
	Criterion() domain.Criterion
	Review(task *domain.Task, artifacts []Artifact) SubResult
}

// Reviewer composes the five sub-reviewers into one PR review.
type Reviewer struct {
	subReviewers []SubReviewer
}

// New builds a Reviewer from the given sub-reviewers. NewDefault wires
// the reference heuristic sub-reviewers in weight order.
func New(subReviewers ...SubReviewer) *Reviewer {
	return &Reviewer{subReviewers: subReviewers}
}

// NewDefault wires the reference heuristic sub-reviewers: real
// heuristics rather than configured defaults, since a reviewer that
// always approves would never exercise the feedback state machine.
func NewDefault() *Reviewer {
	return New(
		&CodeQualityReviewer{},
		&TestCoverageReviewer{},
		&SecurityReviewer{},
		&DocumentationReviewer{},
		&AcceptanceCriteriaReviewer{},
	)
}

// Review scores task against artifacts and composes a ReviewResult.
func (r *Reviewer) Review(task *domain.Task, artifacts []Artifact) *domain.ReviewResult {
	result := &domain.ReviewResult{
		CriteriaScores: make(map[domain.Criterion]int, len(r.subReviewers)),
	}

	for _, sub := range r.subReviewers {
		sr := sub.Review(task, artifacts)
		crit := sub.Criterion()
		result.CriteriaScores[crit] = sr.Score
		result.Score += sr.Score
		result.Feedback = append(result.Feedback, sr.Feedback...)
		result.BlockingIssues = append(result.BlockingIssues, sr.BlockingIssues...)
		result.Suggestions = append(result.Suggestions, sr.Suggestions...)
	}

	result.Decide()
	return result
}
