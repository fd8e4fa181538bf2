package reviewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

type stubSubReviewer struct {
	criterion domain.Criterion
	result    SubResult
}

func (s *stubSubReviewer) Criterion() domain.Criterion { return s.criterion }
func (s *stubSubReviewer) Review(*domain.Task, []Artifact) SubResult { return s.result }

func TestReviewer_ScoreIsSumOfCriteria(t *testing.T) {
	r := New(
		&stubSubReviewer{criterion: domain.CriterionCodeQuality, result: SubResult{Score: 28}},
		&stubSubReviewer{criterion: domain.CriterionTestCoverage, result: SubResult{Score: 20}},
		&stubSubReviewer{criterion: domain.CriterionSecurity, result: SubResult{Score: 18}},
		&stubSubReviewer{criterion: domain.CriterionDocumentation, result: SubResult{Score: 12}},
		&stubSubReviewer{criterion: domain.CriterionAcceptanceCriteria, result: SubResult{Score: 7}},
	)

	result := r.Review(&domain.Task{ID: "task_001"}, nil)
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, result.Score, result.SumCriteriaScores())
	assert.True(t, result.Approved)
}

func TestReviewer_BlockingIssuePreventsApprovalEvenAboveThreshold(t *testing.T) {
	r := New(
		&stubSubReviewer{criterion: domain.CriterionCodeQuality, result: SubResult{Score: 30}},
		&stubSubReviewer{criterion: domain.CriterionTestCoverage, result: SubResult{Score: 25}},
		&stubSubReviewer{criterion: domain.CriterionSecurity, result: SubResult{Score: 20, BlockingIssues: []string{"possible hard-coded secret"}}},
		&stubSubReviewer{criterion: domain.CriterionDocumentation, result: SubResult{Score: 15}},
		&stubSubReviewer{criterion: domain.CriterionAcceptanceCriteria, result: SubResult{Score: 10}},
	)

	result := r.Review(&domain.Task{ID: "task_001"}, nil)
	assert.Equal(t, 100, result.Score)
	assert.False(t, result.Approved)
}

func TestReviewer_ExactThresholdApproves(t *testing.T) {
	r := New(
		&stubSubReviewer{criterion: domain.CriterionCodeQuality, result: SubResult{Score: 30}},
		&stubSubReviewer{criterion: domain.CriterionTestCoverage, result: SubResult{Score: 25}},
		&stubSubReviewer{criterion: domain.CriterionSecurity, result: SubResult{Score: 20}},
		&stubSubReviewer{criterion: domain.CriterionDocumentation, result: SubResult{Score: 5}},
		&stubSubReviewer{criterion: domain.CriterionAcceptanceCriteria, result: SubResult{Score: 0}},
	)

	result := r.Review(&domain.Task{ID: "task_001"}, nil)
	assert.Equal(t, 80, result.Score)
	assert.True(t, result.Approved)
}

func TestTestCoverageReviewer_NoTestsIsBlocking(t *testing.T) {
	sub := &TestCoverageReviewer{}
	result := sub.Review(&domain.Task{}, []Artifact{{Path: "main.go", Content: []byte("package main")}})
	assert.Equal(t, 0, result.Score)
	require.Len(t, result.BlockingIssues, 1)
}

func TestTestCoverageReviewer_TestFilePresentIsFullScore(t *testing.T) {
	sub := &TestCoverageReviewer{}
	result := sub.Review(&domain.Task{}, []Artifact{
		{Path: "main.go", Content: []byte("package main")},
		{Path: "main_test.go", Content: []byte("package main")},
	})
	assert.Equal(t, domain.CriterionMaxScore[domain.CriterionTestCoverage], result.Score)
	assert.Empty(t, result.BlockingIssues)
}

func TestSecurityReviewer_FlagsHardcodedSecret(t *testing.T) {
	sub := &SecurityReviewer{}
	result := sub.Review(&domain.Task{}, []Artifact{{Path: "config.go", Content: []byte(`api_key="sk-deadbeef"`)}})
	assert.Less(t, result.Score, domain.CriterionMaxScore[domain.CriterionSecurity])
	assert.NotEmpty(t, result.BlockingIssues)
}

func TestAcceptanceCriteriaReviewer_NoCriteriaIsFullScore(t *testing.T) {
	sub := &AcceptanceCriteriaReviewer{}
	result := sub.Review(&domain.Task{}, nil)
	assert.Equal(t, domain.CriterionMaxScore[domain.CriterionAcceptanceCriteria], result.Score)
}

func TestAcceptanceCriteriaReviewer_UnmetCriterionIsBlocking(t *testing.T) {
	sub := &AcceptanceCriteriaReviewer{}
	task := &domain.Task{AcceptanceCriteria: []string{"supports adding a todo item"}}
	result := sub.Review(task, []Artifact{{Path: "main.go", Content: []byte("package main\nfunc main() {}")}})
	assert.Less(t, result.Score, domain.CriterionMaxScore[domain.CriterionAcceptanceCriteria])
	assert.NotEmpty(t, result.BlockingIssues)
}

func TestAcceptanceCriteriaReviewer_MetCriterionScoresFull(t *testing.T) {
	sub := &AcceptanceCriteriaReviewer{}
	task := &domain.Task{AcceptanceCriteria: []string{"supports adding a todo item"}}
	result := sub.Review(task, []Artifact{{Path: "main.go", Content: []byte("func AddTodoItem() { /* supports adding todo item */ }")}})
	assert.Equal(t, domain.CriterionMaxScore[domain.CriterionAcceptanceCriteria], result.Score)
}

func TestNewDefault_WiresFiveSubReviewers(t *testing.T) {
	r := NewDefault()
	assert.Len(t, r.subReviewers, 5)
}
