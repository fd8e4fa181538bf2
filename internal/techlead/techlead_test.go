package techlead

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/collaborators/backend"
	"github.com/swarmforge/swarmforge/internal/collaborators/gitdriver"
	"github.com/swarmforge/swarmforge/internal/domain"
)

type fakeModerator struct {
	received []domain.AgentMessage
}

func newFakeModerator(b *bus.Bus) *fakeModerator {
	fm := &fakeModerator{}
	if err := b.Subscribe("moderator", fm.handle); err != nil {
		panic(err)
	}
	return fm
}

func (fm *fakeModerator) handle(msg domain.AgentMessage) error {
	fm.received = append(fm.received, msg)
	return nil
}

func newTestTechLead(t *testing.T) (*TechLead, *bus.Bus, *fakeModerator, *domain.ProjectState) {
	t.Helper()
	dir := t.TempDir()
	b := bus.New()
	project := domain.NewProjectState("proj1", "Add a login form.")
	task := domain.NewTask("task_001", "Add a login form", []string{"Implements: Add a login form"})
	require.NoError(t, task.Transition(domain.TaskRunning))
	project.Tasks = []*domain.Task{task}

	fm := newFakeModerator(b)
	tl := New(Config{
		Bus:         b,
		Project:     project,
		Backend:     backend.NewFake(),
		Git:         gitdriver.NewFake(),
		ModeratorID: "moderator",
	})
	// Route the Backend's artifacts onto a real temp directory instead of
	// the default /tmp/swarmforge fallback so the test cleans up after
	// itself.
	tl.store = tempStore{dir: dir}
	require.NoError(t, tl.Start())
	return tl, b, fm, project
}

// tempStore is a minimal statestore.Store stand-in that only implements
// the one method TechLead actually calls.
type tempStore struct{ dir string }

func (s tempStore) SaveProject(*domain.ProjectState) error  { return nil }
func (s tempStore) LoadProject(string) (*domain.ProjectState, error) { return nil, os.ErrNotExist }
func (s tempStore) AppendLog(string, string) error            { return nil }
func (s tempStore) GetArtifactsDir(_, taskID string) (string, error) {
	dir := s.dir + "/" + taskID
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func TestHandleTaskAssigned_EmitsPRSubmitted(t *testing.T) {
	tl, b, fm, project := newTestTechLead(t)

	msg, err := b.CreateMessage(domain.MsgTaskAssigned, "moderator", AgentID, domain.TaskAssignedPayload{
		TaskID:             "task_001",
		Description:        "Add a login form",
		AcceptanceCriteria: []string{"Implements: Add a login form"},
	}, "corr-1", true)
	require.NoError(t, err)
	b.Send(msg)

	require.Len(t, fm.received, 1)
	assert.Equal(t, domain.MsgPRSubmitted, fm.received[0].Type)
	payload := fm.received[0].Payload.(domain.PRSubmittedPayload)
	assert.Equal(t, "task_001", payload.TaskID)
	assert.Equal(t, 1, payload.Iteration)
	assert.NotZero(t, payload.PRNumber)

	task := project.TaskByID("task_001")
	assert.NotEmpty(t, task.Branch)
	assert.NotEmpty(t, task.GeneratedFiles)
	_ = tl
}

func TestHandlePRFeedback_IncrementsIterationAndResubmits(t *testing.T) {
	tl, b, fm, project := newTestTechLead(t)
	task := project.TaskByID("task_001")
	task.Iteration = 1

	msg, err := b.CreateMessage(domain.MsgPRFeedback, "moderator", AgentID, domain.PRFeedbackPayload{
		TaskID:         "task_001",
		Iteration:      1,
		Score:          40,
		BlockingIssues: []string{"missing tests"},
	}, "corr-2", true)
	require.NoError(t, err)
	b.Send(msg)

	require.Len(t, fm.received, 1)
	payload := fm.received[0].Payload.(domain.PRSubmittedPayload)
	assert.Equal(t, 2, payload.Iteration)
	assert.Equal(t, 2, task.Iteration)
	_ = tl
}

func TestHandleImprovementRequested_EmitsImprovementCompleted(t *testing.T) {
	tl, b, fm, _ := newTestTechLead(t)

	msg, err := b.CreateMessage(domain.MsgImprovementRequested, "moderator", AgentID, domain.ImprovementRequestedPayload{
		ImprovementID:      "imp-1",
		Description:        "Reduce cyclomatic complexity in handler",
		Category:           domain.CategoryCodeQuality,
		Priority:            domain.PriorityHigh,
		AcceptanceCriteria: []string{"Cyclomatic complexity <= 10 after change"},
	}, "corr-3", true)
	require.NoError(t, err)
	b.Send(msg)

	require.Len(t, fm.received, 1)
	assert.Equal(t, domain.MsgImprovementCompleted, fm.received[0].Type)
	payload := fm.received[0].Payload.(domain.ImprovementCompletedPayload)
	assert.Equal(t, "imp-1", payload.ImprovementID)
	_ = tl
}
