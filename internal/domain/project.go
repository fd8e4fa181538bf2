package domain

import "time"

// Phase is the project's coarse-grained lifecycle position.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseDecomposing  Phase = "decomposing"
	PhaseExecuting    Phase = "executing"
	PhaseCompleted    Phase = "completed"
	PhaseImprovement  Phase = "improvement"
	PhaseFailed       Phase = "failed"
)

// TaskStatus is the lifecycle state of a single Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Task is a single unit of work decomposed from a requirement.
type Task struct {
	ID                 string     `json:"id"`
	Description        string     `json:"description"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
	Status             TaskStatus `json:"status"`
	Branch             string     `json:"branch,omitempty"`
	PRURL              string     `json:"pr_url,omitempty"`
	PRNumber           int        `json:"pr_number,omitempty"`
	GeneratedFiles     []string   `json:"generated_files,omitempty"`
	Iteration          int        `json:"iteration"`
	Error              string     `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewTask constructs a pending Task with the given id/description/criteria.
func NewTask(id, description string, criteria []string) *Task {
	now := time.Now()
	return &Task{
		ID:                 id,
		Description:        description,
		AcceptanceCriteria: criteria,
		Status:             TaskPending,
		Iteration:          0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// monotonicTransitions enumerates the status transitions this model
// permits. running -> running is allowed to support re-assignment during
// the PR feedback loop.
var monotonicTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending: {TaskRunning: true, TaskSkipped: true},
	TaskRunning: {TaskRunning: true, TaskCompleted: true, TaskFailed: true},
}

// CanTransitionTo reports whether moving from the task's current status to
// `next` is a legal transition under the monotonic status-transition
// invariant.
func (t *Task) CanTransitionTo(next TaskStatus) bool {
	if t.Status == next {
		return next == TaskRunning
	}
	allowed, ok := monotonicTransitions[t.Status]
	if !ok {
		return false
	}
	return allowed[next]
}

// Transition moves the task to `next`, returning an error if the
// transition is not legal.
func (t *Task) Transition(next TaskStatus) error {
	if !t.CanTransitionTo(next) {
		return &InvalidTransitionError{From: t.Status, To: next}
	}
	t.Status = next
	t.UpdatedAt = time.Now()
	return nil
}

// InvalidTransitionError reports an illegal Task status transition.
type InvalidTransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return "invalid task transition from " + string(e.From) + " to " + string(e.To)
}

// ProjectState is the root aggregate describing the state of a single
// orchestrated project. It is mutated only by the Moderator agent.
type ProjectState struct {
	ID          string    `json:"id"`
	Requirement string    `json:"requirement"`
	Phase       Phase     `json:"phase"`
	Tasks       []*Task   `json:"tasks"`
	CurrentTask int       `json:"current_task_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProjectState constructs a ProjectState in the initializing phase.
func NewProjectState(id, requirement string) *ProjectState {
	now := time.Now()
	return &ProjectState{
		ID:          id,
		Requirement: requirement,
		Phase:       PhaseInitializing,
		Tasks:       nil,
		CurrentTask: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TaskByID returns the task with the given id, or nil if not found.
func (p *ProjectState) TaskByID(id string) *Task {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// AllTasksCompleted reports whether every task has reached a terminal
// completed status. An empty task list is not considered complete.
func (p *ProjectState) AllTasksCompleted() bool {
	if len(p.Tasks) == 0 {
		return false
	}
	for _, t := range p.Tasks {
		if t.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// HasFailedTask reports whether any task in the project is in the failed
// terminal state. A project with any failed task in terminal state has
// phase=failed.
func (p *ProjectState) HasFailedTask() bool {
	for _, t := range p.Tasks {
		if t.Status == TaskFailed {
			return true
		}
	}
	return false
}

// SetPhase transitions the project to the given phase and refreshes
// UpdatedAt. Phase transitions are driven by the Moderator; this setter
// does not itself validate the
// transition graph — callers are expected to only call it from the
// handler logic that already encodes the legal edges.
func (p *ProjectState) SetPhase(phase Phase) {
	p.Phase = phase
	p.UpdatedAt = time.Now()
}
