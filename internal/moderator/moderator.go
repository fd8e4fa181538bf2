// Package moderator implements the Moderator Agent: it
// owns ProjectState, decomposes and assigns tasks, runs the PR feedback
// state machine, and drives improvement cycles once every task is
// complete.
package moderator

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/agent"
	"github.com/swarmforge/swarmforge/internal/analyzer"
	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/collaborators/decomposer"
	"github.com/swarmforge/swarmforge/internal/collaborators/statestore"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
	"github.com/swarmforge/swarmforge/internal/reviewer"
)

// AgentID is the fixed bus address every Moderator subscribes under.
const AgentID = "moderator"

// MaxIterations is the default per-task PR feedback iteration cap.
const MaxIterations = 3

// Moderator drives a single ProjectState through decomposition,
// task assignment, PR feedback, and improvement cycles.
type Moderator struct {
	*agent.Base

	project     *domain.ProjectState
	decomposer  decomposer.Decomposer
	reviewer    *reviewer.Reviewer
	pipeline    *analyzer.Pipeline
	store       statestore.Store
	techLeadID  string

	maxIterations int

	// requestedImprovements tracks which improvements have already been
	// proposed this project, keyed by the pipeline's dedup identity
	// (analyzer source, file, line, title) rather than Improvement.ID,
	// since a fresh pipeline run mints a new id for a recurring finding.
	requestedImprovements map[improvementKey]bool
	currentImprovement    *domain.Improvement
}

// Config configures a new Moderator.
type Config struct {
	Bus           *bus.Bus
	Project       *domain.ProjectState
	Decomposer    decomposer.Decomposer
	Reviewer      *reviewer.Reviewer
	Pipeline      *analyzer.Pipeline
	Store         statestore.Store
	TechLeadID    string
	MaxIterations int
}

// New constructs a Moderator. Project must already exist (the
// Orchestrator creates it before instantiating agents).
func New(cfg Config) *Moderator {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = MaxIterations
	}
	m := &Moderator{
		project:               cfg.Project,
		decomposer:            cfg.Decomposer,
		reviewer:              cfg.Reviewer,
		pipeline:              cfg.Pipeline,
		store:                 cfg.Store,
		techLeadID:            cfg.TechLeadID,
		maxIterations:         maxIter,
		requestedImprovements: make(map[improvementKey]bool),
	}
	m.Base = agent.NewBase(AgentID, cfg.Bus, m)
	return m
}

// Project returns the moderator's owned ProjectState.
func (m *Moderator) Project() *domain.ProjectState { return m.project }

// HandleMessage implements agent.Handler. Moderator handles
// PR_SUBMITTED, IMPROVEMENT_COMPLETED, and AGENT_ERROR; everything else
// it receives (broadcasts it isn't the target of) is ignored.
func (m *Moderator) HandleMessage(msg domain.AgentMessage) error {
	switch msg.Type {
	case domain.MsgPRSubmitted:
		payload, ok := msg.Payload.(domain.PRSubmittedPayload)
		if !ok {
			return agent.Fatal(fmt.Errorf("moderator: PR_SUBMITTED payload has wrong type %T", msg.Payload))
		}
		return m.handlePRSubmitted(msg, payload)
	case domain.MsgImprovementCompleted:
		payload, ok := msg.Payload.(domain.ImprovementCompletedPayload)
		if !ok {
			return agent.Fatal(fmt.Errorf("moderator: IMPROVEMENT_COMPLETED payload has wrong type %T", msg.Payload))
		}
		return m.handleImprovementCompleted(payload)
	case domain.MsgAgentError:
		payload, ok := msg.Payload.(domain.AgentErrorPayload)
		if !ok {
			return nil
		}
		m.handleAgentError(payload)
		return nil
	default:
		return nil
	}
}

// DecomposeAndAssignTasks drives the project from initializing through
// decomposing into executing.7's phase state machine,
// then assigns the first task.
func (m *Moderator) DecomposeAndAssignTasks() error {
	m.project.SetPhase(domain.PhaseDecomposing)

	tasks, err := m.decomposer.Decompose(m.project.Requirement)
	if err != nil {
		return fmt.Errorf("moderator: decomposing requirement: %w", err)
	}

	m.project.Tasks = tasks
	m.project.CurrentTask = -1
	m.project.SetPhase(domain.PhaseExecuting)
	m.save()

	return m.AssignNextTask()
}

// AssignNextTask advances the task cursor and emits TASK_ASSIGNED for the
// next pending task, or transitions the project to completed if every
// task is done.
func (m *Moderator) AssignNextTask() error {
	next := m.project.CurrentTask + 1
	if next >= len(m.project.Tasks) {
		if m.project.AllTasksCompleted() {
			m.project.SetPhase(domain.PhaseCompleted)
			m.save()
		}
		return nil
	}

	m.project.CurrentTask = next
	task := m.project.Tasks[next]

	if err := task.Transition(domain.TaskRunning); err != nil {
		return agent.Fatal(fmt.Errorf("moderator: assigning task %s: %w", task.ID, err))
	}
	task.Iteration = 1
	m.save()

	// TASK_STARTED is addressed directly to the Monitor, independent of
	// whether a Monitor is actually registered
	// this run — an unsubscribed recipient is a logged no-op, not an error.
	m.SendMessage(domain.MsgTaskStarted, "monitor", domain.TaskStartedPayload{ //nolint:errcheck // best-effort observability send
		TaskID:    task.ID,
		Timestamp: time.Now(),
	}, "", false)

	correlationID := uuid.NewString()
	_, err := m.SendMessage(domain.MsgTaskAssigned, m.techLeadID, domain.TaskAssignedPayload{
		TaskID:             task.ID,
		Description:        task.Description,
		AcceptanceCriteria: task.AcceptanceCriteria,
	}, correlationID, true)
	return err
}

// handlePRSubmitted implements the PR feedback state machine.
func (m *Moderator) handlePRSubmitted(msg domain.AgentMessage, payload domain.PRSubmittedPayload) error {
	if payload.TaskID == "" {
		return agent.Fatal(fmt.Errorf("moderator: PR_SUBMITTED missing task_id"))
	}
	task := m.project.TaskByID(payload.TaskID)
	if task == nil {
		return agent.Fatal(fmt.Errorf("moderator: PR_SUBMITTED for unknown task %q", payload.TaskID))
	}

	// Late-duplicate tie-break: an iteration lower than the highest seen
	// for this task is ignored outright.
	if payload.Iteration < task.Iteration {
		log.Warn(log.CatModerator, "ignoring late-duplicate PR_SUBMITTED", "task_id", task.ID, "iteration", payload.Iteration, "highest_seen", task.Iteration)
		return nil
	}
	task.Iteration = payload.Iteration
	task.PRURL = payload.PRURL
	task.PRNumber = payload.PRNumber

	artifacts, err := loadArtifacts(task.GeneratedFiles)
	if err != nil {
		log.ErrorErr(log.CatModerator, "failed loading task artifacts for review", err, "task_id", task.ID)
	}

	result := m.reviewer.Review(task, artifacts)
	log.Info(log.CatModerator, "PR reviewed", "task_id", task.ID, "iteration", payload.Iteration, "score", result.Score, "approved", result.Approved)

	switch {
	case result.Approved:
		if err := task.Transition(domain.TaskCompleted); err != nil {
			return agent.Fatal(err)
		}
		m.save()

		if _, err := m.SendMessage(domain.MsgTaskCompleted, domain.Broadcast, domain.TaskCompletedPayload{
			TaskID:          task.ID,
			PRNumber:        task.PRNumber,
			FinalScore:      result.Score,
			TotalIterations: payload.Iteration,
			Approved:        true,
			Timestamp:       time.Now(),
		}, msg.CorrelationID, false); err != nil {
			return err
		}
		if _, err := m.SendMessage(domain.MsgPRApproved, domain.Broadcast, domain.PRApprovedPayload{
			PRNumber:  task.PRNumber,
			Timestamp: time.Now(),
		}, msg.CorrelationID, false); err != nil {
			return err
		}
		return m.AssignNextTask()

	case payload.Iteration < m.maxIterations:
		_, err := m.SendMessage(domain.MsgPRFeedback, m.techLeadID, domain.PRFeedbackPayload{
			TaskID:         task.ID,
			PRNumber:       task.PRNumber,
			Iteration:      payload.Iteration,
			Score:          result.Score,
			Approved:       false,
			BlockingIssues: result.BlockingIssues,
			Suggestions:    result.Suggestions,
			Feedback:       result.Feedback,
			CriteriaScores: result.CriteriaScores,
		}, msg.CorrelationID, true)
		return err

	default:
		if err := task.Transition(domain.TaskFailed); err != nil {
			return agent.Fatal(err)
		}
		task.Error = fmt.Sprintf("max iterations (%d) exhausted with score %d, blocking: %v", m.maxIterations, result.Score, result.BlockingIssues)
		m.project.SetPhase(domain.PhaseFailed)
		m.save()

		m.SendMessage(domain.MsgTaskFailed, "monitor", domain.TaskFailedPayload{ //nolint:errcheck // best-effort observability send
			TaskID:    task.ID,
			Timestamp: time.Now(),
			Error:     task.Error,
		}, msg.CorrelationID, false)

		_, err := m.SendMessage(domain.MsgPRRejected, domain.Broadcast, domain.PRRejectedPayload{
			PRNumber:  task.PRNumber,
			Timestamp: time.Now(),
		}, msg.CorrelationID, false)
		return err
	}
}

// handleAgentError handles a collaborator failure broadcast: when a
// TechLead pipeline failure identifies the in-flight task, that
// task is marked failed without waiting for a PR_SUBMITTED that will
// never arrive.
func (m *Moderator) handleAgentError(payload domain.AgentErrorPayload) {
	if payload.TaskID == "" {
		return
	}
	task := m.project.TaskByID(payload.TaskID)
	if task == nil || task.Status != domain.TaskRunning {
		return
	}
	if err := task.Transition(domain.TaskFailed); err != nil {
		log.ErrorErr(log.CatModerator, "could not fail task after collaborator error", err, "task_id", task.ID)
		return
	}
	task.Error = payload.ErrorMessage
	m.project.SetPhase(domain.PhaseFailed)
	m.save()
	log.Warn(log.CatModerator, "task failed due to collaborator error", "task_id", task.ID, "error", payload.ErrorMessage)

	m.SendMessage(domain.MsgTaskFailed, "monitor", domain.TaskFailedPayload{ //nolint:errcheck // best-effort observability send
		TaskID:    task.ID,
		Timestamp: time.Now(),
		Error:     payload.ErrorMessage,
	}, "", false)
}

// RunImprovementCycle starts (or advances) the improvement cycle:
// completed -> improvement, picks the single
// highest-priority not-yet-requested Improvement across all completed
// tasks' artifacts, and emits IMPROVEMENT_REQUESTED. If none remain, the
// project returns to completed.
func (m *Moderator) RunImprovementCycle() error {
	if m.project.Phase != domain.PhaseCompleted && m.project.Phase != domain.PhaseImprovement {
		return fmt.Errorf("moderator: improvement cycle requires phase completed, got %s", m.project.Phase)
	}
	m.project.SetPhase(domain.PhaseImprovement)

	pick, err := m.nextImprovement()
	if err != nil {
		return err
	}
	if pick == nil {
		m.project.SetPhase(domain.PhaseCompleted)
		m.save()
		log.Info(log.CatModerator, "improvement cycle complete: no further improvements", "project_id", m.project.ID)
		return nil
	}

	m.currentImprovement = pick
	m.save()

	_, sendErr := m.SendMessage(domain.MsgImprovementRequested, m.techLeadID, domain.ImprovementRequestedPayload{
		ImprovementID:      pick.ID,
		Description:        pick.Description,
		Category:           pick.Category,
		Priority:           pick.Priority,
		AcceptanceCriteria: acceptanceCriteriaForCategory(pick.Category),
	}, uuid.NewString(), true)
	return sendErr
}

func (m *Moderator) handleImprovementCompleted(payload domain.ImprovementCompletedPayload) error {
	if m.currentImprovement != nil && payload.ImprovementID != m.currentImprovement.ID {
		log.Warn(log.CatModerator, "IMPROVEMENT_COMPLETED for unexpected improvement", "expected", m.currentImprovement.ID, "got", payload.ImprovementID)
	}
	m.currentImprovement = nil
	return m.RunImprovementCycle()
}

type improvementKey struct {
	source string
	file   string
	line   int
	title  string
}

func keyOf(imp *domain.Improvement) improvementKey {
	return improvementKey{source: imp.AnalyzerSource, file: imp.TargetFile, line: imp.TargetLine, title: imp.Title}
}

// nextImprovement runs the analyzer pipeline over every completed task's
// artifacts and returns the highest-priority Improvement not already
// requested this project, or nil if none remain.
func (m *Moderator) nextImprovement() (*domain.Improvement, error) {
	artifacts, err := m.completedTaskArtifacts()
	if err != nil {
		log.ErrorErr(log.CatModerator, "failed loading project artifacts for improvement cycle", err, "project_id", m.project.ID)
	}

	pseudoTask := domain.NewTask("improvement-cycle", m.project.Requirement, nil)
	candidates := m.pipeline.Run(pseudoTask, artifacts)
	for _, c := range candidates {
		c.ComputePriorityScore()
	}
	domain.RankByPriorityScore(candidates)

	for _, c := range candidates {
		if !m.requestedImprovements[keyOf(c)] {
			m.requestedImprovements[keyOf(c)] = true
			return c, nil
		}
	}
	return nil, nil
}

// acceptanceCriteriaForCategory derives an improvement's acceptance
// criteria from its category ("e.g., complexity <= 10
// after change").
func acceptanceCriteriaForCategory(cat domain.Category) []string {
	switch cat {
	case domain.CategoryPerformance:
		return []string{"No new nested-loop or N+1-shaped call sites introduced", "Execution time does not regress"}
	case domain.CategoryCodeQuality:
		return []string{"Cyclomatic complexity <= 10 after change", "No duplicated blocks >= 6 lines remain"}
	case domain.CategoryTesting:
		return []string{"Previously untested public functions gain test coverage", "Every test function contains at least one assertion"}
	case domain.CategoryDocumentation:
		return []string{"Every exported function/class has a doc comment", "Parameters and return values are documented"}
	case domain.CategoryUX:
		return []string{"Error messages name the failing condition specifically", "Long-running operations emit observable progress"}
	case domain.CategoryArchitecture:
		return []string{"No class exposes more than 10 public methods", "No circular import remains between the touched modules"}
	default:
		return []string{"Change addresses the reported finding without regressing existing behavior"}
	}
}

func (m *Moderator) completedTaskArtifacts() ([]analyzer.Artifact, error) {
	seen := make(map[string]bool)
	var paths []string
	for _, t := range m.project.Tasks {
		if t.Status != domain.TaskCompleted {
			continue
		}
		for _, p := range t.GeneratedFiles {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)

	var out []analyzer.Artifact
	var firstErr error
	for _, p := range paths {
		content, err := os.ReadFile(p) //nolint:gosec // G304: paths are generated-artifact paths under the project's own state store root
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, analyzer.Artifact{Path: p, Content: string(content)})
	}
	return out, firstErr
}

// loadArtifacts reads reviewer.Artifacts for a task's generated files,
// degrading gracefully (skipping unreadable files, per the Analyzer's
// own degrade-gracefully posture) rather than failing the review.
func loadArtifacts(paths []string) ([]reviewer.Artifact, error) {
	var out []reviewer.Artifact
	var firstErr error
	for _, p := range paths {
		content, err := os.ReadFile(p) //nolint:gosec // G304: paths are generated-artifact paths under the project's own state store root
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, reviewer.Artifact{Path: p, Content: content})
	}
	return out, firstErr
}

func (m *Moderator) save() {
	if m.store == nil {
		return
	}
	if err := m.store.SaveProject(m.project); err != nil {
		log.ErrorErr(log.CatModerator, "failed saving project state", err, "project_id", m.project.ID)
	}
}
