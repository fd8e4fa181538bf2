// Package techlead implements the TechLead Agent: the
// execution pipeline that turns an assigned task or improvement into a
// generated, committed, pushed, reviewable PR via its three
// collaborators (Backend, Git driver, State Store).
package techlead

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/swarmforge/swarmforge/internal/agent"
	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/collaborators/backend"
	"github.com/swarmforge/swarmforge/internal/collaborators/gitdriver"
	"github.com/swarmforge/swarmforge/internal/collaborators/statestore"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
)

// AgentID is the fixed bus address every TechLead subscribes under.
const AgentID = "techlead"

// TechLead runs the task execution pipeline: build a prompt, call the Backend, create a branch, commit
// and push, open a PR, and report back with PR_SUBMITTED.
type TechLead struct {
	*agent.Base

	project    *domain.ProjectState
	backend    backend.Backend
	git        gitdriver.Driver
	store      statestore.Store
	moderator  string
}

// Config configures a new TechLead.
type Config struct {
	Bus         *bus.Bus
	Project     *domain.ProjectState
	Backend     backend.Backend
	Git         gitdriver.Driver
	Store       statestore.Store
	ModeratorID string
}

// New constructs a TechLead.
func New(cfg Config) *TechLead {
	tl := &TechLead{
		project:   cfg.Project,
		backend:   cfg.Backend,
		git:       cfg.Git,
		store:     cfg.Store,
		moderator: cfg.ModeratorID,
	}
	tl.Base = agent.NewBase(AgentID, cfg.Bus, tl)
	return tl
}

// HandleMessage implements agent.Handler.
func (tl *TechLead) HandleMessage(msg domain.AgentMessage) error {
	switch msg.Type {
	case domain.MsgTaskAssigned:
		payload, ok := msg.Payload.(domain.TaskAssignedPayload)
		if !ok {
			return agent.Fatal(fmt.Errorf("techlead: TASK_ASSIGNED payload has wrong type %T", msg.Payload))
		}
		return tl.handleTaskAssigned(msg, payload)
	case domain.MsgPRFeedback:
		payload, ok := msg.Payload.(domain.PRFeedbackPayload)
		if !ok {
			return agent.Fatal(fmt.Errorf("techlead: PR_FEEDBACK payload has wrong type %T", msg.Payload))
		}
		return tl.handlePRFeedback(msg, payload)
	case domain.MsgImprovementRequested:
		payload, ok := msg.Payload.(domain.ImprovementRequestedPayload)
		if !ok {
			return agent.Fatal(fmt.Errorf("techlead: IMPROVEMENT_REQUESTED payload has wrong type %T", msg.Payload))
		}
		return tl.handleImprovementRequested(msg, payload)
	default:
		return nil
	}
}

func (tl *TechLead) handleTaskAssigned(msg domain.AgentMessage, payload domain.TaskAssignedPayload) error {
	task := tl.project.TaskByID(payload.TaskID)
	if task == nil {
		return agent.Fatal(fmt.Errorf("techlead: TASK_ASSIGNED for unknown task %q", payload.TaskID))
	}
	task.Iteration = 1
	prompt := buildPrompt(task.Description, task.AcceptanceCriteria, nil)
	return tl.runPipeline(msg, task, prompt)
}

func (tl *TechLead) handlePRFeedback(msg domain.AgentMessage, payload domain.PRFeedbackPayload) error {
	task := tl.project.TaskByID(payload.TaskID)
	if task == nil {
		return agent.Fatal(fmt.Errorf("techlead: PR_FEEDBACK for unknown task %q", payload.TaskID))
	}
	prev := task.Iteration
	task.Iteration = payload.Iteration + 1

	prompt := buildPrompt(task.Description, task.AcceptanceCriteria, feedbackLines(payload))
	if err := tl.runPipeline(msg, task, prompt); err != nil {
		task.Iteration = prev
		return err
	}
	return nil
}

// handleImprovementRequested synthesizes a Task wrapping the improvement
// so it can flow through the same eight-step pipeline, then reports
// IMPROVEMENT_COMPLETED instead of PR_SUBMITTED.
func (tl *TechLead) handleImprovementRequested(msg domain.AgentMessage, payload domain.ImprovementRequestedPayload) error {
	task := domain.NewTask(
		fmt.Sprintf("improvement_%s", payload.ImprovementID),
		payload.Description,
		payload.AcceptanceCriteria,
	)
	if err := task.Transition(domain.TaskRunning); err != nil {
		return agent.Fatal(err)
	}

	prompt := buildPrompt(payload.Description, payload.AcceptanceCriteria, nil)

	branch, files, err := tl.generateAndPush(task, prompt)
	if err != nil {
		return tl.reportCollaboratorFailure(msg, task, err)
	}
	task.Branch = branch
	task.GeneratedFiles = files

	prURL, prNumber, err := tl.git.CreatePR(task)
	if err != nil {
		return tl.reportCollaboratorFailure(msg, task, fmt.Errorf("creating PR: %w", err))
	}
	task.PRURL = prURL
	task.PRNumber = prNumber
	tl.reportPRCreated(msg, prNumber)

	log.Info(log.CatTechLead, "improvement executed", "improvement_id", payload.ImprovementID, "pr_number", prNumber)

	_, sendErr := tl.SendMessage(domain.MsgImprovementCompleted, tl.moderator, domain.ImprovementCompletedPayload{
		ImprovementID: payload.ImprovementID,
		PRNumber:      prNumber,
	}, msg.CorrelationID, false)
	return sendErr
}

// runPipeline executes the eight-step TASK_ASSIGNED/PR_FEEDBACK pipeline
// for task using prompt, recording branch/PR/files on
// task and emitting PR_SUBMITTED on success, or converting any
// collaborator failure into an AGENT_ERROR carrying the task id.
func (tl *TechLead) runPipeline(msg domain.AgentMessage, task *domain.Task, prompt string) error {
	branch, files, err := tl.generateAndPush(task, prompt)
	if err != nil {
		return tl.reportCollaboratorFailure(msg, task, err)
	}
	task.Branch = branch
	task.GeneratedFiles = files

	prURL, prNumber, err := tl.git.CreatePR(task)
	if err != nil {
		return tl.reportCollaboratorFailure(msg, task, fmt.Errorf("creating PR: %w", err))
	}
	task.PRURL = prURL
	task.PRNumber = prNumber
	tl.reportPRCreated(msg, prNumber)

	log.Info(log.CatTechLead, "PR submitted", "task_id", task.ID, "iteration", task.Iteration, "pr_number", prNumber)

	_, sendErr := tl.SendMessage(domain.MsgPRSubmitted, tl.moderator, domain.PRSubmittedPayload{
		TaskID:    task.ID,
		PRNumber:  prNumber,
		PRURL:     prURL,
		Iteration: task.Iteration,
	}, msg.CorrelationID, true)
	return sendErr
}

// generateAndPush runs steps 1-6 of the pipeline: create a branch,
// execute the Backend into the State Store's artifacts directory for
// task, then commit and push the resulting files. It returns the branch
// name and the generated file paths (relative to the repo root, as
// produced by the Backend).
func (tl *TechLead) generateAndPush(task *domain.Task, prompt string) (string, []string, error) {
	branch, err := tl.git.CreateBranch(task)
	if err != nil {
		return "", nil, fmt.Errorf("creating branch: %w", err)
	}
	task.Branch = branch

	outputDir, err := tl.artifactsDir(task.ID)
	if err != nil {
		return "", nil, fmt.Errorf("resolving artifacts dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), backend.ExecuteTimeout)
	defer cancel()
	generated, err := tl.backend.Execute(ctx, prompt, outputDir)
	if err != nil {
		return "", nil, fmt.Errorf("backend execution: %w", err)
	}

	files := make([]string, 0, len(generated))
	for path, contents := range generated {
		if err := writeArtifact(path, contents); err != nil {
			return "", nil, fmt.Errorf("writing artifact %s: %w", path, err)
		}
		files = append(files, path)
	}

	if err := tl.git.CommitChanges(task, files); err != nil {
		return "", nil, fmt.Errorf("committing changes: %w", err)
	}
	if err := tl.git.PushBranch(branch); err != nil {
		return "", nil, fmt.Errorf("pushing branch: %w", err)
	}

	return branch, files, nil
}

// artifactsDir resolves the output directory the Backend should write
// into, falling back to a project-relative temp-like path when no real
// State Store is configured (e.g. in unit tests exercising the pipeline
// in isolation).
func (tl *TechLead) artifactsDir(taskID string) (string, error) {
	if tl.store == nil {
		return fmt.Sprintf("/tmp/swarmforge/%s/%s", tl.project.ID, taskID), nil
	}
	return tl.store.GetArtifactsDir(tl.project.ID, taskID)
}

// reportCollaboratorFailure converts a collaborator error into a fatal
// AGENT_ERROR carrying TaskID, so the Moderator can fail the in-flight
// task without waiting on a PR_SUBMITTED that will never arrive. The
// PR iteration counter is not incremented for a failed pipeline run.
func (tl *TechLead) reportCollaboratorFailure(msg domain.AgentMessage, task *domain.Task, cause error) error {
	log.ErrorErr(log.CatTechLead, "collaborator failure", cause, "task_id", task.ID)
	tl.SendMessage(domain.MsgAgentError, domain.Broadcast, domain.AgentErrorPayload{ //nolint:errcheck // best-effort observability broadcast; the fatal return below is what actually propagates the failure
		ErrorType:        fmt.Sprintf("%T", cause),
		ErrorMessage:     cause.Error(),
		OriginatingAgent: AgentID,
		TaskID:           task.ID,
	}, msg.CorrelationID, false)
	return agent.Fatal(cause)
}

// buildPrompt composes the Backend prompt from a task/improvement's
// description, acceptance criteria, and (on a PR_FEEDBACK re-run) prior
// review feedback
func buildPrompt(description string, acceptanceCriteria []string, feedback []string) string {
	prompt := fmt.Sprintf("Task: %s\n", description)
	if len(acceptanceCriteria) > 0 {
		prompt += "Acceptance criteria:\n"
		for _, c := range acceptanceCriteria {
			prompt += fmt.Sprintf("- %s\n", c)
		}
	}
	if len(feedback) > 0 {
		prompt += "Address the following review feedback:\n"
		for _, f := range feedback {
			prompt += fmt.Sprintf("- %s\n", f)
		}
	}
	return prompt
}

// reportPRCreated sends a PR_CREATED observability message addressed
// directly to the Monitor; an
// unsubscribed recipient is a logged no-op, not an error.
func (tl *TechLead) reportPRCreated(msg domain.AgentMessage, prNumber int) {
	tl.SendMessage(domain.MsgPRCreated, "monitor", domain.PRCreatedPayload{ //nolint:errcheck // best-effort observability send
		PRNumber:  prNumber,
		Timestamp: time.Now(),
	}, msg.CorrelationID, false)
}

// writeArtifact persists one Backend-generated file to disk, creating
// any parent directories the Backend's outputDir didn't already cover.
func writeArtifact(path string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0o644) //nolint:gosec // G306: generated source artifact, not a secret
}

// feedbackLines flattens a PRFeedbackPayload's blocking issues and
// structured feedback entries into prompt-ready lines.
func feedbackLines(payload domain.PRFeedbackPayload) []string {
	var lines []string
	lines = append(lines, payload.BlockingIssues...)
	for _, entry := range payload.Feedback {
		if entry.Severity == domain.SeverityBlocking {
			lines = append(lines, fmt.Sprintf("[%s] %s", entry.Category, entry.Issue))
		}
	}
	return lines
}
