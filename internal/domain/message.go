package domain

import "time"

// MessageType is the closed enumeration of message types the bus
// recognizes.
type MessageType string

const (
	MsgTaskAssigned        MessageType = "TASK_ASSIGNED"
	MsgPRSubmitted         MessageType = "PR_SUBMITTED"
	MsgPRFeedback          MessageType = "PR_FEEDBACK"
	MsgTaskCompleted       MessageType = "TASK_COMPLETED"
	MsgImprovementRequested MessageType = "IMPROVEMENT_REQUESTED"
	MsgImprovementCompleted MessageType = "IMPROVEMENT_COMPLETED"
	MsgAgentError          MessageType = "AGENT_ERROR"
	MsgAgentReady          MessageType = "AGENT_READY"
	MsgTaskStarted         MessageType = "TASK_STARTED"
	MsgTaskFailed          MessageType = "TASK_FAILED"
	MsgPRCreated           MessageType = "PR_CREATED"
	MsgPRApproved          MessageType = "PR_APPROVED"
	MsgPRRejected          MessageType = "PR_REJECTED"
)

// KnownMessageTypes is the closed set the bus validates message.Type
// against at creation time.
var KnownMessageTypes = map[MessageType]bool{
	MsgTaskAssigned:         true,
	MsgPRSubmitted:          true,
	MsgPRFeedback:           true,
	MsgTaskCompleted:        true,
	MsgImprovementRequested: true,
	MsgImprovementCompleted: true,
	MsgAgentError:           true,
	MsgAgentReady:           true,
	MsgTaskStarted:          true,
	MsgTaskFailed:           true,
	MsgPRCreated:            true,
	MsgPRApproved:           true,
	MsgPRRejected:           true,
}

// Broadcast is the wildcard recipient id meaning "every subscriber except
// the sender".
const Broadcast = "*"

// Payload types for each message in the closed enumeration.
// Handlers type-assert AgentMessage.Payload to the struct matching
// AgentMessage.Type; every sender in this codebase constructs exactly
// these shapes so the assertion never fails on a well-formed message.

// TaskAssignedPayload is the Moderator -> TechLead TASK_ASSIGNED payload.
type TaskAssignedPayload struct {
	TaskID             string   `json:"task_id"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// PRSubmittedPayload is the TechLead -> Moderator PR_SUBMITTED payload.
type PRSubmittedPayload struct {
	TaskID    string `json:"task_id"`
	PRNumber  int    `json:"pr_number"`
	PRURL     string `json:"pr_url"`
	Iteration int    `json:"iteration"`
}

// PRFeedbackPayload is the Moderator -> TechLead PR_FEEDBACK payload.
type PRFeedbackPayload struct {
	TaskID         string            `json:"task_id"`
	PRNumber       int               `json:"pr_number"`
	Iteration      int               `json:"iteration"`
	Score          int               `json:"score"`
	Approved       bool              `json:"approved"`
	BlockingIssues []string          `json:"blocking_issues"`
	Suggestions    []string          `json:"suggestions"`
	Feedback       []FeedbackEntry   `json:"feedback"`
	CriteriaScores map[Criterion]int `json:"criteria_scores"`
}

// TaskCompletedPayload is the TASK_COMPLETED payload. The Moderator
// sends it as a bus broadcast (domain.Broadcast) rather than addressed
// to one recipient: that reaches TechLead (the primary consumer) while
// also letting the Monitor observe task completion for its metrics,
// without a second message type.
type TaskCompletedPayload struct {
	TaskID          string    `json:"task_id"`
	PRNumber        int       `json:"pr_number"`
	FinalScore      int       `json:"final_score"`
	TotalIterations int       `json:"total_iterations"`
	Approved        bool      `json:"approved"`
	Timestamp       time.Time `json:"timestamp"`
}

// ImprovementRequestedPayload is the Moderator -> TechLead
// IMPROVEMENT_REQUESTED payload.
type ImprovementRequestedPayload struct {
	ImprovementID      string   `json:"improvement_id"`
	Description        string   `json:"description"`
	Category           Category `json:"category"`
	Priority           Priority `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// ImprovementCompletedPayload is the TechLead -> Moderator
// IMPROVEMENT_COMPLETED payload.
type ImprovementCompletedPayload struct {
	ImprovementID string `json:"improvement_id"`
	PRNumber      int    `json:"pr_number"`
}

// AgentErrorPayload is the any -> broadcast AGENT_ERROR payload.
// TaskID is populated only by collaborator-failure sites
// that know which task was in flight; it is empty for a generic
// handler-panic wrap (agent.Base, bus.Bus).
type AgentErrorPayload struct {
	ErrorType        string `json:"error_type"`
	ErrorMessage     string `json:"error_message"`
	OriginatingID    string `json:"originating_id,omitempty"`
	OriginatingAgent string `json:"originating_agent,omitempty"`
	TaskID           string `json:"task_id,omitempty"`
}

// TaskStartedPayload is the system -> Monitor TASK_STARTED payload.
type TaskStartedPayload struct {
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskFailedPayload is the system -> Monitor TASK_FAILED payload.
type TaskFailedPayload struct {
	TaskID    string        `json:"task_id"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// PRCreatedPayload is the system -> Monitor PR_CREATED payload.
type PRCreatedPayload struct {
	PRNumber  int       `json:"pr_number"`
	Timestamp time.Time `json:"timestamp"`
}

// PRApprovedPayload is the system -> Monitor PR_APPROVED payload.
type PRApprovedPayload struct {
	PRNumber  int       `json:"pr_number"`
	Timestamp time.Time `json:"timestamp"`
}

// PRRejectedPayload is the system -> Monitor PR_REJECTED payload.
type PRRejectedPayload struct {
	PRNumber  int       `json:"pr_number"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentMessage is the unit of inter-agent communication. It is immutable
// once created — callers must not mutate a message after
// constructing it via bus.CreateMessage.
type AgentMessage struct {
	ID              string      `json:"id"`
	Type            MessageType `json:"type"`
	From            string      `json:"from"`
	To              string      `json:"to"`
	Payload         any         `json:"payload"`
	CorrelationID   string      `json:"correlation_id"`
	RequiresResponse bool       `json:"requires_response"`
	Timestamp       time.Time   `json:"timestamp"`
}
