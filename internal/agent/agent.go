// Package agent provides the lifecycle and error-handling base every
// orchestration agent (Moderator, TechLead, Monitor) embeds. The base
// owns subscribing/unsubscribing to the bus and converting a handler's
// failure into an AGENT_ERROR broadcast; each agent supplies only its
// own HandleMessage.
package agent

import (
	"fmt"
	"sync/atomic"

	"github.com/swarmforge/swarmforge/internal/bus"
	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
)

// Handler is the polymorphic message-handling hook every agent supplies.
type Handler interface {
	HandleMessage(msg domain.AgentMessage) error
}

// FatalError, when returned (or wrapped) from HandleMessage, tells the
// Base to re-raise after broadcasting AGENT_ERROR instead of swallowing
// the failure. Moderator task-management errors (missing task id,
// unknown task) are fatal
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Fatal wraps err so the Base treats it as a fatal handler failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Cause: err}
}

// Base implements agent lifecycle: start/stop, send, and
// the catch-log-broadcast-and-maybe-reraise error path around
// HandleMessage.
type Base struct {
	AgentID string
	Bus     *bus.Bus

	running atomic.Bool
	inner   Handler
}

// NewBase constructs a Base for agentID, wrapping inner as the agent's
// message handler. inner is typically the concrete agent itself,
// embedding *Base and implementing HandleMessage.
func NewBase(agentID string, b *bus.Bus, inner Handler) *Base {
	return &Base{AgentID: agentID, Bus: b, inner: inner}
}

// IsRunning reports whether the agent is currently subscribed to the bus.
func (a *Base) IsRunning() bool { return a.running.Load() }

// Start subscribes the agent's HandleMessage to the bus under its id and
// marks it running. Starting an already-running agent is a no-op that
// returns nil; a Subscribe failure (e.g. AlreadySubscribed for an id
// another handler holds) is returned as-is.
func (a *Base) Start() error {
	if a.running.Load() {
		return nil
	}
	if err := a.Bus.Subscribe(a.AgentID, a.dispatch); err != nil {
		return err
	}
	a.running.Store(true)
	log.Info(log.CatAgent, "agent started", "agent_id", a.AgentID)
	return nil
}

// Stop unsubscribes the agent from the bus and clears the running flag.
func (a *Base) Stop() {
	if !a.running.Load() {
		return
	}
	a.Bus.Unsubscribe(a.AgentID)
	a.running.Store(false)
	log.Info(log.CatAgent, "agent stopped", "agent_id", a.AgentID)
}

// SendMessage constructs a message with this agent as sender and
// dispatches it through the bus.
func (a *Base) SendMessage(msgType domain.MessageType, to string, payload any, correlationID string, requiresResponse bool) (bus.SendResult, error) {
	msg, err := a.Bus.CreateMessage(msgType, a.AgentID, to, payload, correlationID, requiresResponse)
	if err != nil {
		return bus.SendResult{}, err
	}
	return a.Bus.Send(msg), nil
}

// dispatch is what gets registered with the bus. It calls the agent's
// HandleMessage, and on failure logs with full context, broadcasts
// AGENT_ERROR, and re-raises only if the failure was marked fatal.
func (a *Base) dispatch(msg domain.AgentMessage) error {
	err := a.inner.HandleMessage(msg)
	if err == nil {
		return nil
	}

	log.ErrorErr(log.CatAgent, "agent handler failed", err, "agent_id", a.AgentID, "message_id", msg.ID, "message_type", msg.Type)

	errMsg, buildErr := a.Bus.CreateMessage(domain.MsgAgentError, a.AgentID, domain.Broadcast, domain.AgentErrorPayload{
		ErrorType:        fmt.Sprintf("%T", err),
		ErrorMessage:     err.Error(),
		OriginatingID:    msg.ID,
		OriginatingAgent: a.AgentID,
	}, msg.CorrelationID, false)
	if buildErr == nil {
		a.Bus.Send(errMsg)
	}

	var fatal *FatalError
	if isFatal(err, &fatal) {
		return err
	}
	return nil
}

func isFatal(err error, target **FatalError) bool {
	for err != nil {
		if fe, ok := err.(*FatalError); ok {
			*target = fe
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
