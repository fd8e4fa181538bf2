// Package bus implements the in-process message bus that mediates every
// interaction between agents. Dispatch is synchronous
// within the sender's call stack: Send does not return until the target
// handler has returned or panicked, which is what lets ProjectState
// mutations stay lock-free under single-threaded operation and a PR's
// whole feedback chain materialize as one call stack.
package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/swarmforge/swarmforge/internal/domain"
	"github.com/swarmforge/swarmforge/internal/log"
)

// Handler processes an incoming AgentMessage. A Handler that returns an
// error is treated the same as one that panics: the bus catches it,
// converts it into an AGENT_ERROR broadcast, and (for a broadcast
// dispatch) keeps delivering to the remaining subscribers.
type Handler func(msg domain.AgentMessage) error

// ErrAlreadySubscribed is returned by Subscribe when agentID already has
// a registered handler.
type ErrAlreadySubscribed struct{ AgentID string }

func (e *ErrAlreadySubscribed) Error() string {
	return fmt.Sprintf("agent %q is already subscribed", e.AgentID)
}

// ErrUnknownMessageType is returned by CreateMessage when msgType is not
// in the closed enumeration the bus recognizes.
type ErrUnknownMessageType struct{ Type domain.MessageType }

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Type)
}

// SendResult reports what happened when a message was routed.
type SendResult struct {
	// Delivered is true if a handler existed for the recipient (or, for
	// a broadcast, if at least one subscriber other than the sender
	// existed).
	Delivered bool
	// HandlerErrors collects every error/panic raised by a handler that
	// received the message (a broadcast can accumulate more than one).
	HandlerErrors []error
}

// Bus is the in-process publish/subscribe router.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	history  []domain.AgentMessage
	tracing  *spanTracker
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		tracing:  newSpanTracker(),
	}
}

// Subscribe registers handler as the single handler for agentID. Calling
// Subscribe twice for the same agentID without an intervening
// Unsubscribe fails with ErrAlreadySubscribed.
func (b *Bus) Subscribe(agentID string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[agentID]; exists {
		return &ErrAlreadySubscribed{AgentID: agentID}
	}
	b.handlers[agentID] = handler
	return nil
}

// Unsubscribe removes agentID's handler, if any. It is a no-op if
// agentID was never subscribed.
func (b *Bus) Unsubscribe(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, agentID)
}

// IsSubscribed reports whether agentID currently has a registered
// handler.
func (b *Bus) IsSubscribed(agentID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[agentID]
	return ok
}

// CreateMessage constructs an immutable AgentMessage with a fresh id and
// the current timestamp. correlationID may be empty, in which case a
// fresh one is minted — every message belongs to exactly one correlation
// chain.
func (b *Bus) CreateMessage(msgType domain.MessageType, from, to string, payload any, correlationID string, requiresResponse bool) (domain.AgentMessage, error) {
	if !domain.KnownMessageTypes[msgType] {
		return domain.AgentMessage{}, &ErrUnknownMessageType{Type: msgType}
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return domain.AgentMessage{
		ID:               uuid.NewString(),
		Type:             msgType,
		From:             from,
		To:               to,
		Payload:          payload,
		CorrelationID:    correlationID,
		RequiresResponse: requiresResponse,
		Timestamp:        time.Now(),
	}, nil
}

// Send routes msg to the handler whose agent id equals msg.To. If msg.To
// is domain.Broadcast, msg is delivered to every subscriber except
// msg.From. The message is appended to history regardless of delivery
// outcome. Send does not return until every invoked handler has returned
// (or been caught panicking/erroring); dispatch is synchronous within
// the sender's call stack.
func (b *Bus) Send(msg domain.AgentMessage) SendResult {
	b.mu.Lock()
	b.history = append(b.history, msg)
	b.mu.Unlock()

	log.Debug(log.CatBus, "dispatching message", "type", msg.Type, "from", msg.From, "to", msg.To, "correlation_id", msg.CorrelationID)

	_, span := b.tracing.startSpan(msg)
	var result SendResult
	if msg.To == domain.Broadcast {
		result = b.sendBroadcast(msg)
	} else {
		result = b.sendDirect(msg)
	}
	endSpan(span, result)
	return result
}

func (b *Bus) sendDirect(msg domain.AgentMessage) SendResult {
	b.mu.RLock()
	handler, ok := b.handlers[msg.To]
	b.mu.RUnlock()

	if !ok {
		log.Warn(log.CatBus, "no handler for recipient", "to", msg.To, "type", msg.Type)
		return SendResult{Delivered: false}
	}

	if err := b.invoke(msg, msg.To, handler); err != nil {
		b.emitAgentError(msg, msg.To, err)
		return SendResult{Delivered: true, HandlerErrors: []error{err}}
	}
	return SendResult{Delivered: true}
}

func (b *Bus) sendBroadcast(msg domain.AgentMessage) SendResult {
	b.mu.RLock()
	targets := make(map[string]Handler, len(b.handlers))
	for id, h := range b.handlers {
		if id == msg.From {
			continue // no message is delivered to its own sender on broadcast
		}
		targets[id] = h
	}
	b.mu.RUnlock()

	result := SendResult{Delivered: len(targets) > 0}
	for id, handler := range targets {
		if err := b.invoke(msg, id, handler); err != nil {
			result.HandlerErrors = append(result.HandlerErrors, err)
			b.emitAgentError(msg, id, err)
		}
	}
	return result
}

// invoke calls handler, converting a panic into an error so a crashing
// subscriber cannot unwind past the bus: a crashing handler is caught,
// logged, and does not stop subsequent subscribers on a broadcast.
func (b *Bus) invoke(msg domain.AgentMessage, recipient string, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", recipient, r)
		}
	}()
	if hErr := handler(msg); hErr != nil {
		return fmt.Errorf("handler for %s returned error: %w", recipient, hErr)
	}
	return nil
}

// emitAgentError converts a handler failure into an AGENT_ERROR broadcast
// so interested parties can observe it. This
// broadcast is appended to history directly (not re-entered through
// Send) to avoid recursively re-dispatching to the very handler whose
// failure triggered it, while still giving every other subscriber a
// chance to react.
func (b *Bus) emitAgentError(origin domain.AgentMessage, failed string, cause error) {
	log.ErrorErr(log.CatBus, "handler error converted to AGENT_ERROR", cause, "originating_id", origin.ID, "originating_type", origin.Type)

	errMsg, err := b.CreateMessage(domain.MsgAgentError, failed, domain.Broadcast, domain.AgentErrorPayload{
		ErrorType:     fmt.Sprintf("%T", cause),
		ErrorMessage:  cause.Error(),
		OriginatingID: origin.ID,
	}, origin.CorrelationID, false)
	if err != nil {
		log.Error(log.CatBus, "failed to construct AGENT_ERROR message", "error", err.Error())
		return
	}

	b.mu.Lock()
	b.history = append(b.history, errMsg)
	targets := make(map[string]Handler, len(b.handlers))
	for id, h := range b.handlers {
		if id == errMsg.From {
			continue
		}
		targets[id] = h
	}
	b.mu.Unlock()

	for id, handler := range targets {
		// AGENT_ERROR handlers are best-effort observers; a failure here
		// is logged but does not recurse into another AGENT_ERROR storm.
		if err := b.invoke(errMsg, id, handler); err != nil {
			log.ErrorErr(log.CatBus, "AGENT_ERROR subscriber failed", err, "agent", id)
		}
	}
}

// GetMessageHistory returns every message sent so far, in publication
// order, for diagnostics and tests.
func (b *Bus) GetMessageHistory() []domain.AgentMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.AgentMessage, len(b.history))
	copy(out, b.history)
	return out
}

// HistoryForCorrelation returns, in order, every message sharing
// correlationID.
func (b *Bus) HistoryForCorrelation(correlationID string) []domain.AgentMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []domain.AgentMessage
	for _, m := range b.history {
		if m.CorrelationID == correlationID {
			out = append(out, m)
		}
	}
	return out
}
