package bus

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmforge/swarmforge/internal/domain"
)

func TestBus_SubscribeDuplicateFails(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("moderator", func(domain.AgentMessage) error { return nil }))

	err := b.Subscribe("moderator", func(domain.AgentMessage) error { return nil })
	var dup *ErrAlreadySubscribed
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "moderator", dup.AgentID)
}

func TestBus_UnsubscribeThenResubscribe(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error { return nil }))
	b.Unsubscribe("techlead")
	assert.False(t, b.IsSubscribed("techlead"))
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error { return nil }))
}

func TestBus_DirectSendDeliversToRecipientOnly(t *testing.T) {
	b := New()
	var techleadGot, monitorGot int

	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error {
		techleadGot++
		return nil
	}))
	require.NoError(t, b.Subscribe("monitor", func(domain.AgentMessage) error {
		monitorGot++
		return nil
	}))

	msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", "do the thing", "", false)
	require.NoError(t, err)

	result := b.Send(msg)
	assert.True(t, result.Delivered)
	assert.Empty(t, result.HandlerErrors)
	assert.Equal(t, 1, techleadGot)
	assert.Equal(t, 0, monitorGot)
}

func TestBus_SendToUnknownRecipientIsNotDelivered(t *testing.T) {
	b := New()
	msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "nobody", nil, "", false)
	require.NoError(t, err)

	result := b.Send(msg)
	assert.False(t, result.Delivered)
}

func TestBus_CreateMessageRejectsUnknownType(t *testing.T) {
	b := New()
	_, err := b.CreateMessage(domain.MessageType("NOT_A_REAL_TYPE"), "a", "b", nil, "", false)
	var unknown *ErrUnknownMessageType
	require.ErrorAs(t, err, &unknown)
}

func TestBus_BroadcastExcludesSender(t *testing.T) {
	b := New()
	var senderGot, otherGot int

	require.NoError(t, b.Subscribe("moderator", func(domain.AgentMessage) error {
		senderGot++
		return nil
	}))
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error {
		otherGot++
		return nil
	}))
	require.NoError(t, b.Subscribe("monitor", func(domain.AgentMessage) error {
		otherGot++
		return nil
	}))

	msg, err := b.CreateMessage(domain.MsgPRApproved, "moderator", domain.Broadcast, nil, "", false)
	require.NoError(t, err)

	result := b.Send(msg)
	assert.True(t, result.Delivered)
	assert.Equal(t, 0, senderGot)
	assert.Equal(t, 2, otherGot)
}

func TestBus_PanickingHandlerEmitsAgentErrorWithoutStoppingOtherSubscribers(t *testing.T) {
	b := New()
	var observerGot int
	var sawAgentError bool

	require.NoError(t, b.Subscribe("flaky", func(domain.AgentMessage) error {
		panic("kaboom")
	}))
	require.NoError(t, b.Subscribe("observer", func(m domain.AgentMessage) error {
		observerGot++
		if m.Type == domain.MsgAgentError {
			sawAgentError = true
		}
		return nil
	}))

	msg, err := b.CreateMessage(domain.MsgPRFeedback, "moderator", domain.Broadcast, nil, "", false)
	require.NoError(t, err)

	result := b.Send(msg)
	assert.True(t, result.Delivered)
	require.Len(t, result.HandlerErrors, 1)
	assert.Contains(t, result.HandlerErrors[0].Error(), "panicked")

	// observer receives both the original broadcast and the AGENT_ERROR
	// broadcast emitted in reaction to the panic.
	assert.Equal(t, 2, observerGot)
	assert.True(t, sawAgentError)
}

func TestBus_HandlerReturningErrorAlsoEmitsAgentError(t *testing.T) {
	b := New()
	var sawAgentError bool

	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error {
		return errors.New("backend exploded")
	}))
	require.NoError(t, b.Subscribe("monitor", func(m domain.AgentMessage) error {
		if m.Type == domain.MsgAgentError {
			sawAgentError = true
		}
		return nil
	}))

	msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", nil, "", false)
	require.NoError(t, err)

	result := b.Send(msg)
	require.Len(t, result.HandlerErrors, 1)
	assert.True(t, sawAgentError)
}

func TestBus_MessageHistoryPreservesSendOrder(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error { return nil }))

	var sent []string
	for i := 0; i < 5; i++ {
		msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", fmt.Sprintf("payload-%d", i), "", false)
		require.NoError(t, err)
		b.Send(msg)
		sent = append(sent, msg.ID)
	}

	history := b.GetMessageHistory()
	require.Len(t, history, 5)
	for i, m := range history {
		assert.Equal(t, sent[i], m.ID)
	}
}

func TestBus_HistoryForCorrelationFiltersToChain(t *testing.T) {
	b := New()
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error { return nil }))

	first, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", nil, "", false)
	require.NoError(t, err)
	b.Send(first)

	followUp, err := b.CreateMessage(domain.MsgPRFeedback, "moderator", "techlead", nil, first.CorrelationID, false)
	require.NoError(t, err)
	b.Send(followUp)

	unrelated, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", nil, "", false)
	require.NoError(t, err)
	b.Send(unrelated)

	chain := b.HistoryForCorrelation(first.CorrelationID)
	require.Len(t, chain, 2)
	assert.Equal(t, first.ID, chain[0].ID)
	assert.Equal(t, followUp.ID, chain[1].ID)
}

func TestBus_CreateMessageAssignsCorrelationIDWhenOmitted(t *testing.T) {
	b := New()
	msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", nil, "", false)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.CorrelationID)
}

func TestBus_ConcurrentSendsAreSafe(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	require.NoError(t, b.Subscribe("techlead", func(domain.AgentMessage) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := b.CreateMessage(domain.MsgTaskAssigned, "orchestrator", "techlead", i, "", false)
			if err != nil {
				return
			}
			b.Send(msg)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.Len(t, b.GetMessageHistory(), 20)
}
