// Package pubsub provides a generic publish/subscribe event system used
// for in-process fan-out of the structured logger's live feed. Only
// LogLineEvent is published; MetricRecordedEvent and AlertFiredEvent
// have no publisher.
package pubsub

import (
	"context"
	"time"
)

// EventType labels what kind of occurrence an Event carries.
type EventType string

const (
	// LogLineEvent carries one rendered log line.
	LogLineEvent EventType = "log_line"
	// MetricRecordedEvent announces a persisted metric.
	MetricRecordedEvent EventType = "metric_recorded"
	// AlertFiredEvent announces a persisted alert.
	AlertFiredEvent EventType = "alert_fired"
)

// Event is a published occurrence with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
