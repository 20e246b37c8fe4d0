// Package pubsub provides a small generic publish/subscribe broker used to fan
// out pipeline lifecycle events to interested listeners (e.g. the HTTP event stream).
package pubsub

import (
	"context"
	"time"
)

// EventType names a published event. Publishers define their own values.
type EventType string

// Event is a published event with a typed payload.
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
