package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// EventHandler processes a published event
type EventHandler func(ctx context.Context, event models.Event)

// EventService - in-process publish/subscribe bus for application events
type EventService interface {
	// Publish delivers the event to all subscribers without blocking the caller
	Publish(ctx context.Context, event models.Event)

	// Subscribe registers a handler for an event type; returns an
	// unsubscribe function
	Subscribe(eventType models.EventType, handler EventHandler) func()

	// SubscribeAll registers a handler for every event type
	SubscribeAll(handler EventHandler) func()
}
