package events

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service implements EventService with an in-process pub/sub pattern.
// Handlers are keyed by subscription ID so unsubscribing removes exactly
// the handler that was registered.
type Service struct {
	mu     sync.RWMutex
	nextID int
	byType map[models.EventType]map[int]interfaces.EventHandler
	all    map[int]interfaces.EventHandler
	logger arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		byType: make(map[models.EventType]map[int]interfaces.EventHandler),
		all:    make(map[int]interfaces.EventHandler),
		logger: logger,
	}
}

// Subscribe registers a handler for an event type and returns its
// unsubscribe function.
func (s *Service) Subscribe(eventType models.EventType, handler interfaces.EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.byType[eventType] == nil {
		s.byType[eventType] = make(map[int]interfaces.EventHandler)
	}
	s.byType[eventType][id] = handler

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.byType[eventType])).
		Msg("Event handler subscribed")

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byType[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type.
func (s *Service) SubscribeAll(handler interfaces.EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.all[id] = handler

	s.logger.Debug().
		Int("subscriber_count", len(s.all)).
		Msg("Catch-all event handler subscribed")

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.all, id)
	}
}

// Publish sends an event to all subscribers asynchronously.
func (s *Service) Publish(ctx context.Context, event models.Event) {
	s.mu.RLock()
	handlers := make([]interfaces.EventHandler, 0, len(s.byType[event.Type])+len(s.all))
	for _, handler := range s.byType[event.Type] {
		handlers = append(handlers, handler)
	}
	for _, handler := range s.all {
		handlers = append(handlers, handler)
	}
	s.mu.RUnlock()

	if len(handlers) == 0 {
		s.logger.Debug().
			Str("event_type", string(event.Type)).
			Msg("No subscribers for event")
		return
	}

	s.logger.Debug().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(handlers)).
		Msg("Publishing event")

	for _, handler := range handlers {
		handler := handler
		common.SafeGo(s.logger, "publishEvent", func() {
			handler(ctx, event)
		})
	}
}
