package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// EventHandler represents a function that handles events
type EventHandler func(event *domain.Event)

// EventMiddleware represents middleware that can wrap event handlers
type EventMiddleware func(next EventHandler) EventHandler

// Publisher is the side of the bus handlers use after a commit.
type Publisher interface {
	Publish(event *domain.Event) error
}

// EventBus defines the interface for event bus operations
type EventBus interface {
	Publisher
	Subscribe(eventType string, handler EventHandler) error
	SubscribeWithTimeout(eventType string, handler EventHandler, timeout time.Duration) error
	SubscribeOrdered(eventType string, handler EventHandler) error
	Use(middleware EventMiddleware)
	Close() error
	GetStats() BusStats
}

// BusStats contains statistics about the event bus
type BusStats struct {
	TotalEvents     int64            `json:"total_events"`
	EventsByType    map[string]int64 `json:"events_by_type"`
	ActiveHandlers  int              `json:"active_handlers"`
	SubscriberCount map[string]int   `json:"subscriber_count"`
}

// orderedQueueSize bounds the backlog of an ordered subscriber before
// publishers block.
const orderedQueueSize = 1024

// subscriber is a wrapped handler. Ordered subscribers own a queue drained by a
// single goroutine; the others get a goroutine per event.
type subscriber struct {
	handle EventHandler
	queue  chan *domain.Event
}

// DefaultEventBus is the default implementation of EventBus. Handlers run on
// their own goroutine, except ordered subscribers which see events in publish
// order. Close waits for the ones in flight.
type DefaultEventBus struct {
	subscribers map[string][]*subscriber
	middleware  []EventMiddleware
	closed      bool
	mutex       sync.RWMutex
	inflight    sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	stats       BusStats
	statsMutex  sync.RWMutex
}

// NewEventBus creates a new event bus instance
func NewEventBus() *DefaultEventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &DefaultEventBus{
		subscribers: make(map[string][]*subscriber),
		middleware:  make([]EventMiddleware, 0),
		ctx:         ctx,
		cancel:      cancel,
		stats: BusStats{
			EventsByType:    make(map[string]int64),
			SubscriberCount: make(map[string]int),
		},
	}
}

// Publish fans event out to the subscribers of its type and to AllEvents subscribers
func (b *DefaultEventBus) Publish(event *domain.Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	b.mutex.RLock()
	defer b.mutex.RUnlock()
	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	subs := make([]*subscriber, 0, len(b.subscribers[event.Type])+len(b.subscribers[AllEvents]))
	subs = append(subs, b.subscribers[event.Type]...)
	subs = append(subs, b.subscribers[AllEvents]...)

	b.updateStats(event.Type)

	if len(subs) == 0 {
		logger.Base().Debug("No subscribers for event type", zap.String("type", event.Type))
		return nil
	}

	b.inflight.Add(len(subs))
	for _, sub := range subs {
		// Queues are only closed under the write lock, so sending here is safe.
		if sub.queue != nil {
			sub.queue <- event
			continue
		}
		go func(h EventHandler) {
			defer b.inflight.Done()
			b.run(h, event)
		}(sub.handle)
	}

	return nil
}

// run calls h, keeping a panicking handler from taking the process down
func (b *DefaultEventBus) run(h EventHandler, event *domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Base().Error("Event handler panic", zap.String("type", event.Type), zap.Any("panic", r))
		}
	}()
	h(event)
}

// drain delivers an ordered subscriber's queue one event at a time
func (b *DefaultEventBus) drain(sub *subscriber) {
	for event := range sub.queue {
		b.run(sub.handle, event)
		b.inflight.Done()
	}
}

// Subscribe subscribes to events of a specific type, or AllEvents
func (b *DefaultEventBus) Subscribe(eventType string, handler EventHandler) error {
	return b.SubscribeWithTimeout(eventType, handler, 0)
}

// SubscribeWithTimeout subscribes to events with a timeout
func (b *DefaultEventBus) SubscribeWithTimeout(eventType string, handler EventHandler, timeout time.Duration) error {
	return b.subscribe(eventType, handler, timeout, false)
}

// SubscribeOrdered delivers events to handler one at a time, in the order
// they were published.
func (b *DefaultEventBus) SubscribeOrdered(eventType string, handler EventHandler) error {
	return b.subscribe(eventType, handler, 0, true)
}

func (b *DefaultEventBus) subscribe(eventType string, handler EventHandler, timeout time.Duration, ordered bool) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	// Wrap handler with timeout if specified
	finalHandler := handler
	if timeout > 0 {
		finalHandler = b.withTimeout(handler, timeout)
	}

	// Apply middleware chain
	for i := len(b.middleware) - 1; i >= 0; i-- {
		finalHandler = b.middleware[i](finalHandler)
	}

	sub := &subscriber{handle: finalHandler}
	if ordered {
		sub.queue = make(chan *domain.Event, orderedQueueSize)
		go b.drain(sub)
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)

	// Update subscriber count
	b.statsMutex.Lock()
	b.stats.SubscriberCount[eventType]++
	b.stats.ActiveHandlers++
	b.statsMutex.Unlock()

	logger.Base().Debug("Subscribed to event type", zap.String("event_type", eventType))

	return nil
}

// Use adds middleware to the event bus. It wraps handlers subscribed afterwards.
func (b *DefaultEventBus) Use(middleware EventMiddleware) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.middleware = append(b.middleware, middleware)
}

// Close stops accepting events, cancels timed handlers and waits for the rest
func (b *DefaultEventBus) Close() error {
	b.mutex.Lock()
	if b.closed {
		b.mutex.Unlock()
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for _, sub := range subs {
			if sub.queue != nil {
				close(sub.queue)
			}
		}
	}
	b.subscribers = make(map[string][]*subscriber)
	b.middleware = make([]EventMiddleware, 0)
	b.mutex.Unlock()

	b.cancel()
	b.inflight.Wait()

	logger.Base().Info("Event bus closed")
	return nil
}

// GetStats returns current bus statistics
func (b *DefaultEventBus) GetStats() BusStats {
	b.statsMutex.RLock()
	defer b.statsMutex.RUnlock()

	// Create a copy to avoid race conditions
	stats := BusStats{
		TotalEvents:     b.stats.TotalEvents,
		EventsByType:    make(map[string]int64, len(b.stats.EventsByType)),
		ActiveHandlers:  b.stats.ActiveHandlers,
		SubscriberCount: make(map[string]int, len(b.stats.SubscriberCount)),
	}

	for k, v := range b.stats.EventsByType {
		stats.EventsByType[k] = v
	}

	for k, v := range b.stats.SubscriberCount {
		stats.SubscriberCount[k] = v
	}

	return stats
}

// withTimeout wraps a handler with timeout functionality
func (b *DefaultEventBus) withTimeout(handler EventHandler, timeout time.Duration) EventHandler {
	return func(event *domain.Event) {
		done := make(chan struct{})

		go func() {
			defer close(done)
			handler(event)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			logger.Base().Warn("Event handler timeout", zap.String("type", event.Type), zap.Duration("timeout", timeout))
		case <-b.ctx.Done():
			logger.Base().Info("Event handler cancelled", zap.String("type", event.Type))
		}
	}
}

// updateStats updates event statistics
func (b *DefaultEventBus) updateStats(eventType string) {
	b.statsMutex.Lock()
	defer b.statsMutex.Unlock()

	b.stats.TotalEvents++
	b.stats.EventsByType[eventType]++
}
