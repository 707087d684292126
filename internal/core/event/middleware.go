package event

import (
	"sync"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

// LoggingMiddleware provides logging for all events
func LoggingMiddleware(next EventHandler) EventHandler {
	return func(event *domain.Event) {
		start := time.Now()
		next(event)
		logger.Base().Debug("Event handled",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID),
			zap.String("customer_id", event.CustomerID),
			zap.Duration("duration", time.Since(start)))
	}
}

// EventObserver receives handler timings, e.g. *metrics.Metrics.
type EventObserver interface {
	ObserveEvent(eventType string, duration time.Duration)
}

// MetricsMiddleware reports every handled event to observer
func MetricsMiddleware(observer EventObserver) EventMiddleware {
	return func(next EventHandler) EventHandler {
		return func(event *domain.Event) {
			start := time.Now()
			defer func() {
				observer.ObserveEvent(event.Type, time.Since(start))
			}()
			next(event)
		}
	}
}

// RecoveryMiddleware provides panic recovery for event handlers
func RecoveryMiddleware(next EventHandler) EventHandler {
	return func(event *domain.Event) {
		defer func() {
			if r := recover(); r != nil {
				logger.Base().Error("Panic in event handler",
					zap.String("type", event.Type),
					zap.String("event_id", event.ID),
					zap.Any("panic", r))
			}
		}()

		next(event)
	}
}

// TimeoutMiddleware stops waiting for a handler after timeout
func TimeoutMiddleware(timeout time.Duration) EventMiddleware {
	return func(next EventHandler) EventHandler {
		return func(event *domain.Event) {
			done := make(chan struct{})

			go func() {
				defer close(done)
				next(event)
			}()

			select {
			case <-done:
			case <-time.After(timeout):
				logger.Base().Warn("Event handler timeout", zap.String("type", event.Type), zap.Duration("timeout", timeout))
			}
		}
	}
}

// ValidationMiddleware drops events that cannot be routed to a tenant
func ValidationMiddleware(next EventHandler) EventHandler {
	return func(event *domain.Event) {
		if event == nil {
			logger.Base().Error("Received nil event")
			return
		}

		if event.Type == "" {
			logger.Base().Error("Event type is empty", zap.String("event_id", event.ID))
			return
		}

		if event.CustomerID == "" {
			logger.Base().Error("Event without customer", zap.String("type", event.Type), zap.String("event_id", event.ID))
			return
		}

		next(event)
	}
}

// DeduplicationMiddleware drops an event id seen again within windowSize.
// Each handler wrapped by the chain keeps its own window.
func DeduplicationMiddleware(windowSize time.Duration) EventMiddleware {
	return func(next EventHandler) EventHandler {
		var mu sync.Mutex
		seen := make(map[string]time.Time)

		return func(event *domain.Event) {
			now := time.Now()

			mu.Lock()
			for id, at := range seen {
				if now.Sub(at) > windowSize {
					delete(seen, id)
				}
			}
			if _, dup := seen[event.ID]; dup {
				mu.Unlock()
				logger.Base().Debug("Duplicate event within window", zap.String("type", event.Type), zap.String("event_id", event.ID))
				return
			}
			seen[event.ID] = now
			mu.Unlock()

			next(event)
		}
	}
}

// CreateDefaultMiddlewareChain creates a default middleware chain with common middleware
func CreateDefaultMiddlewareChain() []EventMiddleware {
	return []EventMiddleware{
		RecoveryMiddleware,
		ValidationMiddleware,
		LoggingMiddleware,
	}
}

// CreateProductionMiddlewareChain adds deduplication, a handler timeout and metrics
func CreateProductionMiddlewareChain(observer EventObserver) []EventMiddleware {
	chain := []EventMiddleware{
		RecoveryMiddleware,
		ValidationMiddleware,
		DeduplicationMiddleware(5 * time.Second),
		TimeoutMiddleware(30 * time.Second),
		LoggingMiddleware,
	}
	if observer != nil {
		chain = append(chain, MetricsMiddleware(observer))
	}
	return chain
}
