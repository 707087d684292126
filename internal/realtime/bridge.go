package realtime

import (
	"context"
	"encoding/json"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/ClareAI/astra-crm-service/pkg/redis"
	"go.uber.org/zap"
)

// Bridge relays domain events through a redis channel so every API instance
// delivers them to its own websocket clients.
type Bridge struct {
	hub     *Hub
	redis   redis.RedisServiceInterface
	channel string
}

func NewBridge(hub *Hub, svc redis.RedisServiceInterface) *Bridge {
	return &Bridge{
		hub:     hub,
		redis:   svc,
		channel: svc.GenerateKey(redis.EventsChannel, ""),
	}
}

// Start subscribes to the events channel until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	return b.redis.Subscribe(ctx, b.channel, b.receive)
}

// HandleEvent publishes event for all instances, this one included. When the
// publish fails the event is still delivered locally.
func (b *Bridge) HandleEvent(event *domain.Event) {
	if err := b.redis.Publish(context.Background(), b.channel, event); err != nil {
		logger.Base().Warn("Failed to relay event through redis, delivering locally",
			zap.String("type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err))
		b.hub.HandleEvent(event)
	}
}

func (b *Bridge) receive(payload string) {
	var event domain.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Base().Warn("Dropping malformed relayed event", zap.Error(err))
		return
	}
	b.hub.HandleEvent(&event)
}
