package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

type PubSubConfig struct {
	ProjectID string
	TopicName string
	// PubID prefixes the "name" attribute so subscriptions can filter by environment.
	PubID string
}

// Topic is the part of *pubsub.Topic the service needs.
type Topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
	Stop()
}

type PubSubService struct {
	client *pubsub.Client
	topic  Topic
	config *PubSubConfig
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("Topic does not exist, creating", zap.String("topic", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
		logger.Base().Info("Topic created successfully", zap.String("topic", cfg.TopicName))
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// NewPubSubServiceWithTopic builds a service around an existing topic.
func NewPubSubServiceWithTopic(topic Topic, cfg *PubSubConfig) *PubSubService {
	return &PubSubService{topic: topic, config: cfg}
}

// EventMessage builds the Pub/Sub message for a domain event. Attributes carry
// the routing fields so subscribers can filter without decoding the body.
func (p *PubSubService) EventMessage(event *domain.Event) (*pubsub.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	name := event.ID
	if p.config != nil && p.config.PubID != "" {
		name = fmt.Sprintf("%s:%s", p.config.PubID, event.ID)
	}

	attrs := map[string]string{
		"name":        name,
		"event_type":  event.Type,
		"customer_id": event.CustomerID,
	}
	if event.ConversationID != "" {
		attrs["conversation_id"] = event.ConversationID
	}

	return &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}, nil
}

// PublishEvent publishes a domain event and waits for the server ack
func (p *PubSubService) PublishEvent(ctx context.Context, event *domain.Event) error {
	message, err := p.EventMessage(event)
	if err != nil {
		return err
	}

	result := p.topic.Publish(ctx, message)
	serverID, err := result.Get(ctx)
	if err != nil {
		logger.Base().Error("Failed to publish domain event",
			zap.String("event_type", event.Type),
			zap.String("customer_id", event.CustomerID),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logger.Base().Debug("Published domain event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("customer_id", event.CustomerID),
		zap.String("server_id", serverID))

	return nil
}

func (p *PubSubService) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
