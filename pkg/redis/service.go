package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/pkg/logger"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type KeyType string

const (
	// EventsChannel carries domain events between API instances.
	EventsChannel KeyType = "astra_crm_events"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RedisServiceInterface interface {
	GenerateKey(keyType KeyType, identifier string) string
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(string)) error
	Close() error
}

type RedisService struct {
	client *goredis.Client
}

func NewRedisService(config *RedisConfig) (*RedisService, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: 5 * time.Second,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisServiceWithClient(client), nil
}

// NewRedisServiceWithClient wraps an existing client.
func NewRedisServiceWithClient(client *goredis.Client) *RedisService {
	return &RedisService{client: client}
}

// GenerateKey generates a Redis key with the given key type and identifier
func (r *RedisService) GenerateKey(keyType KeyType, identifier string) string {
	if identifier == "" {
		return string(keyType)
	}
	return fmt.Sprintf("%s:%s", string(keyType), identifier)
}

// Publish publishes a JSON encoded message to a Redis channel
func (r *RedisService) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to a Redis channel and hands every payload to handler
// until ctx is cancelled. It returns once the subscription is confirmed.
func (r *RedisService) Subscribe(ctx context.Context, channel string, handler func(string)) error {
	if handler == nil {
		return fmt.Errorf("handler is required")
	}

	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					logger.Base().Warn("Redis subscription closed", zap.String("channel", channel))
					return
				}
				handler(msg.Payload)
			}
		}
	}()

	return nil
}

// Close closes the underlying client
func (r *RedisService) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
