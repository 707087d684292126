package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	UserAgent       = "CRM-Multicanal-Webhook/1.0"
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"

	secretBytes = 32
)

// DeliveryRecorder counts deliveries, e.g. *metrics.Metrics.
type DeliveryRecorder interface {
	RecordWebhookDelivery(success bool)
}

// Service signs and posts webhook payloads. Deliveries are single attempts.
type Service struct {
	repos    repository.RepositoryManager
	client   *http.Client
	recorder DeliveryRecorder
}

// NewService creates a webhook service whose deliveries are bounded by timeout.
// recorder may be nil.
func NewService(repos repository.RepositoryManager, timeout time.Duration, recorder DeliveryRecorder) *Service {
	return &Service{
		repos:    repos,
		client:   &http.Client{Timeout: timeout},
		recorder: recorder,
	}
}

// GenerateSecret returns 32 random bytes, url-safe base64 encoded without padding.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sign returns the signature header value for body: "sha256=" + hex HMAC-SHA256.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Test sends the webhook.test payload to a webhook of the caller's tenant and
// records the outcome on the webhook.
func (s *Service) Test(ctx context.Context, customerID, id string) (*domain.WebhookTestResult, error) {
	hook, err := s.repos.Webhook().Get(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"event": domain.EventWebhookTest,
		"data": map[string]interface{}{
			"message":     "This is a test webhook",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"customer_id": customerID,
		},
		"webhook_id": hook.ID,
	}

	return s.deliver(ctx, hook, domain.EventWebhookTest, payload)
}

// Dispatch posts event to every active webhook of its tenant subscribed to it.
func (s *Service) Dispatch(ctx context.Context, event *domain.Event) {
	if !domain.IsWebhookEvent(event.Type) {
		return
	}

	hooks, err := s.repos.Webhook().ListSubscribed(ctx, event.CustomerID, event.Type)
	if err != nil {
		logger.Error(ctx, "Failed to list webhooks for event", zap.String("event_type", event.Type), zap.String("customer_id", event.CustomerID), zap.Error(err))
		return
	}

	for _, hook := range hooks {
		payload := map[string]interface{}{
			"event":      event.Type,
			"event_id":   event.ID,
			"data":       event.Data,
			"timestamp":  event.OccurredAt.Format(time.RFC3339),
			"webhook_id": hook.ID,
		}
		if _, err := s.deliver(ctx, hook, event.Type, payload); err != nil {
			logger.Error(ctx, "Webhook delivery failed", zap.String("webhook_id", hook.ID), zap.Error(err))
		}
	}
}

// HandleEvent adapts Dispatch to the event bus handler signature.
func (s *Service) HandleEvent(event *domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.client.Timeout+5*time.Second)
	defer cancel()
	s.Dispatch(ctx, event)
}

// deliver posts one signed payload. Transport failures are reported in the
// result, not as an error; the error is reserved for bookkeeping failures.
func (s *Service) deliver(ctx context.Context, hook *domain.Webhook, eventName string, payload map[string]interface{}) (*domain.WebhookTestResult, error) {
	// encoding/json sorts map keys, so the signed bytes are canonical
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.Internal(err, "failed to encode webhook payload")
	}

	result := s.post(ctx, hook, eventName, body)

	if s.recorder != nil {
		s.recorder.RecordWebhookDelivery(result.Success)
	}
	if err := s.repos.Webhook().RecordDelivery(ctx, hook.CustomerID, hook.ID, result.Success, time.Now().UTC()); err != nil {
		return result, err
	}

	logger.Info(ctx, "Webhook delivered",
		zap.String("webhook_id", hook.ID),
		zap.String("event", eventName),
		zap.Bool("success", result.Success),
		zap.Int("status_code", result.StatusCode),
		zap.Float64("response_time", result.ResponseTime))

	return result, nil
}

func (s *Service) post(ctx context.Context, hook *domain.Webhook, eventName string, body []byte) *domain.WebhookTestResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return &domain.WebhookTestResult{Success: false, Message: fmt.Sprintf("invalid request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(hook.Secret, body))
	req.Header.Set(EventHeader, eventName)
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return &domain.WebhookTestResult{
			Success:      false,
			ResponseTime: elapsed,
			Message:      fmt.Sprintf("connection error: %v", err),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	result := &domain.WebhookTestResult{
		Success:      resp.StatusCode < 400,
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed,
	}
	if result.Success {
		result.Message = "webhook delivered successfully"
	} else {
		result.Message = fmt.Sprintf("HTTP error %d", resp.StatusCode)
	}
	return result
}
