package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormWebhookRepository implements WebhookRepository using GORM
type GormWebhookRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Webhook]
}

// NewGormWebhookRepository creates a new GORM webhook repository
func NewGormWebhookRepository(db *gorm.DB) *GormWebhookRepository {
	return &GormWebhookRepository{db: db, store: newScopedStore[domain.Webhook](db, "webhook")}
}

// Create registers an active webhook with the given signing secret
func (r *GormWebhookRepository) Create(ctx context.Context, customerID string, req *domain.CreateWebhookRequest, secret string) (*domain.Webhook, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	webhook := &domain.Webhook{
		ID:           domain.NewID(),
		CustomerID:   customerID,
		URL:          req.URL,
		Events:       stringSlice(req.Events),
		Secret:       secret,
		IsActive:     true,
		FailureCount: 0,
	}

	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		return nil, translateError(err, "webhook", "create")
	}

	return webhook, nil
}

// Get retrieves a webhook of the tenant
func (r *GormWebhookRepository) Get(ctx context.Context, customerID, id string) (*domain.Webhook, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of the tenant's webhooks
func (r *GormWebhookRepository) List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.Webhook, int64, error) {
	return r.store.list(r.store.query(ctx, customerID), page, "created_at DESC")
}

// ListSubscribed returns the tenant's active webhooks listening to event
func (r *GormWebhookRepository) ListSubscribed(ctx context.Context, customerID, event string) ([]*domain.Webhook, error) {
	var webhooks []*domain.Webhook
	err := r.store.query(ctx, customerID).
		Where("is_active = ?", true).
		Where(jsonArrayContains("events", event)).
		Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed webhooks: %w", err)
	}

	subscribed := make([]*domain.Webhook, 0, len(webhooks))
	for _, w := range webhooks {
		if w.Subscribed(event) {
			subscribed = append(subscribed, w)
		}
	}
	return subscribed, nil
}

// Update updates a webhook of the tenant
func (r *GormWebhookRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateWebhookRequest) (*domain.Webhook, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.URL != nil {
		updates["url"] = *req.URL
	}
	if req.Events != nil {
		updates["events"] = stringSlice(*req.Events)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	return r.store.update(ctx, customerID, id, updates)
}

// RecordDelivery stamps a successful delivery or counts a failed one
func (r *GormWebhookRepository) RecordDelivery(ctx context.Context, customerID, id string, success bool, at time.Time) error {
	updates := map[string]interface{}{}
	if success {
		updates["last_delivery"] = at
	} else {
		updates["failure_count"] = gorm.Expr("failure_count + ?", 1)
	}

	_, err := r.store.update(ctx, customerID, id, updates)
	return err
}

// Delete deletes a webhook of the tenant
func (r *GormWebhookRepository) Delete(ctx context.Context, customerID, id string) error {
	return r.store.delete(ctx, customerID, id)
}
