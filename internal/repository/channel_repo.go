package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormChannelRepository implements ChannelRepository using GORM
type GormChannelRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Channel]
}

// NewGormChannelRepository creates a new GORM channel repository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db, store: newScopedStore[domain.Channel](db, "channel")}
}

// Create creates a channel; a tenant holds at most one channel per type
func (r *GormChannelRepository) Create(ctx context.Context, customerID string, req *domain.CreateChannelRequest) (*domain.Channel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var count int64
	if err := r.store.query(ctx, customerID).Where("type = ?", req.Type).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check channel type: %w", err)
	}
	if count > 0 {
		return nil, domain.Conflict("channel of type %s already exists", req.Type)
	}

	channel := &domain.Channel{
		ID:          domain.NewID(),
		CustomerID:  customerID,
		Type:        req.Type,
		Name:        req.Name,
		Config:      datatypesMap(req.Config),
		Credentials: datatypesMap(req.Credentials),
		IsActive:    true,
		IsConnected: false,
	}

	if err := r.db.WithContext(ctx).Create(channel).Error; err != nil {
		// The unique index catches a concurrent create that passed the check
		return nil, translateError(err, "channel", "create")
	}

	return channel, nil
}

// Get retrieves a channel of the tenant
func (r *GormChannelRepository) Get(ctx context.Context, customerID, id string) (*domain.Channel, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of the tenant's channels
func (r *GormChannelRepository) List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.Channel, int64, error) {
	return r.store.list(r.store.query(ctx, customerID), page, "created_at DESC")
}

// Update updates a channel of the tenant
func (r *GormChannelRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateChannelRequest) (*domain.Channel, error) {
	// Build update map
	updates := make(map[string]interface{})

	if req.Name != nil {
		if *req.Name == "" {
			return nil, domain.InvalidInput("name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Config != nil {
		updates["config"] = datatypesMap(*req.Config)
	}
	if req.Credentials != nil {
		updates["credentials"] = datatypesMap(*req.Credentials)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	return r.store.update(ctx, customerID, id, updates)
}

// MarkConnected records a successful connection test
func (r *GormChannelRepository) MarkConnected(ctx context.Context, customerID, id string, at time.Time) (*domain.Channel, error) {
	return r.store.update(ctx, customerID, id, map[string]interface{}{
		"is_connected": true,
		"last_sync":    at,
	})
}

// MarkSynced stamps a sync of an active channel
func (r *GormChannelRepository) MarkSynced(ctx context.Context, customerID, id string, at time.Time) (*domain.Channel, error) {
	channel, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}
	if !channel.IsActive {
		return nil, domain.InvalidInput("channel is not active")
	}

	return r.store.update(ctx, customerID, id, map[string]interface{}{"last_sync": at})
}

// Delete deletes a channel that no conversation references
func (r *GormChannelRepository) Delete(ctx context.Context, customerID, id string) error {
	if _, err := r.store.getForUpdate(ctx, customerID, id); err != nil {
		return err
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Conversation{}).
		Scopes(TenantScope(customerID)).
		Where("channel_id = ?", id).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to count channel conversations: %w", err)
	}
	if count > 0 {
		return domain.Conflict("cannot delete channel with existing conversations")
	}

	return r.store.delete(ctx, customerID, id)
}
