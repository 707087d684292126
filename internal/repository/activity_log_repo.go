package repository

import (
	"context"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormActivityLogRepository implements ActivityLogRepository using GORM
type GormActivityLogRepository struct {
	db    *gorm.DB
	store scopedStore[domain.ActivityLog]
}

// NewGormActivityLogRepository creates a new GORM activity log repository
func NewGormActivityLogRepository(db *gorm.DB) *GormActivityLogRepository {
	return &GormActivityLogRepository{db: db, store: newScopedStore[domain.ActivityLog](db, "activity log")}
}

// Append writes an audit entry. Entries are never updated.
func (r *GormActivityLogRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	if entry.CustomerID == "" {
		return domain.InvalidInput("activity log requires a customer")
	}
	if entry.ID == "" {
		entry.ID = domain.NewID()
	}
	if entry.Details == nil {
		entry.Details = datatypesMap(nil)
	}

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return translateError(err, "activity log", "create")
	}

	return nil
}

// List retrieves a page of the tenant's audit trail, newest first
func (r *GormActivityLogRepository) List(ctx context.Context, customerID string, filter domain.ActivityLogFilter, page domain.PageRequest) ([]*domain.ActivityLog, int64, error) {
	query := r.store.query(ctx, customerID)

	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	return r.store.list(query, page, "created_at DESC")
}
