package repository

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/jinzhu/copier"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormAutomationRepository implements AutomationRepository using GORM
type GormAutomationRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Automation]
}

// NewGormAutomationRepository creates a new GORM automation repository
func NewGormAutomationRepository(db *gorm.DB) *GormAutomationRepository {
	return &GormAutomationRepository{db: db, store: newScopedStore[domain.Automation](db, "automation")}
}

// Create stores a new automation, active unless the request says otherwise
func (r *GormAutomationRepository) Create(ctx context.Context, customerID string, req *domain.CreateAutomationRequest) (*domain.Automation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	automation := &domain.Automation{}
	if err := copier.Copy(automation, req); err != nil {
		return nil, fmt.Errorf("failed to copy automation request: %w", err)
	}
	automation.ID = domain.NewID()
	automation.CustomerID = customerID
	automation.TriggerConfig = datatypesMap(req.TriggerConfig)
	automation.Actions = datatypes.JSONSlice[domain.AutomationAction](req.Actions)
	automation.Conditions = datatypesMap(req.Conditions)
	automation.IsActive = req.IsActive == nil || *req.IsActive
	automation.ExecutionCount = 0

	if err := r.db.WithContext(ctx).Create(automation).Error; err != nil {
		return nil, translateError(err, "automation", "create")
	}

	return automation, nil
}

// Get retrieves an automation of the tenant
func (r *GormAutomationRepository) Get(ctx context.Context, customerID, id string) (*domain.Automation, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of the tenant's automations
func (r *GormAutomationRepository) List(ctx context.Context, customerID string, filter domain.AutomationFilter, page domain.PageRequest) ([]*domain.Automation, int64, error) {
	query := r.store.query(ctx, customerID)

	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.TriggerType != "" {
		query = query.Where("trigger_type = ?", filter.TriggerType)
	}

	return r.store.list(query, page, "created_at DESC")
}

// Update updates an automation of the tenant
func (r *GormAutomationRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateAutomationRequest) (*domain.Automation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.TriggerType != nil {
		updates["trigger_type"] = *req.TriggerType
	}
	if req.TriggerConfig != nil {
		updates["trigger_config"] = datatypesMap(*req.TriggerConfig)
	}
	if req.Actions != nil {
		updates["actions"] = datatypes.JSONSlice[domain.AutomationAction](*req.Actions)
	}
	if req.Conditions != nil {
		updates["conditions"] = datatypesMap(*req.Conditions)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	return r.store.update(ctx, customerID, id, updates)
}

// Toggle flips the active flag
func (r *GormAutomationRepository) Toggle(ctx context.Context, customerID, id string) (*domain.Automation, error) {
	automation, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	return r.store.update(ctx, customerID, id, map[string]interface{}{"is_active": !automation.IsActive})
}

// Delete deletes an automation of the tenant
func (r *GormAutomationRepository) Delete(ctx context.Context, customerID, id string) error {
	return r.store.delete(ctx, customerID, id)
}
