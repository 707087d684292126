package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCustomerRepository implements CustomerRepository using GORM.
// The customer row is the tenant itself, so its id is the scope.
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GORM customer repository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// Create creates a new active tenant with the default settings
func (r *GormCustomerRepository) Create(ctx context.Context, req *domain.CreateCustomerRequest) (*domain.Customer, error) {
	customer := &domain.Customer{
		ID:               domain.NewID(),
		Name:             req.Name,
		Email:            normalizeEmail(req.Email),
		Phone:            req.Phone,
		Company:          req.Company,
		SubscriptionPlan: domain.DefaultSubscriptionPlan,
		IsActive:         true,
		Settings:         domain.DefaultCustomerSettings(),
	}

	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, translateError(err, "customer", "create")
	}

	return customer, nil
}

// GetByID retrieves a customer by ID
func (r *GormCustomerRepository) GetByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", customerID).Error; err != nil {
		return nil, translateError(err, "customer", "get")
	}

	return &customer, nil
}

// UpdateProfile updates the editable profile fields of a customer
func (r *GormCustomerRepository) UpdateProfile(ctx context.Context, customerID string, req *domain.UpdateCustomerProfileRequest) (*domain.Customer, error) {
	customer, err := r.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.Name != nil {
		if *req.Name == "" {
			return nil, domain.InvalidInput("name cannot be empty")
		}
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	updates["updated_at"] = time.Now().UTC()

	if err := r.db.WithContext(ctx).Model(customer).Updates(updates).Error; err != nil {
		return nil, translateError(err, "customer", "update")
	}

	return r.GetByID(ctx, customerID)
}

// MergeSettings merges settings over the stored ones and returns the result
func (r *GormCustomerRepository) MergeSettings(ctx context.Context, customerID string, settings map[string]interface{}) (map[string]interface{}, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&customer, "id = ?", customerID).Error
	if err != nil {
		return nil, translateError(err, "customer", "get")
	}

	base := map[string]interface{}(customer.Settings)
	if len(base) == 0 {
		base = domain.DefaultCustomerSettings()
	}
	merged := domain.MergeSettings(base, settings)

	err = r.db.WithContext(ctx).Model(&customer).Updates(map[string]interface{}{
		"settings":   datatypesMap(merged),
		"updated_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update customer settings: %w", err)
	}

	return merged, nil
}

// ExistsByEmail checks whether a tenant is registered with email
func (r *GormCustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Customer{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check customer email: %w", err)
	}

	return count > 0, nil
}
