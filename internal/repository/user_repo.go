package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM
type GormUserRepository struct {
	db    *gorm.DB
	store scopedStore[domain.User]
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db, store: newScopedStore[domain.User](db, "user")}
}

// Create adds an active user to the tenant. req.PasswordHash must already be set.
func (r *GormUserRepository) Create(ctx context.Context, customerID string, req *domain.CreateUserRequest) (*domain.User, error) {
	if req.PasswordHash == "" {
		return nil, domain.InvalidInput("password is required")
	}

	email := normalizeEmail(req.Email)
	exists, err := r.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Conflict("email already registered")
	}

	user := &domain.User{
		ID:           domain.NewID(),
		CustomerID:   customerID,
		Email:        email,
		PasswordHash: req.PasswordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		IsActive:     true,
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translateError(err, "user", "create")
	}

	return user, nil
}

// FindByID retrieves a user by ID in any tenant. It backs principal resolution only.
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "user", "get")
	}

	return &user, nil
}

// FindByEmail retrieves a user by email in any tenant. It backs login only.
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error; err != nil {
		return nil, translateError(err, "user", "get")
	}

	return &user, nil
}

// Get retrieves a user of the tenant
func (r *GormUserRepository) Get(ctx context.Context, customerID, id string) (*domain.User, error) {
	return r.store.get(ctx, customerID, id)
}

// GetActive retrieves an active user of the tenant, the check behind assignments
func (r *GormUserRepository) GetActive(ctx context.Context, customerID, id string) (*domain.User, error) {
	user, err := r.store.get(ctx, customerID, id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.NotFound("user not found")
	}

	return user, nil
}

// List retrieves a page of the tenant's users
func (r *GormUserRepository) List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.User, int64, error) {
	return r.store.list(r.store.query(ctx, customerID), page, "created_at DESC")
}

// ListActive retrieves every active user of the tenant, for reports
func (r *GormUserRepository) ListActive(ctx context.Context, customerID string) ([]*domain.User, error) {
	var users []*domain.User
	err := r.store.query(ctx, customerID).
		Where("is_active = ?", true).
		Order("first_name ASC, last_name ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}

	return users, nil
}

// Update updates a user of the tenant
func (r *GormUserRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateUserRequest) (*domain.User, error) {
	// Build update map
	updates := make(map[string]interface{})

	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	return r.store.update(ctx, customerID, id, updates)
}

// UpdatePassword replaces the password hash of a user of the tenant
func (r *GormUserRepository) UpdatePassword(ctx context.Context, customerID, id, passwordHash string) error {
	_, err := r.store.update(ctx, customerID, id, map[string]interface{}{"password_hash": passwordHash})
	return err
}

// TouchLastLogin records a successful login
func (r *GormUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}

// ExistsByEmail checks whether any tenant already uses email
func (r *GormUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("email = ?", normalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user email: %w", err)
	}

	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
