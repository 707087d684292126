package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormTemplateRepository implements TemplateRepository using GORM
type GormTemplateRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Template]
}

// NewGormTemplateRepository creates a new GORM template repository
func NewGormTemplateRepository(db *gorm.DB) *GormTemplateRepository {
	return &GormTemplateRepository{db: db, store: newScopedStore[domain.Template](db, "template")}
}

// Create stores a template and the variables found in its content
func (r *GormTemplateRepository) Create(ctx context.Context, customerID string, req *domain.CreateTemplateRequest) (*domain.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template := &domain.Template{
		ID:         domain.NewID(),
		CustomerID: customerID,
		Name:       req.Name,
		Content:    req.Content,
		Type:       req.Type,
		Category:   req.Category,
		Variables:  stringSlice(domain.ExtractVariables(req.Content)),
		UsageCount: 0,
		IsActive:   req.IsActive == nil || *req.IsActive,
	}

	if err := r.db.WithContext(ctx).Create(template).Error; err != nil {
		return nil, translateError(err, "template", "create")
	}

	return template, nil
}

// Import creates every valid template and reports the invalid ones
func (r *GormTemplateRepository) Import(ctx context.Context, customerID string, reqs []domain.CreateTemplateRequest) (*domain.ImportTemplatesResult, error) {
	result := &domain.ImportTemplatesResult{Errors: make([]string, 0)}

	for i := range reqs {
		if _, err := r.Create(ctx, customerID, &reqs[i]); err != nil {
			if domain.KindOf(err) == domain.KindInternal {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("template %d: %s", i+1, err.Error()))
			continue
		}
		result.Created++
	}

	return result, nil
}

// Get retrieves a template of the tenant
func (r *GormTemplateRepository) Get(ctx context.Context, customerID, id string) (*domain.Template, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of templates, most used first
func (r *GormTemplateRepository) List(ctx context.Context, customerID string, filter domain.TemplateFilter, page domain.PageRequest) ([]*domain.Template, int64, error) {
	query := r.store.query(ctx, customerID)

	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Search != "" {
		query = query.Where(searchAny(filter.Search, "name"))
	}

	return r.store.list(query, page, "usage_count DESC, created_at DESC")
}

// Categories returns the predefined categories plus those used by the tenant's active templates, sorted
func (r *GormTemplateRepository) Categories(ctx context.Context, customerID string) ([]string, error) {
	var used []string
	err := r.store.query(ctx, customerID).
		Where("is_active = ? AND category IS NOT NULL AND category <> ''", true).
		Distinct().
		Pluck("category", &used).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list template categories: %w", err)
	}

	seen := make(map[string]struct{}, len(domain.PredefinedTemplateCategories)+len(used))
	categories := make([]string, 0, len(domain.PredefinedTemplateCategories)+len(used))
	for _, c := range append(append([]string{}, domain.PredefinedTemplateCategories...), used...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return categories, nil
}

// Update updates a template; a new content replaces the variable list
func (r *GormTemplateRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateTemplateRequest) (*domain.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Content != nil {
		updates["content"] = *req.Content
		updates["variables"] = stringSlice(domain.ExtractVariables(*req.Content))
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	return r.store.update(ctx, customerID, id, updates)
}

// Use renders the template with values and counts the use
func (r *GormTemplateRepository) Use(ctx context.Context, customerID, id string, values map[string]string) (*domain.RenderedTemplate, error) {
	template, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(template).Updates(map[string]interface{}{
		"usage_count": gorm.Expr("usage_count + ?", 1),
		"updated_at":  time.Now().UTC(),
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to increment template usage: %w", err)
	}

	updated, err := r.store.get(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	if values == nil {
		values = map[string]string{}
	}

	return &domain.RenderedTemplate{
		ProcessedContent: domain.RenderTemplate(template.Content, values),
		OriginalContent:  template.Content,
		VariablesUsed:    values,
		Template:         updated,
	}, nil
}

// Delete deletes a template of the tenant
func (r *GormTemplateRepository) Delete(ctx context.Context, customerID, id string) error {
	return r.store.delete(ctx, customerID, id)
}
