package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormContactRepository implements ContactRepository using GORM
type GormContactRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Contact]
}

// NewGormContactRepository creates a new GORM contact repository
func NewGormContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db, store: newScopedStore[domain.Contact](db, "contact")}
}

// Create creates a contact after checking the email and phone dedup keys
func (r *GormContactRepository) Create(ctx context.Context, customerID string, req *domain.CreateContactRequest) (*domain.Contact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	email, phone := normalizeEmail(req.Email), strings.TrimSpace(req.Phone)
	if err := r.checkDuplicate(ctx, customerID, "", email, phone); err != nil {
		return nil, err
	}

	contact := &domain.Contact{}
	if err := copier.Copy(contact, req); err != nil {
		return nil, fmt.Errorf("failed to copy contact request: %w", err)
	}
	contact.ID = domain.NewID()
	contact.CustomerID = customerID
	contact.Email = domain.StringPtr(email)
	contact.Phone = domain.StringPtr(phone)
	contact.Tags = stringSlice(req.Tags)
	contact.CustomFields = datatypesMap(req.CustomFields)
	contact.IsBlocked = false

	if err := r.db.WithContext(ctx).Create(contact).Error; err != nil {
		return nil, translateError(err, "contact", "create")
	}

	return contact, nil
}

// Import upserts contacts matched by email, then phone. Items failing
// validation are reported in Errors and skipped.
func (r *GormContactRepository) Import(ctx context.Context, customerID string, reqs []domain.CreateContactRequest) (*domain.ImportContactsResult, error) {
	result := &domain.ImportContactsResult{Errors: make([]string, 0)}

	for i := range reqs {
		req := &reqs[i]
		if err := req.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("contact %d: %s", i+1, err.Error()))
			continue
		}

		existing, err := r.findByIdentity(ctx, customerID, normalizeEmail(req.Email), strings.TrimSpace(req.Phone))
		if err != nil {
			return nil, err
		}

		if existing == nil {
			if _, err := r.Create(ctx, customerID, req); err != nil {
				if domain.KindOf(err) == domain.KindInternal {
					return nil, err
				}
				result.Errors = append(result.Errors, fmt.Sprintf("contact %d: %s", i+1, err.Error()))
				continue
			}
			result.Created++
			continue
		}

		if _, err := r.store.update(ctx, customerID, existing.ID, importUpdates(req)); err != nil {
			if domain.KindOf(err) == domain.KindInternal {
				return nil, err
			}
			result.Errors = append(result.Errors, fmt.Sprintf("contact %d: %s", i+1, err.Error()))
			continue
		}
		result.Updated++
	}

	return result, nil
}

// importUpdates keeps stored values for fields the import leaves blank
func importUpdates(req *domain.CreateContactRequest) map[string]interface{} {
	updates := make(map[string]interface{})
	set := func(column, value string) {
		if value != "" {
			updates[column] = value
		}
	}
	set("name", req.Name)
	set("whatsapp_id", req.WhatsAppID)
	set("instagram_id", req.InstagramID)
	set("messenger_id", req.MessengerID)
	set("telegram_id", req.TelegramID)
	if len(req.Tags) > 0 {
		updates["tags"] = stringSlice(req.Tags)
	}
	if len(req.CustomFields) > 0 {
		updates["custom_fields"] = datatypesMap(req.CustomFields)
	}
	return updates
}

// Get retrieves a contact of the tenant
func (r *GormContactRepository) Get(ctx context.Context, customerID, id string) (*domain.Contact, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of the tenant's contacts ordered by name
func (r *GormContactRepository) List(ctx context.Context, customerID string, filter domain.ContactFilter, page domain.PageRequest) ([]*domain.Contact, int64, error) {
	query := r.store.query(ctx, customerID)

	if !filter.IncludeBlocked {
		query = query.Where("is_blocked = ?", false)
	}
	if filter.Search != "" {
		query = query.Where(searchAny(filter.Search, "name", "email", "phone"))
	}
	for _, tag := range filter.Tags {
		query = query.Where(jsonArrayContains("tags", tag))
	}

	return r.store.list(query, page, "name ASC")
}

// Stats counts the contact's conversations, messages and tickets
func (r *GormContactRepository) Stats(ctx context.Context, customerID, id string) (*domain.ContactStats, error) {
	if _, err := r.store.get(ctx, customerID, id); err != nil {
		return nil, err
	}

	stats := &domain.ContactStats{}
	db := r.db.WithContext(ctx)

	if err := db.Model(&domain.Conversation{}).
		Scopes(TenantScope(customerID)).
		Where("contact_id = ?", id).
		Count(&stats.TotalConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count contact conversations: %w", err)
	}

	if err := db.Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.customer_id = ? AND conversations.contact_id = ?", customerID, id).
		Count(&stats.TotalMessages).Error; err != nil {
		return nil, fmt.Errorf("failed to count contact messages: %w", err)
	}

	if err := db.Model(&domain.Ticket{}).
		Scopes(TenantScope(customerID)).
		Where("contact_id = ?", id).
		Count(&stats.TotalTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to count contact tickets: %w", err)
	}

	return stats, nil
}

// Update updates a contact, rechecking the dedup keys it changes
func (r *GormContactRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateContactRequest) (*domain.Contact, error) {
	// Build update map
	updates := make(map[string]interface{})

	var email, phone string
	if req.Email != nil {
		email = normalizeEmail(*req.Email)
		updates["email"] = domain.StringPtr(email)
	}
	if req.Phone != nil {
		phone = strings.TrimSpace(*req.Phone)
		updates["phone"] = domain.StringPtr(phone)
	}
	if email != "" || phone != "" {
		if err := r.checkDuplicate(ctx, customerID, id, email, phone); err != nil {
			return nil, err
		}
	}

	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.WhatsAppID != nil {
		updates["whatsapp_id"] = *req.WhatsAppID
	}
	if req.InstagramID != nil {
		updates["instagram_id"] = *req.InstagramID
	}
	if req.MessengerID != nil {
		updates["messenger_id"] = *req.MessengerID
	}
	if req.TelegramID != nil {
		updates["telegram_id"] = *req.TelegramID
	}
	if req.Tags != nil {
		updates["tags"] = stringSlice(*req.Tags)
	}
	if req.CustomFields != nil {
		updates["custom_fields"] = datatypesMap(*req.CustomFields)
	}

	return r.store.update(ctx, customerID, id, updates)
}

// SetBlocked blocks or unblocks a contact
func (r *GormContactRepository) SetBlocked(ctx context.Context, customerID, id string, blocked bool) (*domain.Contact, error) {
	return r.store.update(ctx, customerID, id, map[string]interface{}{"is_blocked": blocked})
}

// checkDuplicate returns Conflict when another contact of the tenant already
// holds email or, failing that, phone. excludeID skips the contact being updated.
func (r *GormContactRepository) checkDuplicate(ctx context.Context, customerID, excludeID, email, phone string) error {
	check := func(field, value string) error {
		if value == "" {
			return nil
		}
		query := r.store.query(ctx, customerID).
			Where(clause.Eq{Column: column(field), Value: value})
		if excludeID != "" {
			query = query.Where(clause.Neq{Column: column("id"), Value: excludeID})
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check contact %s: %w", field, err)
		}
		if count > 0 {
			return domain.Conflict("contact with this %s already exists", field)
		}
		return nil
	}

	if err := check("email", email); err != nil {
		return err
	}
	return check("phone", phone)
}

// findByIdentity returns the tenant contact holding email, else phone, or nil
func (r *GormContactRepository) findByIdentity(ctx context.Context, customerID, email, phone string) (*domain.Contact, error) {
	for _, key := range []struct{ column, value string }{{"email", email}, {"phone", phone}} {
		if key.value == "" {
			continue
		}
		var contact domain.Contact
		err := r.store.query(ctx, customerID).
			Where(clause.Eq{Column: column(key.column), Value: key.value}).
			Limit(1).
			Find(&contact).Error
		if err != nil {
			return nil, fmt.Errorf("failed to find contact by %s: %w", key.column, err)
		}
		if contact.ID != "" {
			return &contact, nil
		}
	}
	return nil, nil
}

// jsonArrayContains matches rows whose JSON string array column holds value.
// It compares against the encoded element so the same SQL runs on postgres and sqlite.
func jsonArrayContains(col, value string) clause.Expression {
	encoded, _ := json.Marshal(value)
	pattern := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(string(encoded)) + "%"
	return clause.Expr{SQL: "CAST(" + col + " AS TEXT) LIKE ? ESCAPE '\\'", Vars: []interface{}{pattern}}
}
