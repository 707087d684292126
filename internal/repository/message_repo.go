package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMessageRepository implements MessageRepository using GORM
type GormMessageRepository struct {
	db            *gorm.DB
	conversations scopedStore[domain.Conversation]
}

// NewGormMessageRepository creates a new GORM message repository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db, conversations: newScopedStore[domain.Conversation](db, "conversation")}
}

// tenantConversations selects the ids of the tenant's conversations
func (r *GormMessageRepository) tenantConversations(customerID string) *gorm.DB {
	return r.db.Model(&domain.Conversation{}).Select("id").Scopes(TenantScope(customerID))
}

// Send appends an outbound agent message and bumps the conversation's last activity
func (r *GormMessageRepository) Send(ctx context.Context, customerID, senderID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := r.conversations.getForUpdate(ctx, customerID, req.ConversationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	message := &domain.Message{
		ID:             domain.NewID(),
		ConversationID: req.ConversationID,
		Direction:      domain.DirectionOutbound,
		Type:           req.Type,
		Content:        datatypes.JSON(req.Content),
		SenderType:     domain.SenderTypeAgent,
		SenderID:       domain.StringPtr(senderID),
		Status:         domain.MessageStatusSent,
		ExtraData:      datatypesMap(nil),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return nil, translateError(err, "message", "create")
	}

	if _, err := r.conversations.update(ctx, customerID, req.ConversationID, map[string]interface{}{"last_message_at": now}); err != nil {
		return nil, err
	}

	return message, nil
}

// ListByConversation returns the conversation's messages in chronological order
func (r *GormMessageRepository) ListByConversation(ctx context.Context, customerID, conversationID string) ([]*domain.Message, error) {
	if _, err := r.conversations.get(ctx, customerID, conversationID); err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, 0)
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}

// Search finds messages of the tenant whose content contains query, newest first
func (r *GormMessageRepository) Search(ctx context.Context, customerID, query, conversationID string, page domain.PageRequest) ([]*domain.MessageSearchResult, int64, error) {
	if query == "" {
		return nil, 0, domain.InvalidInput("search query is required")
	}

	base := r.db.WithContext(ctx).Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Joins("JOIN contacts ON contacts.id = conversations.contact_id").
		Where("conversations.customer_id = ?", customerID).
		Where(searchAny(query, "CAST(messages.content AS TEXT)"))
	if conversationID != "" {
		base = base.Where("messages.conversation_id = ?", conversationID)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	results := make([]*domain.MessageSearchResult, 0)
	if total == 0 {
		return results, 0, nil
	}

	err := base.Session(&gorm.Session{}).
		Select("messages.*, COALESCE(contacts.name, '') AS contact_name").
		Order("messages.created_at DESC").
		Scopes(Paginate(page)).
		Scan(&results).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search messages: %w", err)
	}

	return results, total, nil
}

// UpdateStatus changes the delivery status of a message of the tenant
func (r *GormMessageRepository) UpdateStatus(ctx context.Context, customerID, id string, status domain.MessageStatus) (*domain.Message, error) {
	if !status.Valid() {
		return nil, domain.InvalidInput("invalid status")
	}

	var message domain.Message
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: column("id"), Value: id}).
		Where("conversation_id IN (?)", r.tenantConversations(customerID)).
		First(&message).Error
	if err != nil {
		return nil, translateError(err, "message", "get")
	}

	err = r.db.WithContext(ctx).Model(&message).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return nil, translateError(err, "message", "update")
	}

	message.Status = status
	return &message, nil
}
