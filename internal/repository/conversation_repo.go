package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// GormConversationRepository implements ConversationRepository using GORM
type GormConversationRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Conversation]
}

// NewGormConversationRepository creates a new GORM conversation repository
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db, store: newScopedStore[domain.Conversation](db, "conversation")}
}

// Create opens a conversation between a contact and a channel of the same tenant
func (r *GormConversationRepository) Create(ctx context.Context, customerID string, req *domain.CreateConversationRequest) (*domain.Conversation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := newScopedStore[domain.Contact](r.db, "contact").get(ctx, customerID, req.ContactID); err != nil {
		return nil, err
	}
	if _, err := newScopedStore[domain.Channel](r.db, "channel").get(ctx, customerID, req.ChannelID); err != nil {
		return nil, err
	}

	conversation := &domain.Conversation{
		ID:         domain.NewID(),
		CustomerID: customerID,
		ContactID:  req.ContactID,
		ChannelID:  req.ChannelID,
		Status:     domain.ConversationStatusOpen,
		Priority:   req.Priority,
		Subject:    req.Subject,
		Tags:       stringSlice(req.Tags),
		ExtraData:  datatypesMap(nil),
	}

	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return nil, translateError(err, "conversation", "create")
	}

	return conversation, nil
}

// Get retrieves a conversation of the tenant
func (r *GormConversationRepository) Get(ctx context.Context, customerID, id string) (*domain.Conversation, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of inbox rows, most recent activity first
func (r *GormConversationRepository) List(ctx context.Context, customerID string, filter domain.ConversationFilter, page domain.PageRequest) ([]*domain.ConversationSummary, int64, error) {
	query := r.store.query(ctx, customerID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Unassigned {
		query = query.Where("assigned_to IS NULL")
	} else if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.ChannelType != "" {
		channels := r.db.Model(&domain.Channel{}).Select("id").
			Scopes(TenantScope(customerID)).
			Where("type = ?", filter.ChannelType)
		query = query.Where("channel_id IN (?)", channels)
	}
	if filter.Search != "" {
		contacts := r.db.Model(&domain.Contact{}).Select("id").
			Scopes(TenantScope(customerID)).
			Where(searchAny(filter.Search, "name", "phone", "email"))
		query = query.Where("contact_id IN (?)", contacts)
	}

	conversations, total, err := r.store.list(query, page, "last_message_at IS NULL, last_message_at DESC, created_at DESC")
	if err != nil {
		return nil, 0, err
	}

	summaries, err := r.summarize(ctx, customerID, conversations)
	if err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

// summarize attaches contact, channel, unread count and last message to each row
func (r *GormConversationRepository) summarize(ctx context.Context, customerID string, conversations []*domain.Conversation) ([]*domain.ConversationSummary, error) {
	summaries := make([]*domain.ConversationSummary, 0, len(conversations))
	if len(conversations) == 0 {
		return summaries, nil
	}

	ids := make([]string, 0, len(conversations))
	contactIDs := make([]string, 0, len(conversations))
	channelIDs := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
		contactIDs = append(contactIDs, c.ContactID)
		channelIDs = append(channelIDs, c.ChannelID)
	}

	db := r.db.WithContext(ctx)

	var contacts []*domain.Contact
	if err := db.Scopes(TenantScope(customerID)).Where("id IN ?", contactIDs).Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversation contacts: %w", err)
	}
	contactByID := make(map[string]*domain.Contact, len(contacts))
	for _, c := range contacts {
		contactByID[c.ID] = c
	}

	var channels []*domain.Channel
	if err := db.Scopes(TenantScope(customerID)).Where("id IN ?", channelIDs).Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversation channels: %w", err)
	}
	channelByID := make(map[string]*domain.Channel, len(channels))
	for _, c := range channels {
		channelByID[c.ID] = c
	}

	var unread []struct {
		ConversationID string
		Total          int64
	}
	err := db.Model(&domain.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ? AND direction = ? AND status <> ?", ids, domain.DirectionInbound, domain.MessageStatusRead).
		Group("conversation_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	unreadByID := make(map[string]int64, len(unread))
	for _, u := range unread {
		unreadByID[u.ConversationID] = u.Total
	}

	for _, c := range conversations {
		summary := &domain.ConversationSummary{
			Conversation: *c,
			Contact:      contactByID[c.ContactID],
			Channel:      channelByID[c.ChannelID],
			UnreadCount:  unreadByID[c.ID],
		}

		var last domain.Message
		err := db.Where("conversation_id = ?", c.ID).
			Order("created_at DESC").
			Limit(1).
			Find(&last).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load last message: %w", err)
		}
		if last.ID != "" {
			summary.LastMessage = &last
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Stats counts the tenant's conversations by status and those assigned to userID
func (r *GormConversationRepository) Stats(ctx context.Context, customerID, userID string) (*domain.ConversationStats, error) {
	byStatus, err := countBy(r.store.query(ctx, customerID), "status")
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations: %w", err)
	}

	stats := &domain.ConversationStats{
		Open:     byStatus[string(domain.ConversationStatusOpen)],
		Assigned: byStatus[string(domain.ConversationStatusAssigned)],
		Closed:   byStatus[string(domain.ConversationStatusClosed)],
	}
	for _, n := range byStatus {
		stats.Total += n
	}

	if err := r.store.query(ctx, customerID).Where("assigned_to = ?", userID).Count(&stats.MyConversations).Error; err != nil {
		return nil, fmt.Errorf("failed to count assigned conversations: %w", err)
	}

	return stats, nil
}

// Assign sets or clears the assignee. A non-nil agent must be an active user
// of the tenant; open and assigned conversations follow the assignee.
func (r *GormConversationRepository) Assign(ctx context.Context, customerID, id string, agentID *string) (*domain.Conversation, error) {
	conversation, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	if agentID != nil {
		if _, err := NewGormUserRepository(r.db).GetActive(ctx, customerID, *agentID); err != nil {
			return nil, err
		}
	}

	return r.store.update(ctx, customerID, id, map[string]interface{}{
		"assigned_to": agentID,
		"status":      conversation.StatusAfterAssignment(agentID),
	})
}

// SetStatus moves a conversation to status
func (r *GormConversationRepository) SetStatus(ctx context.Context, customerID, id string, status domain.ConversationStatus) (*domain.Conversation, error) {
	if !status.Valid() {
		return nil, domain.InvalidInput("invalid status")
	}

	return r.store.update(ctx, customerID, id, map[string]interface{}{"status": status})
}

// SetTags replaces the conversation's tags
func (r *GormConversationRepository) SetTags(ctx context.Context, customerID, id string, tags []string) (*domain.Conversation, error) {
	return r.store.update(ctx, customerID, id, map[string]interface{}{"tags": stringSlice(tags)})
}

// Touch records message activity on the conversation
func (r *GormConversationRepository) Touch(ctx context.Context, customerID, id string, at time.Time) error {
	_, err := r.store.update(ctx, customerID, id, map[string]interface{}{"last_message_at": at})
	return err
}

// countBy groups q by column and returns the row count per value. NULL is counted under "".
func countBy(q *gorm.DB, col string) (map[string]int64, error) {
	var rows []struct {
		Bucket string
		Total  int64
	}
	err := q.Session(&gorm.Session{}).
		Select("COALESCE(" + col + ", '') AS bucket, COUNT(*) AS total").
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Bucket] += row.Total
	}
	return out, nil
}
