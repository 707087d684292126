package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/jinzhu/copier"
	"gorm.io/gorm"
)

var activeTicketStatuses = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}

// GormTicketRepository implements TicketRepository using GORM
type GormTicketRepository struct {
	db    *gorm.DB
	store scopedStore[domain.Ticket]
}

// NewGormTicketRepository creates a new GORM ticket repository
func NewGormTicketRepository(db *gorm.DB) *GormTicketRepository {
	return &GormTicketRepository{db: db, store: newScopedStore[domain.Ticket](db, "ticket")}
}

// Create opens a ticket. Linked contact, conversation and assignee must belong to the tenant.
func (r *GormTicketRepository) Create(ctx context.Context, customerID string, req *domain.CreateTicketRequest) (*domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.ContactID != nil {
		if _, err := newScopedStore[domain.Contact](r.db, "contact").get(ctx, customerID, *req.ContactID); err != nil {
			return nil, err
		}
	}
	if req.ConversationID != nil {
		if _, err := newScopedStore[domain.Conversation](r.db, "conversation").get(ctx, customerID, *req.ConversationID); err != nil {
			return nil, err
		}
	}
	if req.AssignedTo != nil {
		if _, err := NewGormUserRepository(r.db).GetActive(ctx, customerID, *req.AssignedTo); err != nil {
			return nil, err
		}
	}

	ticket := &domain.Ticket{}
	if err := copier.Copy(ticket, req); err != nil {
		return nil, fmt.Errorf("failed to copy ticket request: %w", err)
	}
	ticket.ID = domain.NewID()
	ticket.CustomerID = customerID
	ticket.Status = domain.TicketStatusOpen
	ticket.Tags = stringSlice(req.Tags)

	if err := r.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, translateError(err, "ticket", "create")
	}

	return ticket, nil
}

// Get retrieves a ticket of the tenant
func (r *GormTicketRepository) Get(ctx context.Context, customerID, id string) (*domain.Ticket, error) {
	return r.store.get(ctx, customerID, id)
}

// List retrieves a page of the tenant's tickets, newest first
func (r *GormTicketRepository) List(ctx context.Context, customerID string, filter domain.TicketFilter, page domain.PageRequest) ([]*domain.Ticket, int64, error) {
	query := r.store.query(ctx, customerID)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Unassigned {
		query = query.Where("assigned_to IS NULL")
	} else if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Search != "" {
		query = query.Where(searchAny(filter.Search, "title"))
	}

	return r.store.list(query, page, "created_at DESC")
}

// Stats counts the tenant's tickets by status, plus open work by priority and for userID
func (r *GormTicketRepository) Stats(ctx context.Context, customerID, userID string) (*domain.TicketStats, error) {
	byStatus, err := countBy(r.store.query(ctx, customerID), "status")
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	stats := &domain.TicketStats{
		Open:       byStatus[string(domain.TicketStatusOpen)],
		InProgress: byStatus[string(domain.TicketStatusInProgress)],
		Resolved:   byStatus[string(domain.TicketStatusResolved)],
		Closed:     byStatus[string(domain.TicketStatusClosed)],
	}
	for _, n := range byStatus {
		stats.Total += n
	}

	active := r.store.query(ctx, customerID).Where("status IN ?", activeTicketStatuses)

	if err := active.Session(&gorm.Session{}).Where("priority = ?", domain.PriorityHigh).Count(&stats.HighPriorityOpen).Error; err != nil {
		return nil, fmt.Errorf("failed to count high priority tickets: %w", err)
	}
	if err := active.Session(&gorm.Session{}).Where("priority = ?", domain.PriorityUrgent).Count(&stats.UrgentOpen).Error; err != nil {
		return nil, fmt.Errorf("failed to count urgent tickets: %w", err)
	}
	if err := active.Session(&gorm.Session{}).Where("assigned_to = ?", userID).Count(&stats.MyTickets).Error; err != nil {
		return nil, fmt.Errorf("failed to count assigned tickets: %w", err)
	}

	return stats, nil
}

// Update updates a ticket of the tenant
func (r *GormTicketRepository) Update(ctx context.Context, customerID, id string, req *domain.UpdateTicketRequest) (*domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Build update map
	updates := make(map[string]interface{})

	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Tags != nil {
		updates["tags"] = stringSlice(*req.Tags)
	}
	if req.Resolution != nil {
		updates["resolution"] = *req.Resolution
	}

	return r.store.update(ctx, customerID, id, updates)
}

// Assign sets or clears the assignee. Assigning an open ticket starts it.
func (r *GormTicketRepository) Assign(ctx context.Context, customerID, id string, agentID *string) (*domain.Ticket, error) {
	ticket, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"assigned_to": agentID}
	if agentID != nil {
		if _, err := NewGormUserRepository(r.db).GetActive(ctx, customerID, *agentID); err != nil {
			return nil, err
		}
		if ticket.Status == domain.TicketStatusOpen {
			updates["status"] = domain.TicketStatusInProgress
		}
	}

	return r.store.update(ctx, customerID, id, updates)
}

// SetStatus moves a ticket to a new status. resolved_at is stamped on the
// first move into resolved or closed and never changes afterwards.
func (r *GormTicketRepository) SetStatus(ctx context.Context, customerID, id string, req *domain.TicketStatusRequest) (*domain.Ticket, error) {
	if !req.Status.Valid() {
		return nil, domain.InvalidInput("invalid status")
	}

	ticket, err := r.store.getForUpdate(ctx, customerID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status.Terminal() && ticket.ResolvedAt == nil {
		updates["resolved_at"] = time.Now().UTC()
	}
	if req.Resolution != nil {
		updates["resolution"] = *req.Resolution
	}

	return r.store.update(ctx, customerID, id, updates)
}
