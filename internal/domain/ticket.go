package domain

import (
	"time"

	"gorm.io/datatypes"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status counts as resolved for reporting.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Ticket is a support case, optionally linked to a contact and a conversation.
type Ticket struct {
	ID             string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID     string                      `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	ConversationID *string                     `json:"conversation_id,omitempty" gorm:"type:varchar(36);index"`
	ContactID      *string                     `json:"contact_id,omitempty" gorm:"type:varchar(36);index"`
	AssignedTo     *string                     `json:"assigned_to,omitempty" gorm:"type:varchar(36);index"`
	Title          string                      `json:"title" gorm:"type:varchar(255);not null"`
	Description    string                      `json:"description" gorm:"type:text"`
	Status         TicketStatus                `json:"status" gorm:"type:varchar(20);not null;index"`
	Priority       Priority                    `json:"priority" gorm:"type:varchar(20);not null"`
	Category       string                      `json:"category" gorm:"type:varchar(100)"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	Resolution     string                      `json:"resolution,omitempty" gorm:"type:text"`
	ResolvedAt     *time.Time                  `json:"resolved_at,omitempty"`
	CreatedAt      time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Ticket
func (Ticket) TableName() string {
	return "tickets"
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	Status     TicketStatus
	Priority   Priority
	Category   string
	AssignedTo string
	Unassigned bool
	Search     string
}

// TicketStats are the ticket board counters. The priority and "my" counters
// only include open and in_progress tickets.
type TicketStats struct {
	Total            int64 `json:"total"`
	Open             int64 `json:"open"`
	InProgress       int64 `json:"in_progress"`
	Resolved         int64 `json:"resolved"`
	Closed           int64 `json:"closed"`
	HighPriorityOpen int64 `json:"high_priority"`
	UrgentOpen       int64 `json:"urgent_priority"`
	MyTickets        int64 `json:"my_tickets"`
}

// CreateTicketRequest represents the request to open a ticket
type CreateTicketRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	Category       string   `json:"category"`
	Tags           []string `json:"tags"`
	ContactID      *string  `json:"contact_id"`
	ConversationID *string  `json:"conversation_id"`
	AssignedTo     *string  `json:"assigned_to"`
}

// Validate checks the title and defaults the priority.
func (r *CreateTicketRequest) Validate() error {
	if r.Title == "" {
		return InvalidInput("title is required")
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !r.Priority.Valid() {
		return InvalidInput("invalid priority")
	}
	return nil
}

// UpdateTicketRequest represents a partial ticket update
type UpdateTicketRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Resolution  *string   `json:"resolution,omitempty"`
}

// Validate checks the priority when present.
func (r *UpdateTicketRequest) Validate() error {
	if r.Title != nil && *r.Title == "" {
		return InvalidInput("title cannot be empty")
	}
	if r.Priority != nil && !r.Priority.Valid() {
		return InvalidInput("invalid priority")
	}
	return nil
}

// TicketStatusRequest represents a status change with an optional resolution note
type TicketStatusRequest struct {
	Status     TicketStatus `json:"status"`
	Resolution *string      `json:"resolution,omitempty"`
}
