package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ConversationStatus is the lifecycle state of a conversation
type ConversationStatus string

const (
	ConversationStatusOpen     ConversationStatus = "open"
	ConversationStatusAssigned ConversationStatus = "assigned"
	ConversationStatusClosed   ConversationStatus = "closed"
	ConversationStatusArchived ConversationStatus = "archived"
)

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusOpen, ConversationStatusAssigned, ConversationStatusClosed, ConversationStatusArchived:
		return true
	}
	return false
}

// Conversation is a thread with one contact over one channel.
type Conversation struct {
	ID            string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID    string                      `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	ContactID     string                      `json:"contact_id" gorm:"type:varchar(36);not null;index"`
	ChannelID     string                      `json:"channel_id" gorm:"type:varchar(36);not null;index"`
	AssignedTo    *string                     `json:"assigned_to" gorm:"type:varchar(36);index"`
	Status        ConversationStatus          `json:"status" gorm:"type:varchar(20);not null;index"`
	Priority      Priority                    `json:"priority" gorm:"type:varchar(20);not null"`
	Subject       string                      `json:"subject" gorm:"type:varchar(255)"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
	ExtraData     datatypes.JSONMap           `json:"extra_data,omitempty"`
	LastMessageAt *time.Time                  `json:"last_message_at,omitempty" gorm:"index"`
	CreatedAt     time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// StatusAfterAssignment returns the status a conversation moves to when its
// assignee changes: assigned with an agent, open without one.
func (c *Conversation) StatusAfterAssignment(agentID *string) ConversationStatus {
	if agentID != nil {
		return ConversationStatusAssigned
	}
	return ConversationStatusOpen
}

// ConversationFilter narrows conversation listings.
// AssignedTo accepts a user id, "me" or "unassigned"; handlers resolve "me".
type ConversationFilter struct {
	Status      ConversationStatus
	ChannelType ChannelType
	AssignedTo  string
	Unassigned  bool
	Search      string
}

// ConversationSummary is a list row: the conversation plus what an inbox shows next to it.
type ConversationSummary struct {
	Conversation
	Contact     *Contact `json:"contact,omitempty"`
	Channel     *Channel `json:"channel,omitempty"`
	UnreadCount int64    `json:"unread_count"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// ConversationStats are the inbox counters.
type ConversationStats struct {
	Total           int64 `json:"total"`
	Open            int64 `json:"open"`
	Assigned        int64 `json:"assigned"`
	Closed          int64 `json:"closed"`
	MyConversations int64 `json:"my_conversations"`
}

// CreateConversationRequest represents the request to open a conversation
type CreateConversationRequest struct {
	ContactID string   `json:"contact_id"`
	ChannelID string   `json:"channel_id"`
	Subject   string   `json:"subject"`
	Priority  Priority `json:"priority"`
	Tags      []string `json:"tags"`
}

// Validate checks references and defaults the priority.
func (r *CreateConversationRequest) Validate() error {
	if r.ContactID == "" || r.ChannelID == "" {
		return InvalidInput("contact_id and channel_id are required")
	}
	if r.Priority == "" {
		r.Priority = PriorityNormal
	}
	if !r.Priority.Valid() {
		return InvalidInput("invalid priority")
	}
	return nil
}

// AssignRequest carries the new assignee; a null agent_id unassigns.
type AssignRequest struct {
	AgentID *string `json:"agent_id"`
}

// ConversationStatusRequest represents a status change
type ConversationStatusRequest struct {
	Status ConversationStatus `json:"status"`
}

// TagsRequest replaces a conversation's tags
type TagsRequest struct {
	Tags []string `json:"tags"`
}
