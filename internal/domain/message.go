package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead, MessageStatusFailed:
		return true
	}
	return false
}

const (
	SenderTypeAgent   = "agent"
	SenderTypeContact = "contact"
	SenderTypeSystem  = "system"
)

// Message is one entry of a conversation. Messages are append-only; only the
// delivery status changes after creation. Content is stored as raw JSON so
// channel-specific payloads survive untouched.
type Message struct {
	ID             string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	ConversationID string            `json:"conversation_id" gorm:"type:varchar(36);not null;index"`
	ExternalID     string            `json:"external_id,omitempty" gorm:"type:varchar(255);index"`
	Direction      MessageDirection  `json:"direction" gorm:"type:varchar(10);not null"`
	Type           string            `json:"type" gorm:"type:varchar(30);not null"`
	Content        datatypes.JSON    `json:"content"`
	SenderType     string            `json:"sender_type" gorm:"type:varchar(20);not null"`
	SenderID       *string           `json:"sender_id,omitempty" gorm:"type:varchar(36);index"`
	Status         MessageStatus     `json:"status" gorm:"type:varchar(20);not null"`
	ExtraData      datatypes.JSONMap `json:"extra_data,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Message
func (Message) TableName() string {
	return "messages"
}

// SendMessageRequest represents an outbound message from an agent
type SendMessageRequest struct {
	ConversationID string          `json:"conversation_id"`
	Content        json.RawMessage `json:"content"`
	Type           string          `json:"type"`
}

// Validate checks required fields and defaults the type.
func (r *SendMessageRequest) Validate() error {
	if r.ConversationID == "" || isEmptyJSON(r.Content) {
		return InvalidInput("conversation_id and content are required")
	}
	if r.Type == "" {
		r.Type = "text"
	}
	return nil
}

// MessageStatusRequest represents a delivery status change
type MessageStatusRequest struct {
	Status MessageStatus `json:"status"`
}

// MessageSearchResult is a search hit with the conversation it belongs to.
type MessageSearchResult struct {
	Message
	ContactName string `json:"contact_name"`
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", `""`, "{}", "[]":
		return true
	}
	return false
}
