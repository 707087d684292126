package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Contact is an end customer reachable through one or more channels.
// Email and phone are nullable so the per-tenant unique indexes ignore blanks.
type Contact struct {
	ID           string                     `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID   string                     `json:"customer_id" gorm:"type:varchar(36);not null;index;uniqueIndex:uni_contacts_customer_email,priority:1;uniqueIndex:uni_contacts_customer_phone,priority:1"`
	Name         string                     `json:"name" gorm:"type:varchar(255)"`
	Email        *string                    `json:"email" gorm:"type:varchar(255);uniqueIndex:uni_contacts_customer_email,priority:2"`
	Phone        *string                    `json:"phone" gorm:"type:varchar(50);uniqueIndex:uni_contacts_customer_phone,priority:2"`
	WhatsAppID   string                     `json:"whatsapp_id" gorm:"column:whatsapp_id;type:varchar(100)"`
	InstagramID  string                     `json:"instagram_id" gorm:"type:varchar(100)"`
	MessengerID  string                     `json:"messenger_id" gorm:"type:varchar(100)"`
	TelegramID   string                     `json:"telegram_id" gorm:"type:varchar(100)"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	CustomFields datatypes.JSONMap          `json:"custom_fields"`
	IsBlocked    bool                       `json:"is_blocked" gorm:"not null"`
	CreatedAt    time.Time                  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time                  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Contact
func (Contact) TableName() string {
	return "contacts"
}

// ContactStats are the activity counters shown on a contact's detail view.
type ContactStats struct {
	TotalConversations int64 `json:"total_conversations"`
	TotalMessages      int64 `json:"total_messages"`
	TotalTickets       int64 `json:"total_tickets"`
}

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Search         string
	Tags           []string
	IncludeBlocked bool
}

// CreateContactRequest represents the request to create a contact
type CreateContactRequest struct {
	Name         string                 `json:"name"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	WhatsAppID   string                 `json:"whatsapp_id"`
	InstagramID  string                 `json:"instagram_id"`
	MessengerID  string                 `json:"messenger_id"`
	TelegramID   string                 `json:"telegram_id"`
	Tags         []string               `json:"tags"`
	CustomFields map[string]interface{} `json:"custom_fields"`
}

// Validate requires at least one identifying field.
func (r *CreateContactRequest) Validate() error {
	if r.Name == "" && r.Email == "" && r.Phone == "" && r.WhatsAppID == "" &&
		r.InstagramID == "" && r.MessengerID == "" && r.TelegramID == "" {
		return InvalidInput("at least one of name, email, phone or a channel id is required")
	}
	return nil
}

// UpdateContactRequest represents a partial contact update
type UpdateContactRequest struct {
	Name         *string                 `json:"name,omitempty"`
	Email        *string                 `json:"email,omitempty"`
	Phone        *string                 `json:"phone,omitempty"`
	WhatsAppID   *string                 `json:"whatsapp_id,omitempty"`
	InstagramID  *string                 `json:"instagram_id,omitempty"`
	MessengerID  *string                 `json:"messenger_id,omitempty"`
	TelegramID   *string                 `json:"telegram_id,omitempty"`
	Tags         *[]string               `json:"tags,omitempty"`
	CustomFields *map[string]interface{} `json:"custom_fields,omitempty"`
}

// ImportContactsResult summarizes a bulk upsert.
type ImportContactsResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}
