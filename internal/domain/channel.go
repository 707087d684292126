package domain

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ChannelType represents the messaging network behind a channel
type ChannelType string

const (
	ChannelTypeWhatsApp  ChannelType = "whatsapp"
	ChannelTypeInstagram ChannelType = "instagram"
	ChannelTypeMessenger ChannelType = "messenger"
	ChannelTypeSMS       ChannelType = "sms"
	ChannelTypeEmail     ChannelType = "email"
	ChannelTypeTelegram  ChannelType = "telegram"
)

func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeWhatsApp, ChannelTypeInstagram, ChannelTypeMessenger,
		ChannelTypeSMS, ChannelTypeEmail, ChannelTypeTelegram:
		return true
	}
	return false
}

// Channel is a tenant's connection to a messaging network. A tenant holds at
// most one channel per type (unique index uni_channels_customer_type).
type Channel struct {
	ID          string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID  string            `json:"customer_id" gorm:"type:varchar(36);not null;index;uniqueIndex:uni_channels_customer_type,priority:1"`
	Type        ChannelType       `json:"type" gorm:"type:varchar(20);not null;uniqueIndex:uni_channels_customer_type,priority:2"`
	Name        string            `json:"name" gorm:"type:varchar(255);not null"`
	Config      datatypes.JSONMap `json:"config"`
	Credentials datatypes.JSONMap `json:"-"`
	IsActive    bool              `json:"is_active" gorm:"not null"`
	IsConnected bool              `json:"is_connected" gorm:"not null"`
	LastSync    *time.Time        `json:"last_sync,omitempty"`
	CreatedAt   time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Channel
func (Channel) TableName() string {
	return "channels"
}

// RedactedConfig returns a copy of the channel config where values of keys
// containing "secret" or "token" are masked.
func (c *Channel) RedactedConfig() map[string]interface{} {
	return RedactSecrets(c.Config)
}

// RedactSecrets masks values whose key contains "secret" or "token", case-insensitively.
func RedactSecrets(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "secret") || strings.Contains(lk, "token") {
			out[k] = "***"
			continue
		}
		out[k] = v
	}
	return out
}

// CreateChannelRequest represents the request to create a channel
type CreateChannelRequest struct {
	Type        ChannelType            `json:"type"`
	Name        string                 `json:"name"`
	Config      map[string]interface{} `json:"config"`
	Credentials map[string]interface{} `json:"credentials"`
}

// Validate checks required fields and the channel type.
func (r *CreateChannelRequest) Validate() error {
	if r.Type == "" || r.Name == "" {
		return InvalidInput("type and name are required")
	}
	if !r.Type.Valid() {
		return InvalidInput("invalid channel type")
	}
	return nil
}

// UpdateChannelRequest represents a partial channel update
type UpdateChannelRequest struct {
	Name        *string                 `json:"name,omitempty"`
	Config      *map[string]interface{} `json:"config,omitempty"`
	Credentials *map[string]interface{} `json:"credentials,omitempty"`
	IsActive    *bool                   `json:"is_active,omitempty"`
}

// ChannelTypeInfo describes a supported channel type for client setup screens.
type ChannelTypeInfo struct {
	Type           ChannelType `json:"type"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Features       []string    `json:"features"`
	RequiredFields []string    `json:"required_fields"`
}

// ChannelTypeCatalog lists every supported channel type and the config keys it needs.
func ChannelTypeCatalog() []ChannelTypeInfo {
	return []ChannelTypeInfo{
		{
			Type:           ChannelTypeWhatsApp,
			Name:           "WhatsApp Business",
			Description:    "WhatsApp Business API integration",
			Features:       []string{"text", "images", "documents", "templates"},
			RequiredFields: []string{"access_token", "phone_number_id", "business_account_id"},
		},
		{
			Type:           ChannelTypeInstagram,
			Name:           "Instagram Messaging",
			Description:    "Instagram direct messages",
			Features:       []string{"text", "images", "quick_replies"},
			RequiredFields: []string{"access_token", "instagram_account_id"},
		},
		{
			Type:           ChannelTypeMessenger,
			Name:           "Facebook Messenger",
			Description:    "Facebook Messenger conversations",
			Features:       []string{"text", "images", "buttons", "templates"},
			RequiredFields: []string{"access_token", "page_id"},
		},
		{
			Type:           ChannelTypeSMS,
			Name:           "SMS",
			Description:    "SMS text messages",
			Features:       []string{"text"},
			RequiredFields: []string{"api_key", "sender_id"},
		},
		{
			Type:           ChannelTypeEmail,
			Name:           "Email",
			Description:    "Email inbox",
			Features:       []string{"html", "attachments"},
			RequiredFields: []string{"smtp_host", "smtp_port", "username", "password"},
		},
		{
			Type:           ChannelTypeTelegram,
			Name:           "Telegram",
			Description:    "Telegram bot messages",
			Features:       []string{"text", "images", "documents"},
			RequiredFields: []string{"bot_token"},
		},
	}
}
