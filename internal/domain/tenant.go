package domain

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultSubscriptionPlan = "starter"

// Customer is the tenant: the root every other record is scoped to.
type Customer struct {
	ID               string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name             string            `json:"name" gorm:"type:varchar(255);not null"`
	Email            string            `json:"email" gorm:"type:varchar(255);uniqueIndex:uni_customers_email;not null"`
	Phone            string            `json:"phone" gorm:"type:varchar(50)"`
	Company          string            `json:"company" gorm:"type:varchar(255)"`
	SubscriptionPlan string            `json:"subscription_plan" gorm:"type:varchar(50);not null"`
	IsActive         bool              `json:"is_active" gorm:"not null"`
	Settings         datatypes.JSONMap `json:"settings,omitempty"`
	CreatedAt        time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Customer
func (Customer) TableName() string {
	return "customers"
}

// CreateCustomerRequest represents the tenant part of a registration
type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company"`
}

// UpdateCustomerProfileRequest represents the request to update the tenant profile
type UpdateCustomerProfileRequest struct {
	Name    *string `json:"name,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

// DefaultCustomerSettings returns the settings every tenant starts from.
func DefaultCustomerSettings() map[string]interface{} {
	return map[string]interface{}{
		"notifications": map[string]interface{}{
			"email":        true,
			"browser":      true,
			"new_messages": true,
			"new_tickets":  true,
			"assignments":  true,
		},
		"ui": map[string]interface{}{
			"theme":    "light",
			"language": "es",
			"timezone": "America/Mexico_City",
		},
		"integrations": map[string]interface{}{
			"whatsapp_enabled":  false,
			"instagram_enabled": false,
			"messenger_enabled": false,
		},
	}
}

// MergeSettings shallow-merges overrides on top of base into a new map.
func MergeSettings(base, overrides map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
