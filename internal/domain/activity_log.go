package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions.
const (
	ActionCreate       = "create"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionAssign       = "assign"
	ActionStatusChange = "status_change"
	ActionLogin        = "login"
	ActionImport       = "import"
)

// ActivityLog is an append-only audit entry. It has no UpdatedAt on purpose:
// rows are never modified.
type ActivityLog struct {
	ID           string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID   string            `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	UserID       *string           `json:"user_id,omitempty" gorm:"type:varchar(36);index"`
	Action       string            `json:"action" gorm:"type:varchar(50);not null"`
	ResourceType string            `json:"resource_type" gorm:"type:varchar(50);not null;index"`
	ResourceID   string            `json:"resource_id" gorm:"type:varchar(36)"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent    string            `json:"user_agent,omitempty" gorm:"type:varchar(512)"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime;index"`
}

// TableName sets the table name for ActivityLog
func (ActivityLog) TableName() string {
	return "activity_logs"
}

// ActivityLogFilter narrows audit listings.
type ActivityLogFilter struct {
	ResourceType string
	Action       string
	UserID       string
}

// NewActivityLog builds an entry for principal acting on a resource.
func NewActivityLog(p Principal, action, resourceType, resourceID string, details map[string]interface{}) *ActivityLog {
	entry := &ActivityLog{
		CustomerID:   p.CustomerID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
	}
	if p.UserID != "" {
		uid := p.UserID
		entry.UserID = &uid
	}
	return entry
}
