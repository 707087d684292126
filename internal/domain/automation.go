package domain

import (
	"time"

	"gorm.io/datatypes"
)

type TriggerType string

const (
	TriggerKeyword         TriggerType = "keyword"
	TriggerTime            TriggerType = "time"
	TriggerNewConversation TriggerType = "new_conversation"
	TriggerInactivity      TriggerType = "inactivity"
	TriggerChannelMessage  TriggerType = "channel_message"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerKeyword, TriggerTime, TriggerNewConversation, TriggerInactivity, TriggerChannelMessage:
		return true
	}
	return false
}

// AutomationAction is one step of an automation, e.g. {"type": "send_message", "content": "..."}.
type AutomationAction map[string]interface{}

// Automation stores a trigger definition and its ordered actions. Automations
// are stored and toggled only; nothing evaluates them against live traffic.
type Automation struct {
	ID             string                                `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID     string                                `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	Name           string                                `json:"name" gorm:"type:varchar(255);not null"`
	Description    string                                `json:"description" gorm:"type:text"`
	TriggerType    TriggerType                           `json:"trigger_type" gorm:"type:varchar(30);not null"`
	TriggerConfig  datatypes.JSONMap                     `json:"trigger_config"`
	Actions        datatypes.JSONSlice[AutomationAction] `json:"actions"`
	Conditions     datatypes.JSONMap                     `json:"conditions"`
	IsActive       bool                                  `json:"is_active" gorm:"not null"`
	ExecutionCount int                                   `json:"execution_count" gorm:"not null"`
	LastExecuted   *time.Time                            `json:"last_executed,omitempty"`
	CreatedAt      time.Time                             `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                             `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Automation
func (Automation) TableName() string {
	return "automations"
}

// AutomationFilter narrows automation listings.
type AutomationFilter struct {
	IsActive    *bool
	TriggerType TriggerType
}

// CreateAutomationRequest represents the request to create an automation
type CreateAutomationRequest struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	TriggerType   TriggerType            `json:"trigger_type"`
	TriggerConfig map[string]interface{} `json:"trigger_config"`
	Actions       []AutomationAction     `json:"actions"`
	Conditions    map[string]interface{} `json:"conditions"`
	IsActive      *bool                  `json:"is_active"`
}

// Validate checks required fields, the trigger type and that at least one action exists.
func (r *CreateAutomationRequest) Validate() error {
	if r.Name == "" || r.TriggerType == "" || r.TriggerConfig == nil || r.Actions == nil {
		return InvalidInput("name, trigger_type, trigger_config and actions are required")
	}
	if !r.TriggerType.Valid() {
		return InvalidInput("invalid trigger type")
	}
	if len(r.Actions) == 0 {
		return InvalidInput("at least one action is required")
	}
	return nil
}

// UpdateAutomationRequest represents a partial automation update
type UpdateAutomationRequest struct {
	Name          *string                 `json:"name,omitempty"`
	Description   *string                 `json:"description,omitempty"`
	TriggerType   *TriggerType            `json:"trigger_type,omitempty"`
	TriggerConfig *map[string]interface{} `json:"trigger_config,omitempty"`
	Actions       *[]AutomationAction     `json:"actions,omitempty"`
	Conditions    *map[string]interface{} `json:"conditions,omitempty"`
	IsActive      *bool                   `json:"is_active,omitempty"`
}

// Validate checks the trigger type and actions when present.
func (r *UpdateAutomationRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return InvalidInput("name cannot be empty")
	}
	if r.TriggerType != nil && !r.TriggerType.Valid() {
		return InvalidInput("invalid trigger type")
	}
	if r.Actions != nil && len(*r.Actions) == 0 {
		return InvalidInput("at least one action is required")
	}
	return nil
}

// AutomationTestResult is the outcome of a simulated automation run.
type AutomationTestResult struct {
	Success         bool   `json:"success"`
	ExecutedActions int    `json:"executed_actions"`
	Message         string `json:"message"`
}

// AutomationTemplate is a ready-made automation clients can start from.
type AutomationTemplate struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	TriggerType   TriggerType            `json:"trigger_type"`
	TriggerConfig map[string]interface{} `json:"trigger_config"`
	Actions       []AutomationAction     `json:"actions"`
}

// AutomationTemplates returns the built-in automation templates.
func AutomationTemplates() []AutomationTemplate {
	return []AutomationTemplate{
		{
			ID:            "welcome_message",
			Name:          "Welcome message",
			Description:   "Greets every new conversation automatically",
			TriggerType:   TriggerNewConversation,
			TriggerConfig: map[string]interface{}{},
			Actions: []AutomationAction{
				{"type": "send_message", "content": "Hello! Thanks for reaching out. How can we help you today?"},
			},
		},
		{
			ID:            "keyword_response",
			Name:          "Keyword response",
			Description:   "Answers when a message contains specific keywords",
			TriggerType:   TriggerKeyword,
			TriggerConfig: map[string]interface{}{"keywords": []interface{}{"price", "cost", "quote"}},
			Actions: []AutomationAction{
				{"type": "send_message", "content": "Our team will send you pricing details shortly."},
			},
		},
		{
			ID:          "business_hours",
			Name:        "Outside business hours",
			Description: "Replies with the schedule outside working hours",
			TriggerType: TriggerTime,
			TriggerConfig: map[string]interface{}{
				"schedule": "outside_business_hours",
				"hours":    map[string]interface{}{"start": "09:00", "end": "18:00"},
			},
			Actions: []AutomationAction{
				{"type": "send_message", "content": "We are currently closed. We'll reply during business hours (9:00-18:00)."},
			},
		},
		{
			ID:            "inactivity_followup",
			Name:          "Inactivity follow-up",
			Description:   "Checks in after a period without replies",
			TriggerType:   TriggerInactivity,
			TriggerConfig: map[string]interface{}{"inactivity_hours": 24},
			Actions: []AutomationAction{
				{"type": "send_message", "content": "Is there anything else we can help you with?"},
			},
		},
	}
}
