package domain

import (
	"net/url"
	"time"

	"gorm.io/datatypes"
)

// Webhook is an outbound subscription of a tenant to domain events.
// Secret is generated once on creation and only shown in that response.
type Webhook struct {
	ID           string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID   string                      `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	URL          string                      `json:"url" gorm:"type:varchar(2048);not null"`
	Events       datatypes.JSONSlice[string] `json:"events"`
	Secret       string                      `json:"-" gorm:"type:varchar(128);not null"`
	IsActive     bool                        `json:"is_active" gorm:"not null"`
	LastDelivery *time.Time                  `json:"last_delivery,omitempty"`
	FailureCount int                         `json:"failure_count" gorm:"not null"`
	CreatedAt    time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Webhook
func (Webhook) TableName() string {
	return "webhooks"
}

// Subscribed reports whether the webhook listens to event.
func (w *Webhook) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// CreateWebhookRequest represents the request to register a webhook
type CreateWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// Validate checks the URL and the event names.
func (r *CreateWebhookRequest) Validate() error {
	if r.URL == "" || len(r.Events) == 0 {
		return InvalidInput("url and events are required")
	}
	if err := ValidateWebhookURL(r.URL); err != nil {
		return err
	}
	return ValidateWebhookEvents(r.Events)
}

// UpdateWebhookRequest represents a partial webhook update
type UpdateWebhookRequest struct {
	URL      *string   `json:"url,omitempty"`
	Events   *[]string `json:"events,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// Validate checks URL and events when present.
func (r *UpdateWebhookRequest) Validate() error {
	if r.URL != nil {
		if err := ValidateWebhookURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Events != nil {
		if len(*r.Events) == 0 {
			return InvalidInput("at least one event is required")
		}
		if err := ValidateWebhookEvents(*r.Events); err != nil {
			return err
		}
	}
	return nil
}

// ValidateWebhookURL accepts absolute http and https URLs with a host.
func ValidateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return InvalidInput("invalid url")
	}
	return nil
}

// ValidateWebhookEvents rejects names missing from the event catalog.
func ValidateWebhookEvents(events []string) error {
	for _, e := range events {
		if !IsWebhookEvent(e) {
			return InvalidInput("invalid event: %s", e)
		}
	}
	return nil
}

// WebhookCreated is the create response; it is the only place the secret appears.
type WebhookCreated struct {
	Webhook
	Secret string `json:"secret"`
}

// WebhookTestResult reports a test delivery.
type WebhookTestResult struct {
	Success      bool    `json:"success"`
	StatusCode   int     `json:"status_code,omitempty"`
	ResponseTime float64 `json:"response_time"`
	Message      string  `json:"message"`
}
