package domain

import (
	"fmt"
	"regexp"
	"time"

	"gorm.io/datatypes"
)

type TemplateType string

const (
	TemplateTypeText     TemplateType = "text"
	TemplateTypeWhatsApp TemplateType = "whatsapp_template"
	TemplateTypeEmail    TemplateType = "email"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateTypeText, TemplateTypeWhatsApp, TemplateTypeEmail:
		return true
	}
	return false
}

var templateVarPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// PredefinedTemplateCategories are offered to every tenant.
var PredefinedTemplateCategories = []string{
	"Welcome", "Support", "Sales", "Follow-up", "Farewell", "Promotions", "Reminders", "Confirmations",
}

// Template is a reusable message body with {{variable}} placeholders.
// Variables always mirrors the placeholders found in Content.
type Template struct {
	ID         string                      `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID string                      `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	Name       string                      `json:"name" gorm:"type:varchar(255);not null"`
	Content    string                      `json:"content" gorm:"type:text;not null"`
	Type       TemplateType                `json:"type" gorm:"type:varchar(30);not null"`
	Category   string                      `json:"category" gorm:"type:varchar(100)"`
	Variables  datatypes.JSONSlice[string] `json:"variables"`
	UsageCount int                         `json:"usage_count" gorm:"not null"`
	IsActive   bool                        `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time                   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time                   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Template
func (Template) TableName() string {
	return "templates"
}

// ExtractVariables returns the distinct {{identifier}} names in content, in
// order of first appearance.
func ExtractVariables(content string) []string {
	matches := templateVarPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]struct{}, len(matches))
	vars := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		vars = append(vars, m[1])
	}
	return vars
}

// RenderTemplate replaces every {{name}} occurrence with the literal value from
// values in a single pass, so a value is never expanded again. Placeholders
// without a value are left untouched.
func RenderTemplate(content string, values map[string]string) string {
	return templateVarPattern.ReplaceAllStringFunc(content, func(m string) string {
		if v, ok := values[m[2:len(m)-2]]; ok {
			return v
		}
		return m
	})
}

// TemplateFilter narrows template listings.
type TemplateFilter struct {
	IsActive *bool
	Category string
	Type     TemplateType
	Search   string
}

// CreateTemplateRequest represents the request to create a template
type CreateTemplateRequest struct {
	Name     string       `json:"name"`
	Content  string       `json:"content"`
	Type     TemplateType `json:"type"`
	Category string       `json:"category"`
	IsActive *bool        `json:"is_active"`
}

// Validate checks required fields and defaults the type.
func (r *CreateTemplateRequest) Validate() error {
	if r.Name == "" || r.Content == "" {
		return InvalidInput("name and content are required")
	}
	if r.Type == "" {
		r.Type = TemplateTypeText
	}
	if !r.Type.Valid() {
		return InvalidInput("invalid template type")
	}
	return nil
}

// UpdateTemplateRequest represents a partial template update
type UpdateTemplateRequest struct {
	Name     *string       `json:"name,omitempty"`
	Content  *string       `json:"content,omitempty"`
	Type     *TemplateType `json:"type,omitempty"`
	Category *string       `json:"category,omitempty"`
	IsActive *bool         `json:"is_active,omitempty"`
}

// Validate checks non-empty name/content and the type when present.
func (r *UpdateTemplateRequest) Validate() error {
	if r.Name != nil && *r.Name == "" {
		return InvalidInput("name cannot be empty")
	}
	if r.Content != nil && *r.Content == "" {
		return InvalidInput("content cannot be empty")
	}
	if r.Type != nil && !r.Type.Valid() {
		return InvalidInput("invalid template type")
	}
	return nil
}

// UseTemplateRequest supplies placeholder values for rendering.
// Non-string values are rendered with their default formatting.
type UseTemplateRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

// Values returns the variables as strings.
func (r *UseTemplateRequest) Values() map[string]string {
	out := make(map[string]string, len(r.Variables))
	for k, v := range r.Variables {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// RenderedTemplate is the result of using a template.
type RenderedTemplate struct {
	ProcessedContent string            `json:"processed_content"`
	OriginalContent  string            `json:"original_content"`
	VariablesUsed    map[string]string `json:"variables_used"`
	Template         *Template         `json:"template"`
}

// ImportTemplatesResult summarizes a bulk template import.
type ImportTemplatesResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}
