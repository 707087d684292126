package domain

import (
	"strings"
	"time"
)

// User is an operator account of a tenant.
type User struct {
	ID           string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	CustomerID   string     `json:"customer_id" gorm:"type:varchar(36);not null;index"`
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex:uni_users_email;not null"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255);not null"`
	FirstName    string     `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName     string     `json:"last_name" gorm:"type:varchar(100);not null"`
	Role         Role       `json:"role" gorm:"type:varchar(20);not null"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for User
func (User) TableName() string {
	return "users"
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// CreateUserRequest represents the request to add a user to a tenant.
// Password is the plain text password; repositories only ever see PasswordHash.
type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	PasswordHash string `json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         Role   `json:"role"`
}

// Validate checks required fields and the role.
func (r *CreateUserRequest) Validate() error {
	if r.Email == "" || r.Password == "" || r.FirstName == "" || r.LastName == "" || r.Role == "" {
		return InvalidInput("email, password, first_name, last_name and role are required")
	}
	if !r.Role.Valid() {
		return InvalidInput("invalid role")
	}
	return nil
}

// UpdateUserRequest represents a partial user update
type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// Validate checks the role when present.
func (r *UpdateUserRequest) Validate() error {
	if r.Role != nil && !r.Role.Valid() {
		return InvalidInput("invalid role")
	}
	return nil
}
