package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random entity identifier.
func NewID() string {
	return uuid.New().String()
}

// Principal is the resolved caller of a request: the user, its tenant and its role.
type Principal struct {
	UserID     string
	CustomerID string
	Role       Role
}

// Priority is shared by conversations and tickets.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DateRange bounds report queries. End is exclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SplitCSV splits a comma separated query value, dropping blanks.
func SplitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// StringPtr returns nil for an empty string, otherwise a pointer to a copy of s.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
