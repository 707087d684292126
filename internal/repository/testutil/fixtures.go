package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func SeedCustomer(tb testing.TB, ctx context.Context, db *gorm.DB, email string) *domain.Customer {
	tb.Helper()
	c := &domain.Customer{
		ID:               domain.NewID(),
		Name:             "Acme",
		Email:            email,
		Company:          "Acme Inc",
		SubscriptionPlan: domain.DefaultSubscriptionPlan,
		IsActive:         true,
		Settings:         datatypes.JSONMap(domain.DefaultCustomerSettings()),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed customer: %v", err)
	}
	return c
}

func SeedUser(tb testing.TB, ctx context.Context, db *gorm.DB, customerID, email string, role domain.Role) *domain.User {
	tb.Helper()
	u := &domain.User{
		ID:           domain.NewID(),
		CustomerID:   customerID,
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Ana",
		LastName:     "Lopez",
		Role:         role,
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedContact(tb testing.TB, ctx context.Context, db *gorm.DB, customerID, name, phone string) *domain.Contact {
	tb.Helper()
	c := &domain.Contact{
		ID:           domain.NewID(),
		CustomerID:   customerID,
		Name:         name,
		Phone:        domain.StringPtr(phone),
		Tags:         datatypes.JSONSlice[string]{},
		CustomFields: datatypes.JSONMap{},
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed contact: %v", err)
	}
	return c
}

func SeedChannel(tb testing.TB, ctx context.Context, db *gorm.DB, customerID string, channelType domain.ChannelType) *domain.Channel {
	tb.Helper()
	c := &domain.Channel{
		ID:          domain.NewID(),
		CustomerID:  customerID,
		Type:        channelType,
		Name:        string(channelType),
		Config:      datatypes.JSONMap{},
		Credentials: datatypes.JSONMap{},
		IsActive:    true,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed channel: %v", err)
	}
	return c
}

func SeedConversation(tb testing.TB, ctx context.Context, db *gorm.DB, customerID, contactID, channelID string) *domain.Conversation {
	tb.Helper()
	c := &domain.Conversation{
		ID:         domain.NewID(),
		CustomerID: customerID,
		ContactID:  contactID,
		ChannelID:  channelID,
		Status:     domain.ConversationStatusOpen,
		Priority:   domain.PriorityNormal,
		Tags:       datatypes.JSONSlice[string]{},
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedMessage(tb testing.TB, ctx context.Context, db *gorm.DB, conversationID string, direction domain.MessageDirection, text string, at time.Time) *domain.Message {
	tb.Helper()
	content, _ := json.Marshal(map[string]string{"text": text})
	senderType := domain.SenderTypeContact
	if direction == domain.DirectionOutbound {
		senderType = domain.SenderTypeAgent
	}
	m := &domain.Message{
		ID:             domain.NewID(),
		ConversationID: conversationID,
		Direction:      direction,
		Type:           "text",
		Content:        datatypes.JSON(content),
		SenderType:     senderType,
		Status:         domain.MessageStatusDelivered,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

func SeedTicket(tb testing.TB, ctx context.Context, db *gorm.DB, customerID, title string) *domain.Ticket {
	tb.Helper()
	t := &domain.Ticket{
		ID:         domain.NewID(),
		CustomerID: customerID,
		Title:      title,
		Status:     domain.TicketStatusOpen,
		Priority:   domain.PriorityNormal,
		Tags:       datatypes.JSONSlice[string]{},
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed ticket: %v", err)
	}
	return t
}

// Tenant is a customer with one admin, ready for scoped repository calls.
type Tenant struct {
	Customer *domain.Customer
	Admin    *domain.User
}

func SeedTenant(tb testing.TB, ctx context.Context, db *gorm.DB, slug string) Tenant {
	tb.Helper()
	c := SeedCustomer(tb, ctx, db, slug+"@tenant.test")
	u := SeedUser(tb, ctx, db, c.ID, "admin@"+slug+".test", domain.RoleAdmin)
	return Tenant{Customer: c, Admin: u}
}
