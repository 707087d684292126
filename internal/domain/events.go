package domain

import "time"

// Domain event names. They double as the webhook event catalog.
const (
	EventMessageReceived      = "message.received"
	EventMessageSent          = "message.sent"
	EventConversationCreated  = "conversation.created"
	EventConversationAssigned = "conversation.assigned"
	EventConversationClosed   = "conversation.closed"
	EventTicketCreated        = "ticket.created"
	EventTicketUpdated        = "ticket.updated"
	EventTicketClosed         = "ticket.closed"
	EventContactCreated       = "contact.created"
	EventContactUpdated       = "contact.updated"

	EventWebhookTest = "webhook.test"
)

// WebhookEventInfo describes one subscribable event.
type WebhookEventInfo struct {
	Event       string `json:"event"`
	Description string `json:"description"`
}

var webhookEventCatalog = []WebhookEventInfo{
	{EventMessageReceived, "A new inbound message arrived"},
	{EventMessageSent, "An agent sent a message"},
	{EventConversationCreated, "A conversation was opened"},
	{EventConversationAssigned, "A conversation was assigned to an agent"},
	{EventConversationClosed, "A conversation was closed"},
	{EventTicketCreated, "A ticket was created"},
	{EventTicketUpdated, "A ticket was updated"},
	{EventTicketClosed, "A ticket was resolved or closed"},
	{EventContactCreated, "A contact was created"},
	{EventContactUpdated, "A contact was updated"},
}

// WebhookEventCatalog returns a copy of the subscribable events.
func WebhookEventCatalog() []WebhookEventInfo {
	out := make([]WebhookEventInfo, len(webhookEventCatalog))
	copy(out, webhookEventCatalog)
	return out
}

// IsWebhookEvent reports whether name is in the catalog.
func IsWebhookEvent(name string) bool {
	for _, e := range webhookEventCatalog {
		if e.Event == name {
			return true
		}
	}
	return false
}

// Event is a committed change inside one tenant, fanned out to realtime
// clients and external subscribers.
type Event struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	CustomerID     string      `json:"customer_id"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Data           interface{} `json:"data"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// NewEvent stamps a new event for a tenant.
func NewEvent(eventType, customerID string, data interface{}) *Event {
	return &Event{
		ID:         NewID(),
		Type:       eventType,
		CustomerID: customerID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// ForConversation scopes the event to a conversation room as well.
func (e *Event) ForConversation(conversationID string) *Event {
	e.ConversationID = conversationID
	return e
}
