package realtime

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const outboundBuffer = 32

// Message is the frame pushed to websocket clients.
type Message struct {
	Type      string      `json:"type"`
	Room      string      `json:"room,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CustomerRoom is the room every client of a tenant joins on connect.
func CustomerRoom(customerID string) string {
	return "customer:" + customerID
}

// ConversationRoom is joined on request by clients viewing a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// JoinAuthorizer checks that a conversation belongs to the client's tenant.
type JoinAuthorizer interface {
	AuthorizeJoin(ctx context.Context, customerID, conversationID string) error
}

// JoinAuthorizerFunc adapts a function to JoinAuthorizer.
type JoinAuthorizerFunc func(ctx context.Context, customerID, conversationID string) error

func (f JoinAuthorizerFunc) AuthorizeJoin(ctx context.Context, customerID, conversationID string) error {
	return f(ctx, customerID, conversationID)
}

// Client is one websocket connection. Rooms is guarded by the hub lock.
type Client struct {
	ID         string
	UserID     string
	CustomerID string
	Outbound   chan Message

	rooms     map[string]bool
	conn      wsConn
	closeOnce sync.Once
}

// Hub tracks clients by room and fans domain events out to them.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]bool
	clients map[*Client]bool

	authorizer JoinAuthorizer
	gauge      prometheus.Gauge
}

// Option configures a Hub.
type Option func(*Hub)

// WithJoinAuthorizer sets the check run before a client joins a conversation room.
// Without one, conversation joins are refused.
func WithJoinAuthorizer(a JoinAuthorizer) Option {
	return func(h *Hub) { h.authorizer = a }
}

// WithClientGauge reports the number of connected clients.
func WithClientGauge(g prometheus.Gauge) Option {
	return func(h *Hub) { h.gauge = g }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:   make(map[string]map[*Client]bool),
		clients: make(map[*Client]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register creates a client for principal and joins it to its tenant room.
func (h *Hub) Register(p domain.Principal) *Client {
	c := &Client{
		ID:         uuid.New().String(),
		UserID:     p.UserID,
		CustomerID: p.CustomerID,
		Outbound:   make(chan Message, outboundBuffer),
		rooms:      make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	if h.gauge != nil {
		h.gauge.Inc()
	}

	h.AddRoom(c, CustomerRoom(p.CustomerID))
	logger.Base().Debug("Realtime client registered",
		zap.String("client_id", c.ID),
		zap.String("user_id", c.UserID),
		zap.String("customer_id", c.CustomerID))
	return c
}

// AddRoom subscribes c to room.
func (h *Hub) AddRoom(c *Client, room string) {
	room = strings.TrimSpace(room)
	if room == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}
	c.rooms[room] = true
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[c] = true
}

// RemoveRoom unsubscribes c from room.
func (h *Hub) RemoveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeRoomLocked(c, room)
}

func (h *Hub) removeRoomLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// JoinConversation adds c to a conversation room after the tenant check.
func (h *Hub) JoinConversation(ctx context.Context, c *Client, conversationID string) error {
	if conversationID == "" {
		return domain.InvalidInput("conversation_id is required")
	}
	if h.authorizer == nil {
		return domain.Forbidden("conversation rooms are disabled")
	}
	if err := h.authorizer.AuthorizeJoin(ctx, c.CustomerID, conversationID); err != nil {
		return err
	}
	h.AddRoom(c, ConversationRoom(conversationID))
	return nil
}

// CloseClient removes c from every room and closes its outbound channel.
// It is safe to call more than once.
func (h *Hub) CloseClient(c *Client) {
	c.closeOnce.Do(func() {
		h.mu.Lock()
		for room := range c.rooms {
			h.removeRoomLocked(c, room)
		}
		delete(h.clients, c)
		// senders hold the read lock, so no send can race this close
		close(c.Outbound)
		h.mu.Unlock()

		if h.gauge != nil {
			h.gauge.Dec()
		}
		logger.Base().Debug("Realtime client closed", zap.String("client_id", c.ID))
	})
}

// HandleEvent delivers a domain event to its tenant room and, when set, its
// conversation room. A client in both rooms receives it once.
func (h *Hub) HandleEvent(event *domain.Event) {
	if event == nil || event.CustomerID == "" {
		return
	}

	rooms := []string{CustomerRoom(event.CustomerID)}
	if event.ConversationID != "" {
		rooms = append(rooms, ConversationRoom(event.ConversationID))
	}

	msg := Message{
		Type:      event.Type,
		EventID:   event.ID,
		Data:      event.Data,
		Timestamp: event.OccurredAt,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]bool)
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if sent[c] || c.CustomerID != event.CustomerID {
				continue
			}
			sent[c] = true
			out := msg
			out.Room = room
			h.sendLocked(c, out)
		}
	}
}

// Broadcast sends msg to every client in msg.Room.
func (h *Hub) Broadcast(msg Message) {
	if msg.Room == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[msg.Room] {
		h.sendLocked(c, msg)
	}
}

func (h *Hub) sendLocked(c *Client, msg Message) {
	select {
	case c.Outbound <- msg:
	default:
		logger.Base().Warn("Dropping realtime message; outbound buffer full",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
	}
}

// reply sends a direct frame to c unless it has been closed.
func (h *Hub) reply(c *Client, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	h.sendLocked(c, msg)
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Shutdown closes every live connection; their read loops then release the clients.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	conns := make([]wsConn, 0, len(h.clients))
	for c := range h.clients {
		if c.conn != nil {
			conns = append(conns, c.conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}
