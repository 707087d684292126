package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
	ActionPing  = "ping"
)

// Frame types sent outside of domain events.
const (
	TypeJoined = "joined"
	TypeLeft   = "left"
	TypePong   = "pong"
	TypeError  = "error"
)

// wsConn is the part of *websocket.Conn the pumps use.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ClientFrame is what clients send over the socket.
type ClientFrame struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// NewUpgrader returns an upgrader accepting the configured origins; "*" accepts any.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return allowAll || origin == "" || allowed[origin]
		},
	}
}

// Serve runs the connection until the peer goes away. It blocks in the read loop.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client) {
	h.mu.Lock()
	c.conn = conn
	h.mu.Unlock()

	go h.writePump(conn, c)
	h.readPump(ctx, conn, c)
}

func (h *Hub) readPump(ctx context.Context, conn wsConn, c *Client) {
	defer func() {
		h.CloseClient(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Base().Warn("Realtime connection closed unexpectedly", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}
		h.HandleFrame(ctx, c, frame)
	}
}

func (h *Hub) writePump(conn wsConn, c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Base().Debug("Realtime write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// HandleFrame applies one client action and answers on the client's own channel.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, frame ClientFrame) {
	now := time.Now().UTC()

	switch frame.Action {
	case ActionJoin:
		if err := h.JoinConversation(ctx, c, frame.ConversationID); err != nil {
			h.reply(c, errorFrame(err, now))
			return
		}
		h.reply(c, Message{Type: TypeJoined, Room: ConversationRoom(frame.ConversationID), Timestamp: now})
	case ActionLeave:
		room := ConversationRoom(frame.ConversationID)
		h.RemoveRoom(c, room)
		h.reply(c, Message{Type: TypeLeft, Room: room, Timestamp: now})
	case ActionPing:
		h.reply(c, Message{Type: TypePong, Timestamp: now})
	default:
		h.reply(c, errorFrame(domain.InvalidInput("unknown action: %s", frame.Action), now))
	}
}

func errorFrame(err error, now time.Time) Message {
	msg := "internal error"
	if domain.KindOf(err) != domain.KindInternal {
		msg = err.Error()
	}
	return Message{Type: TypeError, Data: map[string]string{"message": msg}, Timestamp: now}
}
