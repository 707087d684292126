package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvMessage(t *testing.T, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for realtime message")
	}
	return Message{}
}

func assertNoMessage(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected message %q in room %q", msg.Type, msg.Room)
	case <-time.After(50 * time.Millisecond):
	}
}

func ownedConversations(owner map[string]string) JoinAuthorizerFunc {
	return func(_ context.Context, customerID, conversationID string) error {
		if owner[conversationID] != customerID {
			return domain.NotFound("conversation not found")
		}
		return nil
	}
}

func TestHubTenantRooms(t *testing.T) {
	hub := NewHub()
	alpha := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})
	beta := hub.Register(domain.Principal{UserID: "u2", CustomerID: "beta"})

	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, 1, hub.RoomSize(CustomerRoom("alpha")))

	hub.HandleEvent(domain.NewEvent(domain.EventTicketCreated, "alpha", map[string]interface{}{"id": "t1"}))

	got := recvMessage(t, alpha.Outbound, time.Second)
	assert.Equal(t, domain.EventTicketCreated, got.Type)
	assert.Equal(t, CustomerRoom("alpha"), got.Room)
	assertNoMessage(t, beta.Outbound)
}

func TestHubConversationRooms(t *testing.T) {
	hub := NewHub(WithJoinAuthorizer(ownedConversations(map[string]string{"c1": "alpha", "c2": "beta"})))
	viewer := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})
	ctx := context.Background()

	t.Run("joining a foreign conversation is refused", func(t *testing.T) {
		err := hub.JoinConversation(ctx, viewer, "c2")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, 0, hub.RoomSize(ConversationRoom("c2")))
	})

	t.Run("events reach a client in both rooms once", func(t *testing.T) {
		require.NoError(t, hub.JoinConversation(ctx, viewer, "c1"))

		event := domain.NewEvent(domain.EventMessageSent, "alpha", map[string]interface{}{"id": "m1"}).ForConversation("c1")
		hub.HandleEvent(event)

		got := recvMessage(t, viewer.Outbound, time.Second)
		assert.Equal(t, event.ID, got.EventID)
		assertNoMessage(t, viewer.Outbound)
	})

	t.Run("leave stops conversation broadcasts", func(t *testing.T) {
		hub.HandleFrame(ctx, viewer, ClientFrame{Action: ActionLeave, ConversationID: "c1"})
		left := recvMessage(t, viewer.Outbound, time.Second)
		assert.Equal(t, TypeLeft, left.Type)

		hub.Broadcast(Message{Type: "custom", Room: ConversationRoom("c1")})
		assertNoMessage(t, viewer.Outbound)
	})
}

func TestHubFrames(t *testing.T) {
	hub := NewHub(WithJoinAuthorizer(ownedConversations(map[string]string{"c1": "alpha"})))
	c := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})
	ctx := context.Background()

	hub.HandleFrame(ctx, c, ClientFrame{Action: ActionJoin, ConversationID: "c1"})
	joined := recvMessage(t, c.Outbound, time.Second)
	assert.Equal(t, TypeJoined, joined.Type)
	assert.Equal(t, ConversationRoom("c1"), joined.Room)

	hub.HandleFrame(ctx, c, ClientFrame{Action: ActionPing})
	assert.Equal(t, TypePong, recvMessage(t, c.Outbound, time.Second).Type)

	hub.HandleFrame(ctx, c, ClientFrame{Action: "dance"})
	failed := recvMessage(t, c.Outbound, time.Second)
	assert.Equal(t, TypeError, failed.Type)
	assert.Equal(t, map[string]string{"message": "unknown action: dance"}, failed.Data)
}

func TestHubJoinWithoutAuthorizer(t *testing.T) {
	hub := NewHub()
	c := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})
	err := hub.JoinConversation(context.Background(), c, "c1")
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestHubCloseClient(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_clients"})
	hub := NewHub(WithClientGauge(gauge))

	c := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})
	assert.Equal(t, float64(1), testutil.ToFloat64(gauge))

	hub.CloseClient(c)
	hub.CloseClient(c)

	_, ok := <-c.Outbound
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.RoomSize(CustomerRoom("alpha")))
	assert.Equal(t, float64(0), testutil.ToFloat64(gauge))

	// delivery after close must not panic
	hub.HandleEvent(domain.NewEvent(domain.EventTicketCreated, "alpha", nil))
	hub.HandleFrame(context.Background(), c, ClientFrame{Action: ActionPing})
}

type loopbackRedis struct {
	mu         sync.Mutex
	handlers   map[string]func(string)
	publishErr error
	publishes  int
}

func (l *loopbackRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	if identifier == "" {
		return string(keyType)
	}
	return string(keyType) + ":" + identifier
}

func (l *loopbackRedis) Publish(_ context.Context, channel string, message interface{}) error {
	l.mu.Lock()
	l.publishes++
	handler := l.handlers[channel]
	err := l.publishErr
	l.mu.Unlock()
	if err != nil {
		return err
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if handler != nil {
		handler(string(data))
	}
	return nil
}

func (l *loopbackRedis) Subscribe(_ context.Context, channel string, handler func(string)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handlers == nil {
		l.handlers = make(map[string]func(string))
	}
	l.handlers[channel] = handler
	return nil
}

func (l *loopbackRedis) Close() error { return nil }

func TestBridgeRelaysThroughRedis(t *testing.T) {
	hub := NewHub()
	c := hub.Register(domain.Principal{UserID: "u1", CustomerID: "alpha"})

	fake := &loopbackRedis{}
	bridge := NewBridge(hub, fake)
	require.NoError(t, bridge.Start(context.Background()))

	event := domain.NewEvent(domain.EventContactCreated, "alpha", map[string]interface{}{"id": "k1"})
	bridge.HandleEvent(event)

	got := recvMessage(t, c.Outbound, time.Second)
	assert.Equal(t, event.ID, got.EventID)
	assert.Equal(t, map[string]interface{}{"id": "k1"}, got.Data)
	assert.Equal(t, 1, fake.publishes)

	t.Run("publish failure falls back to local delivery", func(t *testing.T) {
		fake.mu.Lock()
		fake.publishErr = errors.New("redis down")
		fake.mu.Unlock()

		event := domain.NewEvent(domain.EventContactUpdated, "alpha", nil)
		bridge.HandleEvent(event)
		assert.Equal(t, event.ID, recvMessage(t, c.Outbound, time.Second).EventID)
	})
}

func TestUpgraderOrigins(t *testing.T) {
	up := NewUpgrader([]string{"https://app.example.com"})
	req := func(origin string) bool {
		r, _ := newRequestWithOrigin(origin)
		return up.CheckOrigin(r)
	}
	assert.True(t, req("https://app.example.com"))
	assert.False(t, req("https://evil.example.com"))
	assert.True(t, req(""))
}

func newRequestWithOrigin(origin string) (*http.Request, error) {
	r, err := http.NewRequest(http.MethodGet, "http://localhost/ws", nil)
	if err != nil {
		return nil, err
	}
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r, nil
}
