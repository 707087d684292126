package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/config"
	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/realtime"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/ClareAI/astra-crm-service/internal/services/auth"
	"github.com/ClareAI/astra-crm-service/internal/services/webhook"
	"github.com/ClareAI/astra-crm-service/pkg/jwtutil"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (c *capturePublisher) Publish(e *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type testServer struct {
	router *mux.Router
	db     *gorm.DB
	tokens *jwtutil.Manager
	events *capturePublisher
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		CORSAllowedOrigins: []string{"*"},
		WebhookTestTimeout: 2 * time.Second,
	}
	for _, fn := range mutate {
		fn(cfg)
	}

	db := testutil.DB(t)
	repos := repository.NewGormRepositoryManager(db)
	tokens, err := jwtutil.NewManager("handler-test-secret", time.Hour)
	require.NoError(t, err)

	events := &capturePublisher{}
	hm := NewHandlerManager(Dependencies{
		Config:    cfg,
		Repos:     repos,
		Auth:      auth.NewService(repos, tokens),
		Publisher: events,
		Webhooks:  webhook.NewService(repos, cfg.WebhookTestTimeout, nil),
		Hub:       realtime.NewHub(),
	})

	router := mux.NewRouter()
	hm.SetupAllRoutes(router)
	return &testServer{router: router, db: db, tokens: tokens, events: events}
}

func (s *testServer) token(t *testing.T, u *domain.User) string {
	t.Helper()
	tok, err := s.tokens.Generate(u.ID, u.CustomerID, string(u.Role))
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func object(t *testing.T, body map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := body[key].(map[string]interface{})
	require.True(t, ok, "missing object %q in %v", key, body)
	return v
}

func TestConversationLifecycle(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "POST", "/api/auth/register", "", map[string]string{
		"email":      "owner@acme.test",
		"password":   "s3cret!",
		"first_name": "Ana",
		"last_name":  "Lopez",
		"company":    "Acme",
	})
	require.Equal(t, http.StatusCreated, code, body)
	userID := object(t, body, "user")["id"].(string)

	code, body = s.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email":    "owner@acme.test",
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, code, body)
	token := body["access_token"].(string)
	require.NotEmpty(t, token)

	code, body = s.do(t, "POST", "/api/channels", token, map[string]string{"type": "whatsapp", "name": "Main line"})
	require.Equal(t, http.StatusCreated, code, body)
	channelID := object(t, body, "channel")["id"].(string)

	code, body = s.do(t, "POST", "/api/contacts", token, map[string]string{"name": "Maria", "phone": "+1555"})
	require.Equal(t, http.StatusCreated, code, body)
	contactID := object(t, body, "contact")["id"].(string)

	code, body = s.do(t, "POST", "/api/conversations", token, map[string]string{
		"contact_id": contactID,
		"channel_id": channelID,
	})
	require.Equal(t, http.StatusCreated, code, body)
	conversation := object(t, body, "conversation")
	conversationID := conversation["id"].(string)
	assert.Equal(t, "open", conversation["status"])

	code, body = s.do(t, "POST", "/api/conversations/"+conversationID+"/assign", token, map[string]interface{}{"agent_id": userID})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "assigned", object(t, body, "conversation")["status"])
	assert.Equal(t, userID, object(t, body, "conversation")["assigned_to"])

	code, body = s.do(t, "POST", "/api/messages", token, map[string]interface{}{
		"conversation_id": conversationID,
		"content":         map[string]string{"text": "Hola Maria"},
	})
	require.Equal(t, http.StatusCreated, code, body)
	message := object(t, body, "message")
	assert.Equal(t, "outbound", message["direction"])
	assert.Equal(t, "sent", message["status"])
	assert.Equal(t, "text", message["type"])

	code, body = s.do(t, "GET", "/api/conversations/"+conversationID, token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.NotNil(t, object(t, body, "conversation")["last_message_at"])
	assert.Len(t, body["messages"], 1)

	code, body = s.do(t, "PUT", "/api/conversations/"+conversationID+"/status", token, map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "closed", object(t, body, "conversation")["status"])

	code, body = s.do(t, "GET", "/api/conversations?status=closed&assigned_to=me", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Len(t, body["conversations"], 1)

	assert.Equal(t, []string{
		domain.EventContactCreated,
		domain.EventConversationCreated,
		domain.EventConversationAssigned,
		domain.EventMessageSent,
		domain.EventConversationClosed,
	}, s.events.types())

	t.Run("mutations are audited", func(t *testing.T) {
		code, body := s.do(t, "GET", "/api/activity-logs?resource_type=conversation", token, nil)
		require.Equal(t, http.StatusOK, code, body)

		var actions []string
		for _, item := range body["activity_logs"].([]interface{}) {
			actions = append(actions, item.(map[string]interface{})["action"].(string))
		}
		assert.ElementsMatch(t, []string{domain.ActionCreate, domain.ActionAssign, domain.ActionStatusChange}, actions)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		code, _ := s.do(t, "PUT", "/api/conversations/"+conversationID+"/status", token, map[string]string{"status": "snoozed"})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, ctx, s.db, "acme")

	t.Run("missing token", func(t *testing.T) {
		code, body := s.do(t, "GET", "/api/contacts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("garbage token", func(t *testing.T) {
		code, _ := s.do(t, "GET", "/api/contacts", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("valid token", func(t *testing.T) {
		code, body := s.do(t, "GET", "/api/auth/me", s.token(t, tenant.Admin), nil)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, tenant.Admin.Email, object(t, body, "user")["email"])
		_, leaked := object(t, body, "user")["password_hash"]
		assert.False(t, leaked)
	})

	t.Run("token of a deactivated user", func(t *testing.T) {
		agent := testutil.SeedUser(t, ctx, s.db, tenant.Customer.ID, "gone@acme.test", domain.RoleAgent)
		tok := s.token(t, agent)
		code, _ := s.do(t, "GET", "/api/contacts", tok, nil)
		require.Equal(t, http.StatusOK, code)

		require.NoError(t, s.db.Model(agent).Update("is_active", false).Error)
		code, body := s.do(t, "GET", "/api/contacts", tok, nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("wrong password", func(t *testing.T) {
		code, _ := s.do(t, "POST", "/api/auth/login", "", map[string]string{"email": tenant.Admin.Email, "password": "nope"})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("provider webhook needs no token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/messages/webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(WebhookTypeHeader, "whatsapp")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"processed","type":"whatsapp"}`, rec.Body.String())

		code, body := s.do(t, "POST", "/api/messages/webhook", "", map[string]string{})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "received", body["status"])
	})
}

func TestRoleGate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, ctx, s.db, "acme")
	manager := testutil.SeedUser(t, ctx, s.db, tenant.Customer.ID, "manager@acme.test", domain.RoleManager)
	agent := testutil.SeedUser(t, ctx, s.db, tenant.Customer.ID, "agent@acme.test", domain.RoleAgent)
	channel := testutil.SeedChannel(t, ctx, s.db, tenant.Customer.ID, domain.ChannelTypeWhatsApp)

	t.Run("agent cannot create a channel", func(t *testing.T) {
		code, _ := s.do(t, "POST", "/api/channels", s.token(t, agent), map[string]string{"type": "email", "name": "Support"})
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("manager can create but not delete a channel", func(t *testing.T) {
		code, body := s.do(t, "POST", "/api/channels", s.token(t, manager), map[string]string{"type": "email", "name": "Support"})
		require.Equal(t, http.StatusCreated, code, body)

		code, _ = s.do(t, "DELETE", "/api/channels/"+channel.ID, s.token(t, manager), nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("agent cannot read the audit trail", func(t *testing.T) {
		code, _ := s.do(t, "GET", "/api/activity-logs", s.token(t, agent), nil)
		assert.Equal(t, http.StatusForbidden, code)

		code, _ = s.do(t, "GET", "/api/activity-logs", s.token(t, manager), nil)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("only admins manage users", func(t *testing.T) {
		req := map[string]string{"email": "new@acme.test", "password": "pw123456", "first_name": "N", "last_name": "U", "role": "agent"}
		code, _ := s.do(t, "POST", "/api/customers/users", s.token(t, manager), req)
		assert.Equal(t, http.StatusForbidden, code)

		code, body := s.do(t, "POST", "/api/customers/users", s.token(t, tenant.Admin), req)
		assert.Equal(t, http.StatusCreated, code, body)
	})

	t.Run("webhook secret is returned only on create", func(t *testing.T) {
		code, _ := s.do(t, "POST", "/api/webhooks", s.token(t, agent), map[string]interface{}{
			"url": "https://example.test/hook", "events": []string{"message.sent"},
		})
		assert.Equal(t, http.StatusForbidden, code)

		code, body := s.do(t, "POST", "/api/webhooks", s.token(t, tenant.Admin), map[string]interface{}{
			"url": "https://example.test/hook", "events": []string{"message.sent"},
		})
		require.Equal(t, http.StatusCreated, code, body)
		created := object(t, body, "webhook")
		assert.NotEmpty(t, created["secret"])

		code, body = s.do(t, "GET", "/api/webhooks/"+created["id"].(string), s.token(t, agent), nil)
		require.Equal(t, http.StatusOK, code, body)
		_, leaked := object(t, body, "webhook")["secret"]
		assert.False(t, leaked)
	})
}

func TestTenantIsolation(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	a := testutil.SeedTenant(t, ctx, s.db, "a")
	b := testutil.SeedTenant(t, ctx, s.db, "b")

	contact := testutil.SeedContact(t, ctx, s.db, a.Customer.ID, "Ana", "+1555")
	channel := testutil.SeedChannel(t, ctx, s.db, a.Customer.ID, domain.ChannelTypeWhatsApp)
	conversation := testutil.SeedConversation(t, ctx, s.db, a.Customer.ID, contact.ID, channel.ID)
	ticket := testutil.SeedTicket(t, ctx, s.db, a.Customer.ID, "Broken checkout")

	other := s.token(t, b.Admin)
	for _, path := range []string{
		"/api/contacts/" + contact.ID,
		"/api/channels/" + channel.ID,
		"/api/conversations/" + conversation.ID,
		"/api/tickets/" + ticket.ID,
	} {
		code, _ := s.do(t, "GET", path, other, nil)
		assert.Equal(t, http.StatusNotFound, code, path)
	}

	code, _ := s.do(t, "POST", "/api/messages", other, map[string]interface{}{
		"conversation_id": conversation.ID,
		"content":         map[string]string{"text": "hi"},
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, "POST", "/api/conversations/"+conversation.ID+"/assign", s.token(t, a.Admin), map[string]interface{}{"agent_id": b.Admin.ID})
	assert.Equal(t, http.StatusNotFound, code)

	code, body := s.do(t, "GET", "/api/contacts", other, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["contacts"])
}

func TestPagination(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, ctx, s.db, "acme")
	testutil.SeedContact(t, ctx, s.db, tenant.Customer.ID, "Ana", "+1001")
	testutil.SeedContact(t, ctx, s.db, tenant.Customer.ID, "Bea", "+1002")
	testutil.SeedContact(t, ctx, s.db, tenant.Customer.ID, "Cruz", "+1003")

	token := s.token(t, tenant.Admin)

	code, body := s.do(t, "GET", "/api/contacts?per_page=1000", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, domain.MaxPerPage, object(t, body, "pagination")["per_page"])

	code, body = s.do(t, "GET", "/api/contacts?page=2&per_page=2", token, nil)
	require.Equal(t, http.StatusOK, code)
	pagination := object(t, body, "pagination")
	assert.EqualValues(t, 3, pagination["total"])
	assert.EqualValues(t, 2, pagination["pages"])
	assert.Equal(t, false, pagination["has_next"])
	assert.Equal(t, true, pagination["has_prev"])
	require.Len(t, body["contacts"], 1)
	assert.Equal(t, "Cruz", body["contacts"].([]interface{})[0].(map[string]interface{})["name"])
}

func TestTicketStatusEvents(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	tenant := testutil.SeedTenant(t, ctx, s.db, "acme")
	token := s.token(t, tenant.Admin)

	code, body := s.do(t, "POST", "/api/tickets", token, map[string]string{"title": "Refund", "priority": "urgent"})
	require.Equal(t, http.StatusCreated, code, body)
	id := object(t, body, "ticket")["id"].(string)

	code, _ = s.do(t, "PUT", "/api/tickets/"+id+"/status", token, map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, "PUT", "/api/tickets/"+id+"/status", token, map[string]string{"status": "resolved", "resolution": "refunded"})
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, object(t, body, "ticket")["resolved_at"])

	assert.Equal(t, []string{domain.EventTicketCreated, domain.EventTicketUpdated, domain.EventTicketClosed}, s.events.types())

	code, _ = s.do(t, "POST", "/api/tickets", token, map[string]string{"title": "x", "priority": "whenever"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReportDates(t *testing.T) {
	s := newTestServer(t)
	tenant := testutil.SeedTenant(t, context.Background(), s.db, "acme")
	token := s.token(t, tenant.Admin)

	code, body := s.do(t, "GET", "/api/reports/messages?start_date=2026-01-01&end_date=2026-01-31", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, map[string]interface{}{"start_date": "2026-01-01", "end_date": "2026-01-31"}, object(t, body, "period"))

	code, _ = s.do(t, "GET", "/api/reports/messages?start_date=01/02/2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, "GET", "/api/reports/tickets?start_date=2026-02-01&end_date=2026-01-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestInfrastructureRoutes(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	code, _ = s.do(t, "GET", "/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, "GET", "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])

	req := httptest.NewRequest("OPTIONS", "/api/contacts", nil)
	req.Header.Set("Origin", "https://app.example.test")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("POST", "/api/auth/login", bytes.NewBufferString("email=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimitRPS = 1
		c.RateLimitBurst = 2
	})

	var codes []int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "buckets are per client")
}
