package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{header: r.Header.Clone(), body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured(nil), got...)
	}
}

type countingRecorder struct {
	mu      sync.Mutex
	success int
	failure int
}

func (c *countingRecorder) RecordWebhookDelivery(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if success {
		c.success++
	} else {
		c.failure++
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestSign(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t,
		"sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}

func TestWebhookTestDelivery(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := repository.NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")
	other := testutil.SeedTenant(t, ctx, db, "beta")

	srv, requests := captureServer(t, http.StatusOK)
	hook, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL:    srv.URL,
		Events: []string{domain.EventTicketCreated},
	}, "topsecret")
	require.NoError(t, err)

	recorder := &countingRecorder{}
	svc := NewService(repos, 5*time.Second, recorder)

	result, err := svc.Test(ctx, tenant.Customer.ID, hook.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, Sign("topsecret", got[0].body), got[0].header.Get(SignatureHeader))
	assert.Equal(t, domain.EventWebhookTest, got[0].header.Get(EventHeader))
	assert.Equal(t, UserAgent, got[0].header.Get("User-Agent"))

	var payload struct {
		Event     string                 `json:"event"`
		WebhookID string                 `json:"webhook_id"`
		Data      map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(got[0].body, &payload))
	assert.Equal(t, domain.EventWebhookTest, payload.Event)
	assert.Equal(t, hook.ID, payload.WebhookID)
	assert.Equal(t, tenant.Customer.ID, payload.Data["customer_id"])

	stored, err := repos.Webhook().Get(ctx, tenant.Customer.ID, hook.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastDelivery)
	assert.Equal(t, 0, stored.FailureCount)
	assert.Equal(t, 1, recorder.success)

	t.Run("webhooks of another tenant are not found", func(t *testing.T) {
		_, err := svc.Test(ctx, other.Customer.ID, hook.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestWebhookTestFailureCounts(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := repository.NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")

	srv, _ := captureServer(t, http.StatusInternalServerError)
	hook, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL:    srv.URL,
		Events: []string{domain.EventTicketCreated},
	}, "s")
	require.NoError(t, err)

	svc := NewService(repos, 5*time.Second, nil)
	result, err := svc.Test(ctx, tenant.Customer.ID, hook.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "HTTP error 500", result.Message)

	stored, err := repos.Webhook().Get(ctx, tenant.Customer.ID, hook.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastDelivery)
	assert.Equal(t, 1, stored.FailureCount)
}

func TestWebhookTestConnectionError(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := repository.NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	hook, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL:    url,
		Events: []string{domain.EventTicketCreated},
	}, "s")
	require.NoError(t, err)

	result, err := NewService(repos, time.Second, nil).Test(ctx, tenant.Customer.ID, hook.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.StatusCode)
	assert.Contains(t, result.Message, "connection error")
}

func TestDispatchOnlySubscribed(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := repository.NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")

	subscribed, subscribedRequests := captureServer(t, http.StatusNoContent)
	unsubscribed, unsubscribedRequests := captureServer(t, http.StatusNoContent)

	_, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL: subscribed.URL, Events: []string{domain.EventTicketCreated},
	}, "a")
	require.NoError(t, err)
	_, err = repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL: unsubscribed.URL, Events: []string{domain.EventMessageSent},
	}, "b")
	require.NoError(t, err)

	svc := NewService(repos, 5*time.Second, nil)
	svc.Dispatch(ctx, domain.NewEvent(domain.EventTicketCreated, tenant.Customer.ID, map[string]interface{}{"id": "t1"}))

	got := subscribedRequests()
	require.Len(t, got, 1)
	assert.Equal(t, domain.EventTicketCreated, got[0].header.Get(EventHeader))
	assert.Equal(t, Sign("a", got[0].body), got[0].header.Get(SignatureHeader))
	assert.Empty(t, unsubscribedRequests())

	svc.Dispatch(ctx, domain.NewEvent(domain.EventWebhookTest, tenant.Customer.ID, nil))
	assert.Len(t, subscribedRequests(), 1)
}
