package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")

	hook, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL:    "https://hooks.example.com/crm",
		Events: []string{domain.EventMessageReceived, domain.EventTicketCreated},
	}, "s3cret")
	require.NoError(t, err)
	assert.True(t, hook.IsActive)
	assert.Equal(t, "s3cret", hook.Secret)

	_, err = repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
		URL:    "https://hooks.example.com/other",
		Events: []string{domain.EventMessageSent},
	}, "other")
	require.NoError(t, err)

	t.Run("unknown events are rejected", func(t *testing.T) {
		_, err := repos.Webhook().Create(ctx, tenant.Customer.ID, &domain.CreateWebhookRequest{
			URL:    "https://hooks.example.com/crm",
			Events: []string{"message.deleted"},
		}, "x")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("only subscribed active webhooks are listed", func(t *testing.T) {
		subs, err := repos.Webhook().ListSubscribed(ctx, tenant.Customer.ID, domain.EventMessageReceived)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, hook.ID, subs[0].ID)

		inactive := false
		_, err = repos.Webhook().Update(ctx, tenant.Customer.ID, hook.ID, &domain.UpdateWebhookRequest{IsActive: &inactive})
		require.NoError(t, err)

		subs, err = repos.Webhook().ListSubscribed(ctx, tenant.Customer.ID, domain.EventMessageReceived)
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("delivery results are recorded", func(t *testing.T) {
		at := time.Now().UTC()
		require.NoError(t, repos.Webhook().RecordDelivery(ctx, tenant.Customer.ID, hook.ID, false, at))
		require.NoError(t, repos.Webhook().RecordDelivery(ctx, tenant.Customer.ID, hook.ID, false, at))
		require.NoError(t, repos.Webhook().RecordDelivery(ctx, tenant.Customer.ID, hook.ID, true, at))

		got, err := repos.Webhook().Get(ctx, tenant.Customer.ID, hook.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.FailureCount)
		require.NotNil(t, got.LastDelivery)
	})
}
