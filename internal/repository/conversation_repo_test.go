package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationAssignment(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)

	tenant := testutil.SeedTenant(t, ctx, db, "alpha")
	other := testutil.SeedTenant(t, ctx, db, "beta")
	contact := testutil.SeedContact(t, ctx, db, tenant.Customer.ID, "Ana", "+1555")
	channel := testutil.SeedChannel(t, ctx, db, tenant.Customer.ID, domain.ChannelTypeWhatsApp)

	conv, err := repos.Conversation().Create(ctx, tenant.Customer.ID, &domain.CreateConversationRequest{
		ContactID: contact.ID,
		ChannelID: channel.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusOpen, conv.Status)
	assert.Equal(t, domain.PriorityNormal, conv.Priority)

	agentID := tenant.Admin.ID
	assigned, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, &agentID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, agentID, *assigned.AssignedTo)

	unassigned, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusOpen, unassigned.Status)
	assert.Nil(t, unassigned.AssignedTo)

	t.Run("agent of another tenant is not found", func(t *testing.T) {
		foreign := other.Admin.ID
		_, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, &foreign)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("inactive agent is not found", func(t *testing.T) {
		agent := testutil.SeedUser(t, ctx, db, tenant.Customer.ID, "off@alpha.test", domain.RoleAgent)
		require.NoError(t, db.Model(agent).Update("is_active", false).Error)
		_, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, &agent.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("unassigning a closed conversation reopens it", func(t *testing.T) {
		_, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, &agentID)
		require.NoError(t, err)
		_, err = repos.Conversation().SetStatus(ctx, tenant.Customer.ID, conv.ID, domain.ConversationStatusClosed)
		require.NoError(t, err)

		got, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationStatusOpen, got.Status)
		assert.Nil(t, got.AssignedTo)
	})

	t.Run("assigning a closed conversation marks it assigned", func(t *testing.T) {
		_, err := repos.Conversation().SetStatus(ctx, tenant.Customer.ID, conv.ID, domain.ConversationStatusClosed)
		require.NoError(t, err)
		got, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, conv.ID, &agentID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConversationStatusAssigned, got.Status)
	})

	t.Run("invalid status is rejected", func(t *testing.T) {
		_, err := repos.Conversation().SetStatus(ctx, tenant.Customer.ID, conv.ID, "snoozed")
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("contact of another tenant cannot be referenced", func(t *testing.T) {
		foreign := testutil.SeedContact(t, ctx, db, other.Customer.ID, "Ben", "+1666")
		_, err := repos.Conversation().Create(ctx, tenant.Customer.ID, &domain.CreateConversationRequest{
			ContactID: foreign.ID,
			ChannelID: channel.ID,
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestConversationListAndMessages(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)

	tenant := testutil.SeedTenant(t, ctx, db, "alpha")
	ana := testutil.SeedContact(t, ctx, db, tenant.Customer.ID, "Ana", "+1555")
	ben := testutil.SeedContact(t, ctx, db, tenant.Customer.ID, "Ben", "+1666")
	whatsapp := testutil.SeedChannel(t, ctx, db, tenant.Customer.ID, domain.ChannelTypeWhatsApp)
	telegram := testutil.SeedChannel(t, ctx, db, tenant.Customer.ID, domain.ChannelTypeTelegram)

	convAna := testutil.SeedConversation(t, ctx, db, tenant.Customer.ID, ana.ID, whatsapp.ID)
	convBen := testutil.SeedConversation(t, ctx, db, tenant.Customer.ID, ben.ID, telegram.ID)

	earlier := time.Now().UTC().Add(-time.Hour)
	testutil.SeedMessage(t, ctx, db, convAna.ID, domain.DirectionInbound, "where is my order", earlier)
	testutil.SeedMessage(t, ctx, db, convAna.ID, domain.DirectionInbound, "hello?", earlier.Add(time.Minute))

	sent, err := repos.Message().Send(ctx, tenant.Customer.ID, tenant.Admin.ID, &domain.SendMessageRequest{
		ConversationID: convBen.ID,
		Content:        json.RawMessage(`{"text":"Your order shipped"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionOutbound, sent.Direction)
	assert.Equal(t, domain.MessageStatusSent, sent.Status)
	assert.Equal(t, "text", sent.Type)

	touched, err := repos.Conversation().Get(ctx, tenant.Customer.ID, convBen.ID)
	require.NoError(t, err)
	require.NotNil(t, touched.LastMessageAt)

	t.Run("list orders by last activity and summarizes", func(t *testing.T) {
		rows, total, err := repos.Conversation().List(ctx, tenant.Customer.ID, domain.ConversationFilter{}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, rows, 2)
		assert.Equal(t, convBen.ID, rows[0].ID)
		require.NotNil(t, rows[0].LastMessage)
		assert.Equal(t, sent.ID, rows[0].LastMessage.ID)

		require.NotNil(t, rows[1].Contact)
		assert.Equal(t, "Ana", rows[1].Contact.Name)
		require.NotNil(t, rows[1].Channel)
		assert.Equal(t, domain.ChannelTypeWhatsApp, rows[1].Channel.Type)
		assert.Equal(t, int64(2), rows[1].UnreadCount)
	})

	t.Run("filters by channel type and contact search", func(t *testing.T) {
		rows, _, err := repos.Conversation().List(ctx, tenant.Customer.ID, domain.ConversationFilter{ChannelType: domain.ChannelTypeTelegram}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, convBen.ID, rows[0].ID)

		rows, _, err = repos.Conversation().List(ctx, tenant.Customer.ID, domain.ConversationFilter{Search: "an"}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, convAna.ID, rows[0].ID)
	})

	t.Run("messages are chronological", func(t *testing.T) {
		msgs, err := repos.Message().ListByConversation(ctx, tenant.Customer.ID, convAna.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	})

	t.Run("search matches content within the tenant", func(t *testing.T) {
		hits, total, err := repos.Message().Search(ctx, tenant.Customer.ID, "ORDER", "", domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, hits, 2)
		assert.Equal(t, "Ben", hits[0].ContactName)

		_, _, err = repos.Message().Search(ctx, tenant.Customer.ID, "", "", domain.NewPageRequest(1, 20))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("stats count by status", func(t *testing.T) {
		agentID := tenant.Admin.ID
		_, err := repos.Conversation().Assign(ctx, tenant.Customer.ID, convAna.ID, &agentID)
		require.NoError(t, err)

		stats, err := repos.Conversation().Stats(ctx, tenant.Customer.ID, tenant.Admin.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Total)
		assert.Equal(t, int64(1), stats.Open)
		assert.Equal(t, int64(1), stats.Assigned)
		assert.Equal(t, int64(1), stats.MyConversations)
	})
}
