package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")
	other := testutil.SeedTenant(t, ctx, db, "beta")

	now := time.Now().UTC()
	contact := testutil.SeedContact(t, ctx, db, tenant.Customer.ID, "Ana", "+1555")
	whatsapp := testutil.SeedChannel(t, ctx, db, tenant.Customer.ID, domain.ChannelTypeWhatsApp)
	conv := testutil.SeedConversation(t, ctx, db, tenant.Customer.ID, contact.ID, whatsapp.ID)
	testutil.SeedMessage(t, ctx, db, conv.ID, domain.DirectionInbound, "hi", now.Add(-10*time.Minute))
	testutil.SeedMessage(t, ctx, db, conv.ID, domain.DirectionOutbound, "hello", now.Add(-5*time.Minute))
	testutil.SeedTicket(t, ctx, db, tenant.Customer.ID, "Help")

	foreignContact := testutil.SeedContact(t, ctx, db, other.Customer.ID, "Ben", "+1666")
	foreignChannel := testutil.SeedChannel(t, ctx, db, other.Customer.ID, domain.ChannelTypeSMS)
	foreignConv := testutil.SeedConversation(t, ctx, db, other.Customer.ID, foreignContact.ID, foreignChannel.ID)
	testutil.SeedMessage(t, ctx, db, foreignConv.ID, domain.DirectionInbound, "hey", now.Add(-time.Minute))

	t.Run("dashboard only counts the tenant", func(t *testing.T) {
		dash, err := repos.Report().Dashboard(ctx, tenant.Customer.ID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), dash.Stats.TotalConversations)
		assert.Equal(t, int64(2), dash.Stats.TotalMessages)
		assert.Equal(t, int64(1), dash.Stats.TotalContacts)
		assert.Equal(t, int64(1), dash.Stats.TotalTickets)
		assert.Equal(t, int64(1), dash.Stats.ActiveConversations)
		assert.Equal(t, int64(1), dash.Stats.PendingTickets)
		assert.Equal(t, map[string]int64{"whatsapp": 1}, dash.ChannelDistribution)
		assert.Len(t, dash.MessageTrend, 7)
	})

	period := domain.DateRange{Start: now.Add(-24 * time.Hour), End: now.Add(time.Hour)}

	t.Run("conversation report measures first response", func(t *testing.T) {
		report, err := repos.Report().Conversations(ctx, tenant.Customer.ID, period, "")
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.TotalConversations)
		assert.Equal(t, int64(1), report.StatusDistribution["open"])
		assert.InDelta(t, 5.0, report.AvgResponseTimeMinutes, 0.01)
	})

	t.Run("message report splits directions", func(t *testing.T) {
		report, err := repos.Report().Messages(ctx, tenant.Customer.ID, period)
		require.NoError(t, err)
		assert.Equal(t, int64(2), report.TotalMessages)
		assert.Equal(t, int64(1), report.InboundMessages)
		assert.Equal(t, int64(1), report.OutboundMessages)
		assert.Equal(t, int64(2), report.TypeDistribution["text"])
	})

	t.Run("ticket report labels unassigned work", func(t *testing.T) {
		report, err := repos.Report().Tickets(ctx, tenant.Customer.ID, period)
		require.NoError(t, err)
		assert.Equal(t, int64(1), report.TotalTickets)
		assert.Equal(t, int64(0), report.ResolvedTickets)
		assert.Equal(t, int64(1), report.AgentDistribution["Unassigned"])
		assert.Equal(t, int64(1), report.CategoryDistribution["Uncategorized"])
	})

	t.Run("agents report lists active users", func(t *testing.T) {
		agents, err := repos.Report().Agents(ctx, tenant.Customer.ID, period)
		require.NoError(t, err)
		require.Len(t, agents, 1)
		assert.Equal(t, tenant.Admin.ID, agents[0].Agent.ID)
		assert.Equal(t, "Ana Lopez", agents[0].Agent.Name)
	})
}
