package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketLifecycle(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")
	other := testutil.SeedTenant(t, ctx, db, "beta")

	ticket, err := repos.Ticket().Create(ctx, tenant.Customer.ID, &domain.CreateTicketRequest{
		Title:    "Refund request",
		Priority: domain.PriorityHigh,
		Category: "billing",
		Tags:     []string{"vip"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.ResolvedAt)

	agentID := tenant.Admin.ID
	assigned, err := repos.Ticket().Assign(ctx, tenant.Customer.ID, ticket.ID, &agentID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, assigned.Status)

	stats, err := repos.Ticket().Stats(ctx, tenant.Customer.ID, agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.InProgress)
	assert.Equal(t, int64(1), stats.HighPriorityOpen)
	assert.Equal(t, int64(0), stats.UrgentOpen)
	assert.Equal(t, int64(1), stats.MyTickets)

	resolution := "refunded"
	resolved, err := repos.Ticket().SetStatus(ctx, tenant.Customer.ID, ticket.ID, &domain.TicketStatusRequest{
		Status:     domain.TicketStatusResolved,
		Resolution: &resolution,
	})
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, "refunded", resolved.Resolution)
	firstResolvedAt := *resolved.ResolvedAt

	closed, err := repos.Ticket().SetStatus(ctx, tenant.Customer.ID, ticket.ID, &domain.TicketStatusRequest{Status: domain.TicketStatusClosed})
	require.NoError(t, err)
	require.NotNil(t, closed.ResolvedAt)
	assert.True(t, firstResolvedAt.Equal(*closed.ResolvedAt))

	stats, err = repos.Ticket().Stats(ctx, tenant.Customer.ID, agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Closed)
	assert.Equal(t, int64(0), stats.HighPriorityOpen)
	assert.Equal(t, int64(0), stats.MyTickets)

	t.Run("invalid status is rejected", func(t *testing.T) {
		_, err := repos.Ticket().SetStatus(ctx, tenant.Customer.ID, ticket.ID, &domain.TicketStatusRequest{Status: "waiting"})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("assignee of another tenant is not found", func(t *testing.T) {
		_, err := repos.Ticket().Create(ctx, tenant.Customer.ID, &domain.CreateTicketRequest{
			Title:      "Broken link",
			AssignedTo: &other.Admin.ID,
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("unassign keeps status", func(t *testing.T) {
		open := testutil.SeedTicket(t, ctx, db, tenant.Customer.ID, "Question")
		got, err := repos.Ticket().Assign(ctx, tenant.Customer.ID, open.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusOpen, got.Status)
		assert.Nil(t, got.AssignedTo)
	})

	t.Run("list filters by search and unassigned", func(t *testing.T) {
		rows, total, err := repos.Ticket().List(ctx, tenant.Customer.ID, domain.TicketFilter{Search: "refund"}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
		assert.Equal(t, ticket.ID, rows[0].ID)

		rows, _, err = repos.Ticket().List(ctx, tenant.Customer.ID, domain.TicketFilter{Unassigned: true}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "Question", rows[0].Title)
	})
}
