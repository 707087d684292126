package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestTenantIsolation(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)

	a := testutil.SeedTenant(t, ctx, db, "alpha")
	b := testutil.SeedTenant(t, ctx, db, "beta")

	contactA := testutil.SeedContact(t, ctx, db, a.Customer.ID, "Ana", "+1555")
	testutil.SeedContact(t, ctx, db, b.Customer.ID, "Ben", "+1666")

	t.Run("get from other tenant is not found", func(t *testing.T) {
		_, err := repos.Contact().Get(ctx, b.Customer.ID, contactA.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("update from other tenant is not found and does not mutate", func(t *testing.T) {
		name := "Hijacked"
		_, err := repos.Contact().Update(ctx, b.Customer.ID, contactA.ID, &domain.UpdateContactRequest{Name: &name})
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		got, err := repos.Contact().Get(ctx, a.Customer.ID, contactA.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)
	})

	t.Run("list only returns own rows", func(t *testing.T) {
		items, total, err := repos.Contact().List(ctx, a.Customer.ID, domain.ContactFilter{}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, contactA.ID, items[0].ID)
	})

	t.Run("delete from other tenant is not found", func(t *testing.T) {
		tpl, err := repos.Template().Create(ctx, a.Customer.ID, &domain.CreateTemplateRequest{Name: "hi", Content: "Hi {{name}}"})
		require.NoError(t, err)

		err = repos.Template().Delete(ctx, b.Customer.ID, tpl.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		_, err = repos.Template().Get(ctx, a.Customer.ID, tpl.ID)
		assert.NoError(t, err)
	})

	t.Run("message status through other tenant is not found", func(t *testing.T) {
		channel := testutil.SeedChannel(t, ctx, db, a.Customer.ID, domain.ChannelTypeWhatsApp)
		conv := testutil.SeedConversation(t, ctx, db, a.Customer.ID, contactA.ID, channel.ID)
		msg := testutil.SeedMessage(t, ctx, db, conv.ID, domain.DirectionInbound, "hello", conv.CreatedAt)

		_, err := repos.Message().UpdateStatus(ctx, b.Customer.ID, msg.ID, domain.MessageStatusRead)
		assert.True(t, errors.Is(err, domain.ErrNotFound))

		updated, err := repos.Message().UpdateStatus(ctx, a.Customer.ID, msg.ID, domain.MessageStatusRead)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageStatusRead, updated.Status)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "tx")

	boom := errors.New("boom")
	err := repos.WithTx(ctx, func(ctx context.Context, tx RepositoryManager) error {
		if _, err := tx.Contact().Create(ctx, tenant.Customer.ID, &domain.CreateContactRequest{Name: "Temp"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, total, err := repos.Contact().List(ctx, tenant.Customer.ID, domain.ContactFilter{}, domain.NewPageRequest(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestListPagination(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "page")

	for _, name := range []string{"Carla", "Ana", "Bruno"} {
		testutil.SeedContact(t, ctx, db, tenant.Customer.ID, name, "")
	}

	page := domain.NewPageRequest(2, 2)
	items, total, err := repos.Contact().List(ctx, tenant.Customer.ID, domain.ContactFilter{}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, "Carla", items[0].Name)

	p := domain.NewPagination(page, total)
	assert.Equal(t, 2, p.Pages)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)
}

func TestTranslateError(t *testing.T) {
	assert.True(t, errors.Is(translateError(gorm.ErrRecordNotFound, "contact", "get"), domain.ErrNotFound))
	assert.True(t, errors.Is(translateError(gorm.ErrDuplicatedKey, "channel", "create"), domain.ErrConflict))

	forbidden := domain.Forbidden("nope")
	assert.Same(t, forbidden, translateError(forbidden, "x", "get"))

	cause := errors.New("disk full")
	err := translateError(cause, "ticket", "update")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
	assert.Contains(t, err.Error(), "failed to update ticket")
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_OFF"))
}
