package repository

import (
	"context"
	"testing"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateUse(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repos := NewGormRepositoryManager(db)
	tenant := testutil.SeedTenant(t, ctx, db, "alpha")

	tpl, err := repos.Template().Create(ctx, tenant.Customer.ID, &domain.CreateTemplateRequest{
		Name:     "Shipping",
		Content:  "Hi {{name}}, your order {{order_id}} shipped",
		Category: "Logistics",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "order_id"}, []string(tpl.Variables))
	assert.Equal(t, domain.TemplateTypeText, tpl.Type)
	assert.True(t, tpl.IsActive)
	assert.Equal(t, 0, tpl.UsageCount)

	rendered, err := repos.Template().Use(ctx, tenant.Customer.ID, tpl.ID, map[string]string{"name": "Ana", "order_id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, your order 42 shipped", rendered.ProcessedContent)
	assert.Equal(t, tpl.Content, rendered.OriginalContent)
	require.NotNil(t, rendered.Template)
	assert.Equal(t, 1, rendered.Template.UsageCount)

	t.Run("missing values stay as placeholders", func(t *testing.T) {
		rendered, err := repos.Template().Use(ctx, tenant.Customer.ID, tpl.ID, map[string]string{"name": "Ana"})
		require.NoError(t, err)
		assert.Equal(t, "Hi Ana, your order {{order_id}} shipped", rendered.ProcessedContent)
		assert.Equal(t, 2, rendered.Template.UsageCount)
	})

	t.Run("content change recomputes variables", func(t *testing.T) {
		content := "Bye {{name}}"
		updated, err := repos.Template().Update(ctx, tenant.Customer.ID, tpl.ID, &domain.UpdateTemplateRequest{Content: &content})
		require.NoError(t, err)
		assert.Equal(t, []string{"name"}, []string(updated.Variables))
	})

	t.Run("categories merge predefined with used ones", func(t *testing.T) {
		categories, err := repos.Template().Categories(ctx, tenant.Customer.ID)
		require.NoError(t, err)
		assert.Contains(t, categories, "Logistics")
		assert.Contains(t, categories, "Welcome")
		assert.Len(t, categories, len(domain.PredefinedTemplateCategories)+1)
	})

	t.Run("list orders by usage", func(t *testing.T) {
		_, err := repos.Template().Create(ctx, tenant.Customer.ID, &domain.CreateTemplateRequest{Name: "Unused", Content: "Hello"})
		require.NoError(t, err)

		active := true
		rows, total, err := repos.Template().List(ctx, tenant.Customer.ID, domain.TemplateFilter{IsActive: &active}, domain.NewPageRequest(1, 20))
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, rows, 2)
		assert.Equal(t, tpl.ID, rows[0].ID)
	})

	t.Run("import reports invalid rows", func(t *testing.T) {
		result, err := repos.Template().Import(ctx, tenant.Customer.ID, []domain.CreateTemplateRequest{
			{Name: "Welcome", Content: "Welcome {{name}}"},
			{Name: "", Content: "nameless"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)
		require.Len(t, result.Errors, 1)
	})
}
