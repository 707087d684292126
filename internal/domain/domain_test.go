package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleGate(t *testing.T) {
	tests := []struct {
		op      Operation
		allowed []Role
	}{
		{OpChannelWrite, []Role{RoleAdmin, RoleManager}},
		{OpChannelDelete, []Role{RoleAdmin}},
		{OpWebhookWrite, []Role{RoleAdmin, RoleManager}},
		{OpWebhookDelete, []Role{RoleAdmin}},
		{OpUserCreate, []Role{RoleAdmin}},
		{OpUserUpdate, []Role{RoleAdmin}},
		{OpUserList, []Role{RoleAdmin, RoleManager}},
		{OpCustomerSettingsWrite, []Role{RoleAdmin}},
		{OpActivityLogView, []Role{RoleAdmin, RoleManager}},
	}

	for _, tt := range tests {
		for _, role := range []Role{RoleAdmin, RoleManager, RoleAgent} {
			want := false
			for _, r := range tt.allowed {
				want = want || r == role
			}
			assert.Equal(t, want, Allowed(role, tt.op), "%s as %s", tt.op, role)

			err := Authorize(role, tt.op)
			if want {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrForbidden))
			}
		}
	}

	assert.False(t, Allowed(Role("owner"), OpChannelWrite), "unknown roles are denied")
	assert.False(t, Allowed(RoleAdmin, Operation("unknown:op")), "unknown operations are denied")
}

func TestPageRequest(t *testing.T) {
	assert.Equal(t, PageRequest{Page: 1, PerPage: DefaultPerPage}, NewPageRequest(0, 0))
	assert.Equal(t, PageRequest{Page: 1, PerPage: MaxPerPage}, NewPageRequest(-3, 1000))
	assert.Equal(t, 40, NewPageRequest(3, 20).Offset())

	p := NewPagination(NewPageRequest(2, 10), 25)
	assert.Equal(t, Pagination{Page: 2, Pages: 3, PerPage: 10, Total: 25, HasNext: true, HasPrev: true}, p)

	empty := NewPagination(NewPageRequest(1, 10), 0)
	assert.Equal(t, 0, empty.Pages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)
}

func TestTemplateVariables(t *testing.T) {
	content := "Hi {{name}}, order {{order_id}} ships {{date}}. Thanks {{name}}! {{ not_a_var }}"
	assert.Equal(t, []string{"name", "order_id", "date"}, ExtractVariables(content))
	assert.Empty(t, ExtractVariables("no placeholders"))

	rendered := RenderTemplate(content, map[string]string{"name": "Ana", "order_id": "A-1"})
	assert.Equal(t, "Hi Ana, order A-1 ships {{date}}. Thanks Ana! {{ not_a_var }}", rendered)

	t.Run("values are literal", func(t *testing.T) {
		assert.Equal(t, "cost: $1 {{b}}", RenderTemplate("cost: {{a}} {{b}}", map[string]string{"a": "$1"}))
	})

	t.Run("values containing placeholders are not expanded", func(t *testing.T) {
		values := map[string]string{"a": "{{b}}", "b": "X"}
		assert.Equal(t, "Hi {{b}} X", RenderTemplate("Hi {{a}} {{b}}", values))
		assert.Equal(t, "Hi {{b}}", RenderTemplate("Hi {{a}}", values))
	})

	t.Run("non-string variables are formatted", func(t *testing.T) {
		req := UseTemplateRequest{Variables: map[string]interface{}{"count": 3, "name": "Ana"}}
		assert.Equal(t, map[string]string{"count": "3", "name": "Ana"}, req.Values())
	})
}

func TestRedactSecrets(t *testing.T) {
	ch := &Channel{Config: map[string]interface{}{
		"phone_number_id": "123",
		"Access_Token":    "abc",
		"app_secret":      "xyz",
	}}

	redacted := ch.RedactedConfig()
	assert.Equal(t, "123", redacted["phone_number_id"])
	assert.Equal(t, "***", redacted["Access_Token"])
	assert.Equal(t, "***", redacted["app_secret"])
	assert.Equal(t, "abc", ch.Config["Access_Token"], "the channel itself is untouched")

	raw, err := json.Marshal(&Channel{Credentials: map[string]interface{}{"api_key": "k"}})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "api_key")
}

func TestMergeSettings(t *testing.T) {
	base := DefaultCustomerSettings()
	merged := MergeSettings(base, map[string]interface{}{
		"ui":     map[string]interface{}{"theme": "dark"},
		"custom": true,
	})

	assert.Equal(t, map[string]interface{}{"theme": "dark"}, merged["ui"], "merge is shallow")
	assert.Equal(t, base["notifications"], merged["notifications"])
	assert.Equal(t, true, merged["custom"])
	_, touched := base["custom"]
	assert.False(t, touched)
}

func TestErrors(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("contact %s not found", "c1"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "not_found", KindOf(err).String())

	cause := errors.New("disk full")
	internal := Internal(cause, "save contact")
	assert.True(t, errors.Is(internal, cause))
	assert.Equal(t, KindInternal, KindOf(internal))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestConversationAssignment(t *testing.T) {
	agent := StringPtr("u1")

	open := &Conversation{Status: ConversationStatusOpen}
	assert.Equal(t, ConversationStatusAssigned, open.StatusAfterAssignment(agent))

	assigned := &Conversation{Status: ConversationStatusAssigned}
	assert.Equal(t, ConversationStatusOpen, assigned.StatusAfterAssignment(nil))

	closed := &Conversation{Status: ConversationStatusClosed}
	assert.Equal(t, ConversationStatusOpen, closed.StatusAfterAssignment(nil))
	assert.Equal(t, ConversationStatusAssigned, closed.StatusAfterAssignment(agent))

	archived := &Conversation{Status: ConversationStatusArchived}
	assert.Equal(t, ConversationStatusOpen, archived.StatusAfterAssignment(nil))
}

func TestWebhookRequests(t *testing.T) {
	valid := &CreateWebhookRequest{URL: "https://example.test/hook", Events: []string{EventMessageSent}}
	assert.NoError(t, valid.Validate())

	for name, req := range map[string]*CreateWebhookRequest{
		"ftp url":       {URL: "ftp://example.test", Events: []string{EventMessageSent}},
		"relative url":  {URL: "/hook", Events: []string{EventMessageSent}},
		"no events":     {URL: "https://example.test"},
		"unknown event": {URL: "https://example.test", Events: []string{"message.deleted"}},
		"test event":    {URL: "https://example.test", Events: []string{EventWebhookTest}},
	} {
		assert.True(t, errors.Is(req.Validate(), ErrInvalidInput), name)
	}

	empty := []string{}
	assert.Error(t, (&UpdateWebhookRequest{Events: &empty}).Validate())
	assert.Len(t, WebhookEventCatalog(), 10)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, SplitCSV(""))
	assert.Equal(t, []string{"vip", "lead"}, SplitCSV(" vip, ,lead ,"))
}
