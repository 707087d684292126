package pubsub

import (
	"encoding/json"
	"testing"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessage(t *testing.T) {
	svc := NewPubSubServiceWithTopic(nil, &PubSubConfig{PubID: "stage"})

	event := domain.NewEvent(domain.EventMessageSent, "cust-1", map[string]interface{}{"id": "m1"}).ForConversation("conv-1")
	msg, err := svc.EventMessage(event)
	require.NoError(t, err)

	assert.Equal(t, "stage:"+event.ID, msg.Attributes["name"])
	assert.Equal(t, domain.EventMessageSent, msg.Attributes["event_type"])
	assert.Equal(t, "cust-1", msg.Attributes["customer_id"])
	assert.Equal(t, "conv-1", msg.Attributes["conversation_id"])

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "cust-1", decoded.CustomerID)
}

func TestEventMessageWithoutConversation(t *testing.T) {
	svc := NewPubSubServiceWithTopic(nil, &PubSubConfig{})

	event := domain.NewEvent(domain.EventContactCreated, "cust-1", nil)
	msg, err := svc.EventMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.ID, msg.Attributes["name"])
	_, ok := msg.Attributes["conversation_id"]
	assert.False(t, ok)
}
