package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan *domain.Event) *domain.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return nil
}

func TestPublishReachesTypeAndWildcardSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	typed := make(chan *domain.Event, 1)
	all := make(chan *domain.Event, 2)
	require.NoError(t, bus.Subscribe(domain.EventMessageSent, func(e *domain.Event) { typed <- e }))
	require.NoError(t, bus.Subscribe(AllEvents, func(e *domain.Event) { all <- e }))

	sent := domain.NewEvent(domain.EventMessageSent, "cust-1", nil)
	require.NoError(t, bus.Publish(sent))
	require.NoError(t, bus.Publish(domain.NewEvent(domain.EventTicketCreated, "cust-1", nil)))

	assert.Equal(t, sent.ID, recvEvent(t, typed).ID)
	got := []string{recvEvent(t, all).Type, recvEvent(t, all).Type}
	assert.ElementsMatch(t, []string{domain.EventMessageSent, domain.EventTicketCreated}, got)

	stats := bus.GetStats()
	assert.Equal(t, int64(2), stats.TotalEvents)
	assert.Equal(t, 2, stats.ActiveHandlers)
	assert.Equal(t, 1, stats.SubscriberCount[AllEvents])
}

func TestMiddlewareChain(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()
	for _, m := range CreateDefaultMiddlewareChain() {
		bus.Use(m)
	}
	bus.Use(DeduplicationMiddleware(time.Minute))

	var calls int32
	done := make(chan struct{}, 4)
	require.NoError(t, bus.Subscribe(AllEvents, func(e *domain.Event) {
		atomic.AddInt32(&calls, 1)
		done <- struct{}{}
	}))

	t.Run("events without a tenant are dropped", func(t *testing.T) {
		require.NoError(t, bus.Publish(&domain.Event{ID: "x", Type: domain.EventContactCreated}))
	})

	t.Run("duplicate ids are dropped", func(t *testing.T) {
		e := domain.NewEvent(domain.EventContactCreated, "cust-1", nil)
		require.NoError(t, bus.Publish(e))
		<-done
		require.NoError(t, bus.Publish(e))
	})

	require.NoError(t, bus.Close())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRecoveryKeepsBusAlive(t *testing.T) {
	bus := NewEventBus()
	bus.Use(RecoveryMiddleware)

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, bus.Subscribe(domain.EventTicketClosed, func(e *domain.Event) {
		defer wg.Done()
		panic("boom")
	}))

	require.NoError(t, bus.Publish(domain.NewEvent(domain.EventTicketClosed, "cust-1", nil)))
	wg.Wait()
	require.NoError(t, bus.Close())
}

type recordingObserver struct {
	mu    sync.Mutex
	types []string
}

func (o *recordingObserver) ObserveEvent(eventType string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.types = append(o.types, eventType)
}

func TestMetricsMiddlewareObserves(t *testing.T) {
	observer := &recordingObserver{}
	bus := NewEventBus()
	bus.Use(MetricsMiddleware(observer))
	require.NoError(t, bus.Subscribe(domain.EventTicketUpdated, func(*domain.Event) {}))

	require.NoError(t, bus.Publish(domain.NewEvent(domain.EventTicketUpdated, "cust-1", nil)))
	require.NoError(t, bus.Close())

	observer.mu.Lock()
	defer observer.mu.Unlock()
	assert.Equal(t, []string{domain.EventTicketUpdated}, observer.types)
}

func TestClosedBusRejectsWork(t *testing.T) {
	bus := NewEventBus()
	require.NoError(t, bus.Close())

	assert.Error(t, bus.Publish(domain.NewEvent(domain.EventTicketCreated, "cust-1", nil)))
	assert.Error(t, bus.Subscribe(domain.EventTicketCreated, func(*domain.Event) {}))
	assert.NoError(t, bus.Close())
}

func TestOrderedSubscriberSeesPublishOrder(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []string
	require.NoError(t, bus.SubscribeOrdered(AllEvents, func(e *domain.Event) {
		if e.Type == domain.EventConversationAssigned {
			// a slow first handler must not let later events overtake it
			time.Sleep(20 * time.Millisecond)
		}
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
	}))

	want := []string{domain.EventConversationAssigned, domain.EventMessageSent, domain.EventConversationClosed}
	for _, typ := range want {
		require.NoError(t, bus.Publish(domain.NewEvent(typ, "cust-1", nil)))
	}

	require.NoError(t, bus.Close())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
	assert.Error(t, bus.Publish(domain.NewEvent(domain.EventMessageSent, "cust-1", nil)))
}
