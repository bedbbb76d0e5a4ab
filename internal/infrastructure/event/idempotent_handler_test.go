package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/cache"
)

type flakyIdempotencyStore struct {
	mock.Mock
}

func (m *flakyIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *flakyIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *flakyIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newGuardedHandler(t *testing.T, inner shared.EventHandler, opts ...IdempotentHandlerOption) *IdempotentHandler {
	t.Helper()
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewIdempotentHandler(inner, store, zap.NewNop(), opts...)
}

func TestIdempotentHandler_FirstDeliveryProcessed(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	guarded := newGuardedHandler(t, inner)

	evt := newOrderEvent("payment.settled")
	require.NoError(t, guarded.Handle(context.Background(), evt))

	assert.Len(t, inner.seenEvents(), 1)
	stats := guarded.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(0), stats.EventsDuplicate)
}

func TestIdempotentHandler_RedeliveryDropped(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	guarded := newGuardedHandler(t, inner)

	evt := newOrderEvent("payment.settled")
	for i := 0; i < 3; i++ {
		require.NoError(t, guarded.Handle(context.Background(), evt))
	}

	assert.Len(t, inner.seenEvents(), 1)
	stats := guarded.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(2), stats.EventsDuplicate)
}

func TestIdempotentHandler_FailureKeepsClaim(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	inner.failWith = errors.New("audit storage down")
	guarded := newGuardedHandler(t, inner)

	evt := newOrderEvent("payment.settled")
	require.Error(t, guarded.Handle(context.Background(), evt))

	// The claim survives the failure, so an immediate redelivery is
	// still treated as a duplicate until the TTL lapses.
	inner.failWith = nil
	require.NoError(t, guarded.Handle(context.Background(), evt))
	assert.Len(t, inner.seenEvents(), 1)

	stats := guarded.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsFailed)
	assert.Equal(t, int64(1), stats.EventsDuplicate)
	assert.Equal(t, int64(0), stats.EventsProcessed)
}

func TestIdempotentHandler_StoreOutageDegradesToAtLeastOnce(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	store := new(flakyIdempotencyStore)
	evt := newOrderEvent("payment.settled")

	store.On("MarkProcessed", mock.Anything, evt.EventID().String(), mock.Anything).
		Return(false, errors.New("redis connection refused"))

	guarded := NewIdempotentHandler(inner, store, zap.NewNop())
	require.NoError(t, guarded.Handle(context.Background(), evt))

	assert.Len(t, inner.seenEvents(), 1)
	store.AssertExpectations(t)
}

func TestIdempotentHandler_DisabledPassesThrough(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	cfg := shared.DefaultIdempotencyConfig()
	cfg.Enabled = false
	guarded := newGuardedHandler(t, inner, WithIdempotencyConfig(cfg))

	evt := newOrderEvent("payment.settled")
	for i := 0; i < 3; i++ {
		require.NoError(t, guarded.Handle(context.Background(), evt))
	}

	assert.Len(t, inner.seenEvents(), 3)
	stats := guarded.GetMetrics().Stats()
	assert.Equal(t, int64(0), stats.EventsProcessed)
	assert.Equal(t, int64(0), stats.EventsDuplicate)
}

func TestIdempotentHandler_EventTypesPassThrough(t *testing.T) {
	inner := newRecordingHandler("order.placed", "order.paid")
	guarded := newGuardedHandler(t, inner)

	assert.Equal(t, []string{"order.placed", "order.paid"}, guarded.EventTypes())
}

func TestIdempotentHandler_SharedMetrics(t *testing.T) {
	counters := &IdempotencyMetrics{}

	auditInner := newRecordingHandler()
	notifyInner := newRecordingHandler("order.paid")
	audit := newGuardedHandler(t, auditInner, WithIdempotencyMetrics(counters))
	notify := newGuardedHandler(t, notifyInner, WithIdempotencyMetrics(counters))

	require.NoError(t, audit.Handle(context.Background(), newOrderEvent("order.placed")))
	require.NoError(t, notify.Handle(context.Background(), newOrderEvent("order.paid")))

	assert.Equal(t, int64(2), counters.Stats().EventsProcessed)
}

func TestIdempotentHandler_ConcurrentRedelivery(t *testing.T) {
	inner := newRecordingHandler("payment.settled")
	guarded := newGuardedHandler(t, inner)

	evt := newOrderEvent("payment.settled")

	const deliveries = 50
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = guarded.Handle(context.Background(), evt)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, inner.seenEvents(), 1)
	stats := guarded.GetMetrics().Stats()
	assert.Equal(t, int64(1), stats.EventsProcessed)
	assert.Equal(t, int64(deliveries-1), stats.EventsDuplicate)
}
