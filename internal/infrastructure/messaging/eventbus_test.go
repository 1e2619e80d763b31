package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

var at = time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC)

func TestInMemoryEventBus_DeliversTypedThenGlobal(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	defer bus.Close()

	var order []string
	require.NoError(t, bus.Subscribe(shared.EventMatchRegistered, func(shared.Event) error {
		order = append(order, "typed")
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		order = append(order, "all")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventMatchDeleted, func(shared.Event) error {
		order = append(order, "other")
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewMatchRegisteredEvent("m1", "Uno", []string{"A", "B", "C"}, nil, at)))
	assert.Equal(t, []string{"typed", "all"}, order)
}

func TestInMemoryEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { calls++; return nil }))

	assert.NoError(t, bus.Publish(shared.NewHistoryResetEvent("", 3, at)))
	assert.Equal(t, 1, calls)
}

func TestInMemoryEventBus_RecoversPanics(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	defer bus.Close()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("kaboom") }))
	assert.NotPanics(t, func() {
		_ = bus.Publish(shared.NewMatchDeletedEvent("m1", "Uno", at))
	})
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	errs   int
}

func (o *recordingObserver) ObserveEventHandled(eventType string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, eventType)
	if err != nil {
		o.errs++
	}
}

func TestInMemoryEventBus_ObserverMiddleware(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	defer bus.Close()

	obs := &recordingObserver{}
	bus.Use(ObserverMiddleware(obs))
	require.NoError(t, bus.Subscribe(shared.EventMatchCorrected, func(shared.Event) error { return errors.New("x") }))

	require.NoError(t, bus.Publish(shared.NewMatchCorrectedEvent("m2", "m1", "Uno", at)))
	assert.Equal(t, []string{"match.corrected"}, obs.events)
	assert.Equal(t, 1, obs.errs)
}

func TestInMemoryEventBus_AsyncWaitsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 2})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(shared.NewMatchDeletedEvent("m", "Uno", at)))
	}
	require.NoError(t, bus.Close())
	assert.Equal(t, int32(5), handled.Load())
}

func TestInMemoryEventBus_Closed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewHistoryResetEvent("", 0, at)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventHistoryReset, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
