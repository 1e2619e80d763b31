package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key leaderboard.CacheKey) (leaderboard.CachedStandings, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(leaderboard.CachedStandings), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key leaderboard.CacheKey, e leaderboard.CachedStandings) error {
	return m.Called(ctx, key, e).Error(0)
}

func (m *mockCache) InvalidateAll(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingBus struct {
	subscribed []shared.EventType
}

func (b *recordingBus) Subscribe(t shared.EventType, _ shared.EventHandler) error {
	b.subscribed = append(b.subscribed, t)
	return nil
}

func (b *recordingBus) SubscribeAll(shared.EventHandler) error { return nil }

func TestOnHistoryChanged_InvalidatesCache(t *testing.T) {
	cache := new(mockCache)
	cache.On("InvalidateAll", mock.Anything).Return(nil).Once()

	h := NewOnHistoryChangedHandler(cache, nil)
	err := h.Handle(shared.NewMatchDeletedEvent("m1", "Uno", time.Now()))

	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestOnHistoryChanged_ReturnsCacheError(t *testing.T) {
	cache := new(mockCache)
	cache.On("InvalidateAll", mock.Anything).Return(errors.New("redis down"))

	h := NewOnHistoryChangedHandler(cache, nil)
	assert.Error(t, h.Handle(shared.NewHistoryResetEvent("", 3, time.Now())))
}

func TestOnHistoryChanged_NilCache(t *testing.T) {
	h := NewOnHistoryChangedHandler(nil, nil)
	assert.NoError(t, h.Handle(shared.NewHistoryResetEvent("", 0, time.Now())))
}

func TestOnHistoryChanged_Register(t *testing.T) {
	bus := &recordingBus{}
	require.NoError(t, NewOnHistoryChangedHandler(nil, nil).Register(bus))
	assert.Equal(t, HistoryEvents, bus.subscribed)
}
