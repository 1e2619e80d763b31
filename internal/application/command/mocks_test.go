package command

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context) ([]*match.MatchRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*match.MatchRecord)
	return records, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (*match.MatchRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*match.MatchRecord)
	return record, args.Error(1)
}

func (m *mockStore) Append(ctx context.Context, record *match.MatchRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) Replace(ctx context.Context, oldID string, replacement *match.MatchRecord) error {
	return m.Called(ctx, oldID, replacement).Error(0)
}

func (m *mockStore) Reset(ctx context.Context, game string) (int, error) {
	args := m.Called(ctx, game)
	return args.Int(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(event shared.Event) error {
	return m.Called(event).Error(0)
}
