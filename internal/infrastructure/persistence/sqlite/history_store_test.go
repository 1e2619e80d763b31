package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

func newStore(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHistoryStore(db)
}

func newRecord(t *testing.T, game string, at time.Time, players ...string) *match.MatchRecord {
	t.Helper()
	r, err := match.NewMatchRecord(match.NewMatchInput{
		Game:         game,
		Duration:     "1h",
		Participants: shared.PlayerIDs(players...),
		PlayedAt:     at,
		RecordedBy:   "host",
	}, match.DefaultPolicy())
	require.NoError(t, err)
	return r
}

var base = time.Date(2024, 4, 20, 18, 30, 15, 123456789, time.UTC)

func TestHistoryStore_RoundTripPreservesRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newRecord(t, "Dixit", base, "c", "a", "b", "d")
	b := newRecord(t, "Uno", base.Add(-time.Hour), "x", "y", "z")
	require.NoError(t, s.Append(ctx, a))
	require.NoError(t, s.Append(ctx, b))

	records, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, a.Snapshot(), records[0].Snapshot())
	assert.Equal(t, b.ID(), records[1].ID(), "insertion order, not time order")
}

func TestHistoryStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, newRecord(t, "Uno", base, "a", "b", "c")))
	err := s.Append(ctx, newRecord(t, "uno", base, "a", "b", "c"))
	assert.ErrorIs(t, err, shared.ErrDuplicateMatch)

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHistoryStore_ReplaceIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newRecord(t, "Uno", base, "a", "b", "c")
	b := newRecord(t, "Uno", base.Add(time.Minute), "c", "b", "a")
	require.NoError(t, s.Append(ctx, a))
	require.NoError(t, s.Append(ctx, b))

	// замена, совпадающая с b, отклоняется, и a остаётся на месте
	clash, err := a.Replace(match.NewMatchInput{Game: "Uno", Duration: "1h", Participants: shared.PlayerIDs("c", "b", "a"), PlayedAt: b.Timestamp()}, match.DefaultPolicy())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Replace(ctx, a.ID(), clash), shared.ErrDuplicateMatch)

	_, err = s.Get(ctx, a.ID())
	require.NoError(t, err)

	fixed, err := a.Replace(match.NewMatchInput{Game: "Uno", Participants: shared.PlayerIDs("b", "a", "c")}, match.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, s.Replace(ctx, a.ID(), fixed))

	got, err := s.Get(ctx, fixed.ID())
	require.NoError(t, err)
	assert.Equal(t, shared.PlayerIDs("b", "a", "c"), got.Participants())
	assert.True(t, got.Timestamp().Equal(base))
}

func TestHistoryStore_DeleteAndReset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newRecord(t, "Uno", base, "a", "b", "c")
	require.NoError(t, s.Append(ctx, a))
	require.NoError(t, s.Append(ctx, newRecord(t, "Catan", base, "a", "b", "c")))
	require.NoError(t, s.Append(ctx, newRecord(t, "CATAN", base.Add(time.Hour), "a", "b", "c")))

	require.NoError(t, s.Delete(ctx, a.ID()))
	assert.ErrorIs(t, s.Delete(ctx, a.ID()), shared.ErrMatchNotFound)

	removed, err := s.Reset(ctx, "catan")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
}

func TestMigrate_UnknownCommand(t *testing.T) {
	db, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	assert.Error(t, Migrate(context.Background(), db, "sideways"))
	assert.NoError(t, Migrate(context.Background(), db, "status"))
}
