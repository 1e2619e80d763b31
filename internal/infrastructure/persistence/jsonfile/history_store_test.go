package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

var at = time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC)

func newRecord(t *testing.T, game string, offset time.Duration, players ...string) *match.MatchRecord {
	t.Helper()
	r, err := match.NewMatchRecord(match.NewMatchInput{
		Game:         game,
		Participants: shared.PlayerIDs(players...),
		PlayedAt:     at.Add(offset),
	}, match.RegistrationPolicy{MinParticipants: 1})
	require.NoError(t, err)
	return r
}

func newStore(t *testing.T) *HistoryStore {
	t.Helper()
	return NewHistoryStore(filepath.Join(t.TempDir(), "nested", "matches.json"))
}

func TestHistoryStore_MissingFileIsEmpty(t *testing.T) {
	s := newStore(t)

	records, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = s.Get(context.Background(), "x")
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
}

func TestHistoryStore_AppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first := newRecord(t, "Uno", 0, "c", "a", "b")
	second := newRecord(t, "Catan", time.Minute, "b", "c", "a")
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	// повторное открытие читает тот же файл
	reopened := NewHistoryStore(s.Path())
	records, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID(), records[0].ID())
	assert.Equal(t, shared.PlayerIDs("c", "a", "b"), records[0].Participants())
	assert.True(t, records[1].Timestamp().Equal(second.Timestamp()))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"version": 1`)
}

func TestHistoryStore_RejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	r := newRecord(t, "Uno", 0, "a", "b", "c")
	require.NoError(t, s.Append(ctx, r))

	again := newRecord(t, "uno", 0, "a", "b", "c")
	assert.ErrorIs(t, s.Append(ctx, again), shared.ErrDuplicateMatch)

	malformed := match.FromSnapshot(match.Snapshot{ID: "bad", Game: "Uno", Timestamp: at})
	assert.ErrorIs(t, s.Append(ctx, malformed), shared.ErrMalformedRecord)
}

func TestHistoryStore_DeleteAndReplace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newRecord(t, "Uno", 0, "a", "b", "c")
	b := newRecord(t, "Uno", time.Hour, "d", "e", "f")
	require.NoError(t, s.Append(ctx, a))
	require.NoError(t, s.Append(ctx, b))

	fixed, err := a.Replace(match.NewMatchInput{Game: "Uno", Participants: shared.PlayerIDs("b", "a", "c")}, match.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, s.Replace(ctx, a.ID(), fixed))

	_, err = s.Get(ctx, a.ID())
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
	got, err := s.Get(ctx, fixed.ID())
	require.NoError(t, err)
	assert.True(t, got.Timestamp().Equal(a.Timestamp()))

	require.NoError(t, s.Delete(ctx, b.ID()))
	assert.ErrorIs(t, s.Delete(ctx, b.ID()), shared.ErrMatchNotFound)
	assert.ErrorIs(t, s.Replace(ctx, "missing", fixed), shared.ErrMatchNotFound)
}

func TestHistoryStore_ResetPerGame(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Append(ctx, newRecord(t, "Uno", 0, "a", "b", "c")))
	require.NoError(t, s.Append(ctx, newRecord(t, "Catan", 0, "a", "b", "c")))
	require.NoError(t, s.Append(ctx, newRecord(t, "UNO", time.Hour, "a", "b", "c")))

	removed, err := s.Reset(ctx, "uno")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = s.Reset(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := newRecord(t, "Uno", time.Duration(i)*time.Minute, "a", "b", "c")
			assert.NoError(t, s.Append(ctx, r))
		}(i)
	}
	wg.Wait()

	records, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestDecode_LegacyArray(t *testing.T) {
	doc, err := Decode([]byte(`[{"id":"1","game":"Uno","timestamp":"2024-01-01T00:00:00Z","participants":["a","b","c"]}]`))
	require.NoError(t, err)
	require.Len(t, doc.Matches, 1)
	assert.Equal(t, "Uno", doc.Matches[0].Game)

	_, err = Decode([]byte(`{"version": 9, "matches": []}`))
	assert.True(t, shared.IsValidation(err))

	_, err = Decode([]byte(`not json`))
	assert.True(t, shared.IsValidation(err))
}

func TestHistoryStore_Import(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	r := newRecord(t, "Uno", 0, "a", "b", "c")
	require.NoError(t, s.Append(ctx, r))

	added, err := s.Import(ctx, []*match.MatchRecord{
		r,
		newRecord(t, "Uno", time.Hour, "c", "b", "a"),
		match.FromSnapshot(match.Snapshot{ID: "bad"}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

func TestHistoryStore_BadTimestampDoesNotBreakLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	data := []byte(`{"version": 1, "matches": [
		{"id":"good","game":"Uno","timestamp":"2024-01-01T20:00:00Z","participants":["a","b","c"]},
		{"id":"bad","game":"Uno","timestamp":"yesterday","participants":["d","e","f"]}
	]}`)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o755))
	require.NoError(t, os.WriteFile(s.Path(), data, 0o644))

	records, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.NoError(t, records[0].Validate())

	assert.Equal(t, "bad", records[1].ID())
	assert.Equal(t, shared.PlayerIDs("d", "e", "f"), records[1].Participants())
	assert.ErrorIs(t, records[1].Validate(), shared.ErrMalformedRecord)
}

func TestDecode_LegacyArrayWithBadTimestamp(t *testing.T) {
	doc, err := Decode([]byte(`[
		{"id":"1","game":"Uno","timestamp":"2024-01-01T00:00:00Z","participants":["a","b"]},
		{"id":"2","game":"Uno","timestamp":12,"participants":["a","b"]}
	]`))
	require.NoError(t, err)
	require.Len(t, doc.Matches, 2)
	assert.False(t, doc.Matches[0].Timestamp.IsZero())
	assert.Equal(t, "2", doc.Matches[1].ID)
	assert.True(t, doc.Matches[1].Timestamp.IsZero())
}
