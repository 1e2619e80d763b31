package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

var now = time.Date(2024, 8, 4, 20, 0, 0, 0, time.UTC)

// historyStub отдаёт фиксированную историю и считает обращения.
type historyStub struct {
	match.HistoryStore
	records []*match.MatchRecord
	loads   int
}

func (s *historyStub) Load(context.Context) ([]*match.MatchRecord, error) {
	s.loads++
	return s.records, nil
}

func (s *historyStub) Get(_ context.Context, id string) (*match.MatchRecord, error) {
	for _, r := range s.records {
		if r.ID() == id {
			return r, nil
		}
	}
	return nil, shared.ErrMatchNotFound
}

type mapCache struct {
	mu      sync.Mutex
	entries map[leaderboard.CacheKey]leaderboard.CachedStandings
}

func (c *mapCache) Get(_ context.Context, key leaderboard.CacheKey) (leaderboard.CachedStandings, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *mapCache) Set(_ context.Context, key leaderboard.CacheKey, e leaderboard.CachedStandings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	return nil
}

func (c *mapCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[leaderboard.CacheKey]leaderboard.CachedStandings{}
	return nil
}

type countingObserver struct {
	aggregations int
	hits, misses int
}

func (o *countingObserver) ObserveAggregation(string, time.Duration, int, int) { o.aggregations++ }
func (o *countingObserver) ObserveCache(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func rec(id, game string, at time.Time, players ...string) *match.MatchRecord {
	return match.FromSnapshot(match.Snapshot{ID: id, Game: game, Timestamp: at, Participants: players})
}

func fixture() *historyStub {
	return &historyStub{records: []*match.MatchRecord{
		rec("m1", "Catan", now.Add(-2*24*time.Hour), "1", "2", "3"),
		rec("m2", "Catan", now.Add(-20*24*time.Hour), "2", "1", "3"),
		rec("m3", "Uno", now.Add(-time.Hour), "3", "2", "1", "4"),
		rec("bad", "Uno", now),
	}}
}

func TestGetLeaderboard(t *testing.T) {
	store := fixture()
	svc := NewStandingsService(store, scoring.Standard(), WithClock(timeutil.NewFixedClock(now)))
	h := NewGetLeaderboardHandler(svc, leaderboard.StaticResolver{"1": "Ana"})

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Window: "semana"})
	require.NoError(t, err)

	assert.Equal(t, "week", res.Window)
	assert.Equal(t, 2, res.MatchesCounted)
	assert.Equal(t, 1, res.SkippedRecords)
	require.Len(t, res.Entries, 4)

	// m1: 1:+3 2:+1 3:-1; m3: 3:+3 2:+1 1:0 4:-1
	assert.Equal(t, "1", res.Entries[0].PlayerID)
	assert.Equal(t, "Ana", res.Entries[0].DisplayName)
	assert.Equal(t, 3, res.Entries[0].Points)
	assert.Equal(t, "2", res.Entries[1].PlayerID)
	assert.Equal(t, "2", res.Entries[1].DisplayName)
	assert.Equal(t, "3", res.Entries[2].PlayerID)
	assert.Equal(t, 3, res.Entries[2].Rank)
	assert.Equal(t, "4", res.Entries[3].PlayerID)
}

func TestGetLeaderboard_LimitAndGame(t *testing.T) {
	svc := NewStandingsService(fixture(), scoring.Standard(), WithClock(timeutil.NewFixedClock(now)))
	h := NewGetLeaderboardHandler(svc, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Game: "catan", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.Equal(t, 3, res.TotalPlayers)
	assert.Equal(t, "all", res.Window)

	q := GetLeaderboardQuery{Limit: 1000}
	require.NoError(t, q.Validate())
	assert.Equal(t, MaxLimit, q.Limit)

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Limit: -1})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), GetLeaderboardQuery{Window: "decade"})
	assert.ErrorIs(t, err, shared.ErrInvalidTimeWindow)
}

func TestGetLeaderboard_EmptyPeriodIsNotAnError(t *testing.T) {
	svc := NewStandingsService(&historyStub{}, scoring.Standard())
	h := NewGetLeaderboardHandler(svc, nil)

	res, err := h.Handle(context.Background(), GetLeaderboardQuery{Window: "year"})
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
}

func TestStandingsService_UsesCache(t *testing.T) {
	store := fixture()
	cache := &mapCache{entries: map[leaderboard.CacheKey]leaderboard.CachedStandings{}}
	obs := &countingObserver{}
	clock := timeutil.NewFixedClock(now)
	svc := NewStandingsService(store, scoring.Standard(), WithCache(cache), WithClock(clock), WithObserver(obs))

	first, err := svc.Compute(context.Background(), leaderboard.Filter{Game: "Uno"})
	require.NoError(t, err)
	second, err := svc.Compute(context.Background(), leaderboard.Filter{Game: "UNO"})
	require.NoError(t, err)

	assert.False(t, first.FromCache)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Standings, second.Standings)
	assert.Equal(t, first.MatchesCounted, second.MatchesCounted)
	assert.Equal(t, 1, store.loads)
	assert.Equal(t, 1, obs.aggregations)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)

	clock.Advance(2 * DefaultCacheBucket)
	_, err = svc.Compute(context.Background(), leaderboard.Filter{Game: "Uno"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.loads, "a new time bucket recomputes")
}

func TestGetPlayerStanding(t *testing.T) {
	svc := NewStandingsService(fixture(), scoring.Standard(), WithClock(timeutil.NewFixedClock(now)))
	h := NewGetPlayerStandingHandler(svc, nil)

	res, err := h.Handle(context.Background(), GetPlayerStandingQuery{PlayerID: "3", Window: "all"})
	require.NoError(t, err)
	// all: 1:+3+1+0=4, 2:+1+3+1=5, 3:-1-1+3=1, 4:-1
	assert.Equal(t, 3, res.Entry.Rank)
	assert.Equal(t, 1, res.Entry.Points)
	assert.Equal(t, 3, res.PointsToNext)
	assert.Equal(t, 4, res.TotalPlayers)

	_, err = h.Handle(context.Background(), GetPlayerStandingQuery{PlayerID: "99"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), GetPlayerStandingQuery{PlayerID: " "})
	assert.ErrorIs(t, err, shared.ErrInvalidPlayerID)
}

func TestListMatches(t *testing.T) {
	h := NewListMatchesHandler(fixture(), leaderboard.StaticResolver{"3": "Carla"})

	res, err := h.Handle(context.Background(), ListMatchesQuery{Game: "uno"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, "bad", res.Matches[0].ID)
	assert.Equal(t, "m3", res.Matches[1].ID)
	assert.Equal(t, "Carla", res.Matches[1].Participants[0].DisplayName)
	assert.Equal(t, 1, res.Matches[1].Participants[0].Position)

	res, err = h.Handle(context.Background(), ListMatchesQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)
	assert.Equal(t, 4, res.Total)

	m, err := h.GetMatch(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, "Catan", m.Game)

	_, err = h.GetMatch(context.Background(), "nope")
	assert.True(t, shared.IsNotFound(err))
}
