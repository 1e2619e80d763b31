package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
)

// StandingsCache implements leaderboard.StandingsCache on top of Cache.
// Keys look like "standings:week:uno:1718474400".
type StandingsCache struct {
	cache *Cache
	ttl   time.Duration
}

var _ leaderboard.StandingsCache = (*StandingsCache)(nil)

// NewStandingsCache creates a standings cache. Non-positive ttl falls back
// to TTLStandings.
func NewStandingsCache(cache *Cache, ttl time.Duration) *StandingsCache {
	if ttl <= 0 {
		ttl = TTLStandings
	}
	return &StandingsCache{cache: cache, ttl: ttl}
}

// StandingsKey builds the Redis key for a cached table.
func StandingsKey(key leaderboard.CacheKey) string {
	game := strings.ToLower(strings.TrimSpace(key.Game))
	if game == "" {
		game = "*all*"
	}
	var b strings.Builder
	b.WriteString(PrefixStandings)
	b.WriteString(strings.ToLower(string(key.Window)))
	b.WriteByte(':')
	b.WriteString(game)
	b.WriteByte(':')
	b.WriteString(formatBucket(key.Bucket))
	return b.String()
}

func formatBucket(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return t.UTC().Format("20060102T150405")
}

// Get implements leaderboard.StandingsCache.
func (s *StandingsCache) Get(ctx context.Context, key leaderboard.CacheKey) (leaderboard.CachedStandings, bool, error) {
	var entry leaderboard.CachedStandings
	if s == nil || s.cache == nil {
		return entry, false, nil
	}

	err := s.cache.GetJSON(ctx, StandingsKey(key), &entry)
	switch {
	case errors.Is(err, ErrCacheMiss):
		return entry, false, nil
	case err != nil:
		return entry, false, err
	}
	if entry.Standings == nil {
		entry.Standings = leaderboard.Standings{}
	}
	return entry, true, nil
}

// Set implements leaderboard.StandingsCache.
func (s *StandingsCache) Set(ctx context.Context, key leaderboard.CacheKey, entry leaderboard.CachedStandings) error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.SetJSON(ctx, StandingsKey(key), entry, s.ttl)
}

// InvalidateAll implements leaderboard.StandingsCache.
func (s *StandingsCache) InvalidateAll(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}
	_, err := s.cache.DeleteByPattern(ctx, PrefixStandings+"*")
	return err
}
