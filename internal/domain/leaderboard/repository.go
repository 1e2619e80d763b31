package leaderboard

import (
	"context"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolver переводит идентификатор игрока в отображаемое имя.
// Находится вне ядра: таблица считается по непрозрачным идентификаторам
// и не зависит от того, удалось ли найти имя.
type Resolver interface {
	// DisplayName возвращает имя или ошибку shared.ErrPlayerNotFound.
	DisplayName(ctx context.Context, id shared.PlayerID) (string, error)
}

// ResolverFunc адаптирует функцию к интерфейсу Resolver.
type ResolverFunc func(ctx context.Context, id shared.PlayerID) (string, error)

// DisplayName implements Resolver.
func (f ResolverFunc) DisplayName(ctx context.Context, id shared.PlayerID) (string, error) {
	return f(ctx, id)
}

// StaticResolver - резолвер по фиксированному словарю.
type StaticResolver map[shared.PlayerID]string

// DisplayName implements Resolver.
func (r StaticResolver) DisplayName(_ context.Context, id shared.PlayerID) (string, error) {
	if name, ok := r[id]; ok && name != "" {
		return name, nil
	}
	return "", shared.ErrPlayerNotFound
}

// ResolveOrID возвращает имя игрока, а при любой ошибке - сам идентификатор.
func ResolveOrID(ctx context.Context, r Resolver, id shared.PlayerID) string {
	if r == nil {
		return string(id)
	}
	name, err := r.DisplayName(ctx, id)
	if err != nil || name == "" {
		return string(id)
	}
	return name
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CacheKey определяет закешированную таблицу.
type CacheKey struct {
	Window TimeWindow
	Game   string
	// Bucket - округлённое "сейчас": окно WEEK сдвигается со временем,
	// поэтому таблица кешируется только в пределах одного интервала.
	Bucket time.Time
}

// CachedStandings - готовая таблица вместе со счётчиками расчёта.
type CachedStandings struct {
	Standings      Standings `json:"standings"`
	MatchesCounted int       `json:"matches_counted"`
	Skipped        int       `json:"skipped"`
}

// StandingsCache - кеш готовых таблиц. Реализация в infrastructure (Redis).
// Кеш не является источником истины: промах всегда допустим.
type StandingsCache interface {
	// Get возвращает таблицу или found=false при промахе.
	Get(ctx context.Context, key CacheKey) (CachedStandings, bool, error)

	// Set сохраняет таблицу.
	Set(ctx context.Context, key CacheKey, entry CachedStandings) error

	// InvalidateAll удаляет все таблицы после изменения истории.
	InvalidateAll(ctx context.Context) error
}
