// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

const (
	// DefaultLimit - размер таблицы по умолчанию.
	DefaultLimit = 10

	// MaxLimit - верхняя граница размера таблицы.
	MaxLimit = 100

	// DefaultCacheBucket - шаг округления "сейчас" для ключа кеша.
	DefaultCacheBucket = time.Minute
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Таблица игроков за период, опционально по одной игре.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса таблицы.
type GetLeaderboardQuery struct {
	// Window - all, week, month, year (принимаются и португальские названия).
	Window string

	// Game - фильтр по игре (пустая строка = все игры).
	Game string

	// Limit - количество записей (по умолчанию 10, максимум 100).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("query", "GetLeaderboard", shared.ErrValueOutOfRange, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return nil
}

// LeaderboardEntryDTO - строка таблицы.
type LeaderboardEntryDTO struct {
	// Rank - позиция в таблице (начиная с 1).
	Rank int `json:"rank"`

	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`

	Points        int     `json:"points"`
	MatchesPlayed int     `json:"matches_played"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	AveragePoints float64 `json:"average_points"`
}

// GetLeaderboardResult содержит результат запроса таблицы.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	Window string `json:"window"`
	Game   string `json:"game,omitempty"`
	Rule   string `json:"rule"`

	// TotalPlayers - число игроков в полной таблице до усечения.
	TotalPlayers int `json:"total_players"`

	// MatchesCounted - партии, попавшие в период.
	MatchesCounted int `json:"matches_counted"`

	// SkippedRecords - некорректные записи истории, пропущенные при расчёте.
	SkippedRecords int `json:"skipped_records"`

	// FromCache - таблица взята из кеша.
	FromCache bool `json:"from_cache"`

	GeneratedAt time.Time `json:"generated_at"`
}

// IsEmpty - нет партий за период.
func (r *GetLeaderboardResult) IsEmpty() bool {
	return len(r.Entries) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardHandler обрабатывает запросы таблицы.
type GetLeaderboardHandler struct {
	standings *StandingsService
	resolver  leaderboard.Resolver
}

// NewGetLeaderboardHandler создаёт обработчик.
func NewGetLeaderboardHandler(standings *StandingsService, resolver leaderboard.Resolver) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{standings: standings, resolver: resolver}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	window, err := leaderboard.ParseTimeWindow(q.Window)
	if err != nil {
		return nil, err
	}

	computed, err := h.standings.Compute(ctx, leaderboard.Filter{Window: window, Game: q.Game})
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	top := computed.Standings.Top(q.Limit)
	entries := make([]LeaderboardEntryDTO, len(top))
	for i, st := range top {
		entries[i] = toEntryDTO(ctx, h.resolver, st, leaderboard.Rank(i+1))
	}

	return &GetLeaderboardResult{
		Entries:        entries,
		Window:         window.String(),
		Game:           q.Game,
		Rule:           h.standings.RuleName(),
		TotalPlayers:   len(computed.Standings),
		MatchesCounted: computed.MatchesCounted,
		SkippedRecords: computed.Skipped,
		FromCache:      computed.FromCache,
		GeneratedAt:    computed.At,
	}, nil
}

func toEntryDTO(ctx context.Context, r leaderboard.Resolver, st leaderboard.PlayerStanding, rank leaderboard.Rank) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:          int(rank),
		PlayerID:      string(st.Player),
		DisplayName:   leaderboard.ResolveOrID(ctx, r, st.Player),
		Points:        st.TotalPoints,
		MatchesPlayed: st.MatchesPlayed,
		Wins:          st.Wins,
		Losses:        st.Losses,
		AveragePoints: st.AveragePoints(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS SERVICE
// Общая часть запросов: загрузка истории, кеш, агрегация, метрики.
// ══════════════════════════════════════════════════════════════════════════════

// Observer получает метрики расчёта таблиц. Реализация - Prometheus.
type Observer interface {
	ObserveAggregation(window string, elapsed time.Duration, counted, skipped int)
	ObserveCache(hit bool)
}

// ComputedStandings - таблица вместе с диагностикой расчёта.
type ComputedStandings struct {
	Standings      leaderboard.Standings
	MatchesCounted int
	Skipped        int
	FromCache      bool
	At             time.Time
}

// StandingsService считает таблицы поверх HistoryStore с необязательным кешем.
type StandingsService struct {
	store    match.HistoryStore
	rule     scoring.Rule
	cache    leaderboard.StandingsCache
	clock    timeutil.Clock
	observer Observer
	bucket   time.Duration
	log      *logger.Logger
}

// StandingsOption настраивает StandingsService.
type StandingsOption func(*StandingsService)

// WithCache включает кеш таблиц.
func WithCache(cache leaderboard.StandingsCache) StandingsOption {
	return func(s *StandingsService) { s.cache = cache }
}

// WithClock подменяет источник времени.
func WithClock(clock timeutil.Clock) StandingsOption {
	return func(s *StandingsService) { s.clock = clock }
}

// WithObserver подключает метрики.
func WithObserver(o Observer) StandingsOption {
	return func(s *StandingsService) { s.observer = o }
}

// WithCacheBucket задаёт шаг округления времени в ключе кеша.
func WithCacheBucket(d time.Duration) StandingsOption {
	return func(s *StandingsService) { s.bucket = d }
}

// WithLogger задаёт логгер.
func WithLogger(l *logger.Logger) StandingsOption {
	return func(s *StandingsService) { s.log = l }
}

// NewStandingsService создаёт сервис.
func NewStandingsService(store match.HistoryStore, rule scoring.Rule, opts ...StandingsOption) *StandingsService {
	s := &StandingsService{
		store:  store,
		rule:   rule,
		clock:  timeutil.SystemClock{},
		bucket: DefaultCacheBucket,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("standings"))
	return s
}

// RuleName возвращает имя действующего правила.
func (s *StandingsService) RuleName() string {
	return s.rule.Name()
}

// Compute строит таблицу для фильтра. Ошибки кеша не прерывают расчёт.
func (s *StandingsService) Compute(ctx context.Context, filter leaderboard.Filter) (*ComputedStandings, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := leaderboard.CacheKey{
		Window: filter.Window,
		Game:   shared.GameTitle(filter.Game).Key(),
		Bucket: timeutil.Bucket(now, s.bucket),
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("standings cache read failed", logger.Err(err))
		}
		s.observeCache(found)
		if found {
			return &ComputedStandings{
				Standings:      cached.Standings,
				MatchesCounted: cached.MatchesCounted,
				Skipped:        cached.Skipped,
				FromCache:      true,
				At:             now,
			}, nil
		}
	}

	history, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	started := time.Now()
	result, err := leaderboard.ComputeStandings(history, filter, now, s.rule)
	if err != nil {
		return nil, err
	}

	for _, skipped := range result.Skipped {
		s.log.Warn("malformed match record skipped",
			logger.Int("index", skipped.Index),
			logger.MatchID(skipped.MatchID),
			logger.Err(skipped.Err),
		)
	}
	if s.observer != nil {
		s.observer.ObserveAggregation(filter.Window.String(), time.Since(started), result.MatchesCounted, len(result.Skipped))
	}

	if s.cache != nil {
		entry := leaderboard.CachedStandings{
			Standings:      result.Standings,
			MatchesCounted: result.MatchesCounted,
			Skipped:        len(result.Skipped),
		}
		if err := s.cache.Set(ctx, key, entry); err != nil {
			s.log.Warn("standings cache write failed", logger.Err(err))
		}
	}

	return &ComputedStandings{
		Standings:      result.Standings,
		MatchesCounted: result.MatchesCounted,
		Skipped:        len(result.Skipped),
		At:             now,
	}, nil
}

func (s *StandingsService) observeCache(hit bool) {
	if s.observer != nil {
		s.observer.ObserveCache(hit)
	}
}
