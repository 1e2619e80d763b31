package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAYER STANDING QUERY
// Позиция одного игрока в таблице за период.
// ══════════════════════════════════════════════════════════════════════════════

// GetPlayerStandingQuery содержит параметры запроса.
type GetPlayerStandingQuery struct {
	PlayerID string
	Window   string
	Game     string
}

// Validate проверяет параметры.
func (q GetPlayerStandingQuery) Validate() error {
	if !shared.PlayerID(strings.TrimSpace(q.PlayerID)).IsValid() {
		return shared.ErrInvalidPlayerID
	}
	return nil
}

// GetPlayerStandingResult - строка игрока и размер таблицы.
type GetPlayerStandingResult struct {
	Entry        LeaderboardEntryDTO `json:"entry"`
	Window       string              `json:"window"`
	Game         string              `json:"game,omitempty"`
	TotalPlayers int                 `json:"total_players"`
	// PointsToNext - отставание от игрока выше (0 для первого места).
	PointsToNext int `json:"points_to_next"`
}

// GetPlayerStandingHandler обрабатывает запрос.
type GetPlayerStandingHandler struct {
	standings *StandingsService
	resolver  leaderboard.Resolver
}

// NewGetPlayerStandingHandler создаёт обработчик.
func NewGetPlayerStandingHandler(standings *StandingsService, resolver leaderboard.Resolver) *GetPlayerStandingHandler {
	return &GetPlayerStandingHandler{standings: standings, resolver: resolver}
}

// Handle возвращает позицию игрока или shared.ErrStandingNotFound,
// если игрок не участвовал в партиях за период.
func (h *GetPlayerStandingHandler) Handle(ctx context.Context, q GetPlayerStandingQuery) (*GetPlayerStandingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	window, err := leaderboard.ParseTimeWindow(q.Window)
	if err != nil {
		return nil, err
	}

	computed, err := h.standings.Compute(ctx, leaderboard.Filter{Window: window, Game: q.Game})
	if err != nil {
		return nil, fmt.Errorf("get_player_standing: %w", err)
	}

	player := shared.PlayerID(strings.TrimSpace(q.PlayerID))
	st, rank, ok := computed.Standings.Find(player)
	if !ok {
		return nil, shared.ErrStandingNotFound
	}

	result := &GetPlayerStandingResult{
		Entry:        toEntryDTO(ctx, h.resolver, st, rank),
		Window:       window.String(),
		Game:         q.Game,
		TotalPlayers: len(computed.Standings),
	}
	if rank > 1 {
		result.PointsToNext = computed.Standings[rank-2].TotalPoints - st.TotalPoints
	}
	return result, nil
}
