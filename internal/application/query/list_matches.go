package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MATCHES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListMatchesQuery - последние партии, опционально по игре.
type ListMatchesQuery struct {
	Game  string
	Limit int
}

// Validate нормализует лимит.
func (q *ListMatchesQuery) Validate() error {
	if q.Limit < 0 {
		return shared.NewDomainError("query", "ListMatches", shared.ErrValueOutOfRange, "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return nil
}

// ParticipantDTO - участник партии с местом.
type ParticipantDTO struct {
	Position    int    `json:"position"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
}

// MatchDTO - партия для отображения.
type MatchDTO struct {
	ID           string           `json:"id"`
	Game         string           `json:"game"`
	Duration     string           `json:"duration,omitempty"`
	PlayedAt     string           `json:"played_at"`
	RecordedBy   string           `json:"recorded_by,omitempty"`
	Participants []ParticipantDTO `json:"participants"`
}

// ListMatchesResult содержит выборку.
type ListMatchesResult struct {
	Matches []MatchDTO `json:"matches"`
	Total   int        `json:"total"`
}

// ListMatchesHandler обрабатывает ListMatchesQuery.
type ListMatchesHandler struct {
	store    match.HistoryStore
	resolver leaderboard.Resolver
}

// NewListMatchesHandler создаёт обработчик.
func NewListMatchesHandler(store match.HistoryStore, resolver leaderboard.Resolver) *ListMatchesHandler {
	return &ListMatchesHandler{store: store, resolver: resolver}
}

// Handle возвращает партии от новых к старым.
func (h *ListMatchesHandler) Handle(ctx context.Context, q ListMatchesQuery) (*ListMatchesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	history, err := h.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list_matches: %w", err)
	}

	all := match.Recent(history, match.ListFilter{Game: strings.TrimSpace(q.Game)})
	page := all
	if len(page) > q.Limit {
		page = page[:q.Limit]
	}

	out := make([]MatchDTO, len(page))
	for i, r := range page {
		out[i] = ToMatchDTO(ctx, h.resolver, r)
	}
	return &ListMatchesResult{Matches: out, Total: len(all)}, nil
}

// GetMatch возвращает одну партию.
func (h *ListMatchesHandler) GetMatch(ctx context.Context, id string) (*MatchDTO, error) {
	r, err := h.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	dto := ToMatchDTO(ctx, h.resolver, r)
	return &dto, nil
}

// ToMatchDTO конвертирует запись в DTO с именами игроков.
func ToMatchDTO(ctx context.Context, resolver leaderboard.Resolver, r *match.MatchRecord) MatchDTO {
	participants := r.Participants()
	ps := make([]ParticipantDTO, len(participants))
	for i, p := range participants {
		ps[i] = ParticipantDTO{
			Position:    i + 1,
			PlayerID:    string(p),
			DisplayName: leaderboard.ResolveOrID(ctx, resolver, p),
		}
	}
	return MatchDTO{
		ID:           r.ID(),
		Game:         r.Game().String(),
		Duration:     r.Duration(),
		PlayedAt:     r.Timestamp().UTC().Format(time.RFC3339),
		RecordedBy:   r.RecordedBy(),
		Participants: ps,
	}
}
