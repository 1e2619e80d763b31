package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET HISTORY COMMAND
// Сброс истории: целиком или только по одной игре (новый сезон).
// ══════════════════════════════════════════════════════════════════════════════

// ResetHistoryCommand - параметры сброса.
type ResetHistoryCommand struct {
	// Game - если задана, удаляются только партии этой игры.
	Game string

	// Confirm должен быть true: защита от случайного полного сброса.
	Confirm bool

	RequestedBy   string
	CorrelationID string
}

// Validate проверяет команду.
func (c ResetHistoryCommand) Validate() error {
	if !c.Confirm {
		return shared.NewDomainError("command", "ResetHistory", shared.ErrValidation, "reset must be confirmed")
	}
	return nil
}

// ResetHistoryResult содержит число удалённых партий.
type ResetHistoryResult struct {
	Game    string `json:"game,omitempty"`
	Removed int    `json:"removed"`
}

// ResetHistoryHandler обрабатывает ResetHistoryCommand.
type ResetHistoryHandler struct {
	store     match.HistoryStore
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewResetHistoryHandler создаёт обработчик.
func NewResetHistoryHandler(store match.HistoryStore, publisher shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *ResetHistoryHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ResetHistoryHandler{
		store:     store,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("reset_history")),
	}
}

// Handle выполняет сброс.
func (h *ResetHistoryHandler) Handle(ctx context.Context, cmd ResetHistoryCommand) (*ResetHistoryResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reset_history: validation failed: %w", err)
	}

	game := strings.TrimSpace(cmd.Game)
	removed, err := h.store.Reset(ctx, game)
	if err != nil {
		return nil, fmt.Errorf("reset_history: %w", err)
	}

	h.log.Warn("history reset",
		logger.Game(game),
		logger.Int("removed", removed),
		logger.String("requested_by", cmd.RequestedBy),
	)

	publish(h.publisher, h.log, withCorrelation(
		shared.NewHistoryResetEvent(game, removed, h.clock.Now()),
		cmd.CorrelationID,
	))

	return &ResetHistoryResult{Game: game, Removed: removed}, nil
}
