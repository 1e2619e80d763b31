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
// DELETE MATCH COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// DeleteMatchCommand удаляет одну партию из истории.
type DeleteMatchCommand struct {
	MatchID       string
	DeletedBy     string
	CorrelationID string
}

// Validate проверяет команду.
func (c DeleteMatchCommand) Validate() error {
	if strings.TrimSpace(c.MatchID) == "" {
		return shared.ErrInvalidID
	}
	return nil
}

// DeleteMatchHandler обрабатывает DeleteMatchCommand.
type DeleteMatchHandler struct {
	store     match.HistoryStore
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewDeleteMatchHandler создаёт обработчик.
func NewDeleteMatchHandler(store match.HistoryStore, publisher shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *DeleteMatchHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DeleteMatchHandler{
		store:     store,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("delete_match")),
	}
}

// Handle удаляет партию и возвращает её последнее состояние.
func (h *DeleteMatchHandler) Handle(ctx context.Context, cmd DeleteMatchCommand) (*match.Snapshot, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("delete_match: validation failed: %w", err)
	}

	record, err := h.store.Get(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("delete_match: %w", err)
	}

	if err := h.store.Delete(ctx, record.ID()); err != nil {
		return nil, fmt.Errorf("delete_match: failed to delete match: %w", err)
	}

	h.log.Info("match deleted",
		logger.MatchID(record.ID()),
		logger.String("deleted_by", cmd.DeletedBy),
	)

	publish(h.publisher, h.log, withCorrelation(
		shared.NewMatchDeletedEvent(record.ID(), string(record.Game()), h.clock.Now()),
		cmd.CorrelationID,
	))

	snapshot := record.Snapshot()
	return &snapshot, nil
}
