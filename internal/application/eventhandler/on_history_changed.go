// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на изменения истории и запускают побочные
// эффекты: сброс кешей, журналирование.
package eventhandler

import (
	"context"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON HISTORY CHANGED HANDLER
// Любое изменение истории делает закешированные таблицы устаревшими.
// ═══════════════════════════════════════════════════════════════════════════

// HistoryEvents - события, после которых кеш таблиц сбрасывается.
var HistoryEvents = []shared.EventType{
	shared.EventMatchRegistered,
	shared.EventMatchCorrected,
	shared.EventMatchDeleted,
	shared.EventHistoryReset,
}

// OnHistoryChangedHandler сбрасывает кеш таблиц.
type OnHistoryChangedHandler struct {
	cache   leaderboard.StandingsCache
	timeout time.Duration
	logger  *logger.Logger
}

// NewOnHistoryChangedHandler создаёт обработчик.
func NewOnHistoryChangedHandler(cache leaderboard.StandingsCache, log *logger.Logger) *OnHistoryChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnHistoryChangedHandler{
		cache:   cache,
		timeout: 5 * time.Second,
		logger:  log.With(logger.String("handler", "on_history_changed")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnHistoryChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateAll(ctx); err != nil {
		h.logger.Error("failed to invalidate standings cache",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("standings cache invalidated",
		logger.String("event_type", string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
	)
	return nil
}

// Register подписывает обработчик на все события изменения истории.
func (h *OnHistoryChangedHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range HistoryEvents {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
