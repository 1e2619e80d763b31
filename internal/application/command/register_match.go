// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER MATCH COMMAND
// Регистрирует завершённую партию: участники перечислены в порядке мест.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterMatchCommand содержит данные новой партии.
type RegisterMatchCommand struct {
	// Game - название игры.
	Game string

	// Duration - произвольная метка длительности ("45min").
	Duration string

	// Participants - идентификаторы в порядке мест (0 = победитель).
	Participants []string

	// Mentions - альтернативный ввод: текст с упоминаниями <@id>.
	// Используется, если Participants пуст.
	Mentions string

	// PlayedAt - время партии (по умолчанию текущее).
	PlayedAt time.Time

	// RecordedBy - кто зарегистрировал партию.
	RecordedBy string

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет команду до обращения к хранилищу.
func (c RegisterMatchCommand) Validate() error {
	if strings.TrimSpace(c.Game) == "" {
		return shared.ErrEmptyGame
	}
	if len(c.Participants) == 0 && strings.TrimSpace(c.Mentions) == "" {
		return shared.ErrTooFewParticipants
	}
	return nil
}

// participantIDs возвращает участников из явного списка или из упоминаний.
func (c RegisterMatchCommand) participantIDs() []shared.PlayerID {
	if len(c.Participants) > 0 {
		ids := make([]shared.PlayerID, len(c.Participants))
		for i, p := range c.Participants {
			ids[i] = shared.PlayerID(strings.TrimSpace(p))
		}
		return ids
	}
	return match.ParseMentions(c.Mentions)
}

// ParticipantDelta - изменение очков участника за партию.
type ParticipantDelta struct {
	Player   shared.PlayerID `json:"player"`
	Position int             `json:"position"`
	Points   int             `json:"points"`
}

// RegisterMatchResult содержит результат регистрации.
type RegisterMatchResult struct {
	Match  match.Snapshot     `json:"match"`
	Deltas []ParticipantDelta `json:"deltas"`
	Rule   string             `json:"rule"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RegisterMatchHandler обрабатывает RegisterMatchCommand.
type RegisterMatchHandler struct {
	store     match.HistoryStore
	publisher shared.EventPublisher
	rule      scoring.Rule
	policy    match.RegistrationPolicy
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewRegisterMatchHandler создаёт обработчик.
func NewRegisterMatchHandler(
	store match.HistoryStore,
	publisher shared.EventPublisher,
	rule scoring.Rule,
	policy match.RegistrationPolicy,
	clock timeutil.Clock,
	log *logger.Logger,
) *RegisterMatchHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RegisterMatchHandler{
		store:     store,
		publisher: publisher,
		rule:      rule,
		policy:    policy,
		clock:     clock,
		log:       log.With(logger.Component("register_match")),
	}
}

// Handle регистрирует партию.
func (h *RegisterMatchHandler) Handle(ctx context.Context, cmd RegisterMatchCommand) (*RegisterMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_match: validation failed: %w", err)
	}

	playedAt := cmd.PlayedAt
	if playedAt.IsZero() {
		playedAt = h.clock.Now().UTC()
	}

	record, err := match.NewMatchRecord(match.NewMatchInput{
		Game:         cmd.Game,
		Duration:     cmd.Duration,
		Participants: cmd.participantIDs(),
		PlayedAt:     playedAt,
		RecordedBy:   cmd.RecordedBy,
	}, h.policy)
	if err != nil {
		return nil, fmt.Errorf("register_match: %w", err)
	}

	// Очки считаются до записи: правило не должно оставить в истории
	// партию, которую невозможно оценить.
	deltas, err := participantDeltas(h.rule, record)
	if err != nil {
		return nil, fmt.Errorf("register_match: scoring failed: %w", err)
	}

	if err := h.store.Append(ctx, record); err != nil {
		if errors.Is(err, shared.ErrDuplicateMatch) {
			h.log.Warn("duplicate match rejected", logger.Game(string(record.Game())))
		}
		return nil, fmt.Errorf("register_match: failed to save match: %w", err)
	}

	h.log.Info("match registered",
		logger.MatchID(record.ID()),
		logger.Game(string(record.Game())),
		logger.Int("participants", record.FieldSize()),
	)

	publish(h.publisher, h.log, withCorrelation(shared.NewMatchRegisteredEvent(
		record.ID(),
		string(record.Game()),
		record.Snapshot().Participants,
		deltaMap(deltas),
		h.clock.Now(),
	), cmd.CorrelationID))

	return &RegisterMatchResult{
		Match:  record.Snapshot(),
		Deltas: deltas,
		Rule:   h.rule.Name(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func participantDeltas(rule scoring.Rule, record *match.MatchRecord) ([]ParticipantDelta, error) {
	points, err := scoring.Deltas(rule, record.FieldSize())
	if err != nil {
		return nil, err
	}
	out := make([]ParticipantDelta, len(points))
	for i, p := range points {
		out[i] = ParticipantDelta{Player: record.ParticipantAt(i), Position: i, Points: p}
	}
	return out, nil
}

func deltaMap(deltas []ParticipantDelta) map[string]int {
	m := make(map[string]int, len(deltas))
	for _, d := range deltas {
		m[string(d.Player)] = d.Points
	}
	return m
}

// withCorrelation проставляет CorrelationID во встроенный BaseEvent.
func withCorrelation(event shared.Event, correlationID string) shared.Event {
	if correlationID == "" {
		return event
	}
	switch e := event.(type) {
	case shared.MatchRegisteredEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.MatchCorrectedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.MatchDeletedEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	case shared.HistoryResetEvent:
		e.BaseEvent = e.BaseEvent.WithCorrelationID(correlationID)
		return e
	}
	return event
}

// publish отправляет событие; ошибка шины не отменяет уже сохранённое изменение.
func publish(publisher shared.EventPublisher, log *logger.Logger, event shared.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(event); err != nil {
		log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
