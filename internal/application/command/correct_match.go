package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CORRECT MATCH COMMAND
// Исправление ошибочно зарегистрированной партии: старая запись удаляется,
// новая вставляется с новым идентификатором и исходным временем.
// ══════════════════════════════════════════════════════════════════════════════

// CorrectMatchCommand содержит идентификатор и исправленные данные.
type CorrectMatchCommand struct {
	MatchID       string
	Game          string
	Duration      string
	Participants  []string
	Mentions      string
	CorrectedBy   string
	CorrelationID string
}

// Validate проверяет команду.
func (c CorrectMatchCommand) Validate() error {
	if strings.TrimSpace(c.MatchID) == "" {
		return shared.ErrInvalidID
	}
	return c.registration().Validate()
}

func (c CorrectMatchCommand) registration() RegisterMatchCommand {
	return RegisterMatchCommand{
		Game:         c.Game,
		Duration:     c.Duration,
		Participants: c.Participants,
		Mentions:     c.Mentions,
		RecordedBy:   c.CorrectedBy,
	}
}

// CorrectMatchResult содержит новую запись и идентификатор заменённой.
type CorrectMatchResult struct {
	PreviousID string             `json:"previous_id"`
	Match      match.Snapshot     `json:"match"`
	Deltas     []ParticipantDelta `json:"deltas"`
}

// CorrectMatchHandler обрабатывает CorrectMatchCommand.
type CorrectMatchHandler struct {
	store     match.HistoryStore
	publisher shared.EventPublisher
	rule      scoring.Rule
	policy    match.RegistrationPolicy
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewCorrectMatchHandler создаёт обработчик.
func NewCorrectMatchHandler(
	store match.HistoryStore,
	publisher shared.EventPublisher,
	rule scoring.Rule,
	policy match.RegistrationPolicy,
	clock timeutil.Clock,
	log *logger.Logger,
) *CorrectMatchHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CorrectMatchHandler{
		store:     store,
		publisher: publisher,
		rule:      rule,
		policy:    policy,
		clock:     clock,
		log:       log.With(logger.Component("correct_match")),
	}
}

// Handle заменяет партию.
func (h *CorrectMatchHandler) Handle(ctx context.Context, cmd CorrectMatchCommand) (*CorrectMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("correct_match: validation failed: %w", err)
	}

	original, err := h.store.Get(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("correct_match: %w", err)
	}

	replacement, err := original.Replace(match.NewMatchInput{
		Game:         cmd.Game,
		Duration:     cmd.Duration,
		Participants: cmd.registration().participantIDs(),
		RecordedBy:   cmd.CorrectedBy,
	}, h.policy)
	if err != nil {
		return nil, fmt.Errorf("correct_match: %w", err)
	}

	deltas, err := participantDeltas(h.rule, replacement)
	if err != nil {
		return nil, fmt.Errorf("correct_match: scoring failed: %w", err)
	}

	if err := h.store.Replace(ctx, original.ID(), replacement); err != nil {
		return nil, fmt.Errorf("correct_match: failed to replace match: %w", err)
	}

	h.log.Info("match corrected",
		logger.MatchID(replacement.ID()),
		logger.String("previous_id", original.ID()),
		logger.Game(string(replacement.Game())),
	)

	publish(h.publisher, h.log, withCorrelation(shared.NewMatchCorrectedEvent(
		replacement.ID(), original.ID(), string(replacement.Game()), h.clock.Now(),
	), cmd.CorrelationID))

	return &CorrectMatchResult{
		PreviousID: original.ID(),
		Match:      replacement.Snapshot(),
		Deltas:     deltas,
	}, nil
}
