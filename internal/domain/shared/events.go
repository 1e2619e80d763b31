package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	EventMatchRegistered EventType = "match.registered"
	EventMatchCorrected  EventType = "match.corrected"
	EventMatchDeleted    EventType = "match.deleted"
	EventHistoryReset    EventType = "history.reset"

	EventRankingBroadcast EventType = "ranking.broadcast"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Match Events
// ═══════════════════════════════════════════════════════════════════════════

// MatchRegisteredEvent is emitted after a match is appended to history.
type MatchRegisteredEvent struct {
	BaseEvent
	Game         string         `json:"game"`
	Participants []string       `json:"participants"`
	Deltas       map[string]int `json:"deltas"`
}

// Payload implements Event interface.
func (e MatchRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game":         e.Game,
		"participants": e.Participants,
		"deltas":       e.Deltas,
	}
}

// NewMatchRegisteredEvent creates a new MatchRegisteredEvent.
func NewMatchRegisteredEvent(matchID, game string, participants []string, deltas map[string]int, at time.Time) MatchRegisteredEvent {
	return MatchRegisteredEvent{
		BaseEvent:    NewBaseEvent(EventMatchRegistered, matchID, at),
		Game:         game,
		Participants: participants,
		Deltas:       deltas,
	}
}

// MatchCorrectedEvent is emitted when a match was replaced (delete + reinsert).
type MatchCorrectedEvent struct {
	BaseEvent
	PreviousID string `json:"previous_id"`
	Game       string `json:"game"`
}

// Payload implements Event interface.
func (e MatchCorrectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"previous_id": e.PreviousID,
		"game":        e.Game,
	}
}

// NewMatchCorrectedEvent creates a new MatchCorrectedEvent.
func NewMatchCorrectedEvent(newID, previousID, game string, at time.Time) MatchCorrectedEvent {
	return MatchCorrectedEvent{
		BaseEvent:  NewBaseEvent(EventMatchCorrected, newID, at),
		PreviousID: previousID,
		Game:       game,
	}
}

// MatchDeletedEvent is emitted when a match is removed from history.
type MatchDeletedEvent struct {
	BaseEvent
	Game string `json:"game"`
}

// Payload implements Event interface.
func (e MatchDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game": e.Game,
	}
}

// NewMatchDeletedEvent creates a new MatchDeletedEvent.
func NewMatchDeletedEvent(matchID, game string, at time.Time) MatchDeletedEvent {
	return MatchDeletedEvent{
		BaseEvent: NewBaseEvent(EventMatchDeleted, matchID, at),
		Game:      game,
	}
}

// HistoryResetEvent is emitted when history is wiped, fully or for one game.
type HistoryResetEvent struct {
	BaseEvent
	Game    string `json:"game,omitempty"`
	Removed int    `json:"removed"`
}

// Payload implements Event interface.
func (e HistoryResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"game":    e.Game,
		"removed": e.Removed,
	}
}

// NewHistoryResetEvent creates a new HistoryResetEvent.
func NewHistoryResetEvent(game string, removed int, at time.Time) HistoryResetEvent {
	return HistoryResetEvent{
		BaseEvent: NewBaseEvent(EventHistoryReset, "history", at),
		Game:      game,
		Removed:   removed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Ranking Events
// ═══════════════════════════════════════════════════════════════════════════

// RankingBroadcastEvent is emitted after a scheduled ranking was delivered.
type RankingBroadcastEvent struct {
	BaseEvent
	Window  string `json:"window"`
	Game    string `json:"game,omitempty"`
	Entries int    `json:"entries"`
}

// Payload implements Event interface.
func (e RankingBroadcastEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"window":  e.Window,
		"game":    e.Game,
		"entries": e.Entries,
	}
}

// NewRankingBroadcastEvent creates a new RankingBroadcastEvent.
func NewRankingBroadcastEvent(window, game string, entries int, at time.Time) RankingBroadcastEvent {
	return RankingBroadcastEvent{
		BaseEvent: NewBaseEvent(EventRankingBroadcast, window, at),
		Window:    window,
		Game:      game,
		Entries:   entries,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
