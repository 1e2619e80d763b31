package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

var playedAt = time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC)

func newClock() *timeutil.FixedClock {
	return timeutil.NewFixedClock(playedAt)
}

func TestRegisterMatch_Success(t *testing.T) {
	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewRegisterMatchHandler(store, pub, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

	store.On("Append", mock.Anything, mock.AnythingOfType("*match.MatchRecord")).Return(nil)
	pub.On("Publish", mock.MatchedBy(func(e shared.Event) bool {
		ev, ok := e.(shared.MatchRegisteredEvent)
		return ok && ev.Game == "Catan" && ev.Deltas["1"] == 3 && ev.Deltas["3"] == -1 && ev.CorrelationID == "req-1"
	})).Return(nil)

	res, err := h.Handle(context.Background(), RegisterMatchCommand{
		Game:          "Catan",
		Duration:      "90min",
		Mentions:      "<@1> <@!2> <@3>",
		RecordedBy:    "host",
		CorrelationID: "req-1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, res.Match.Participants)
	assert.Equal(t, playedAt, res.Match.Timestamp)
	assert.Equal(t, "standard", res.Rule)
	assert.Equal(t, []ParticipantDelta{
		{Player: "1", Position: 0, Points: 3},
		{Player: "2", Position: 1, Points: 1},
		{Player: "3", Position: 2, Points: -1},
	}, res.Deltas)

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestRegisterMatch_PolicyViolations(t *testing.T) {
	cases := []struct {
		name string
		cmd  RegisterMatchCommand
		want error
	}{
		{"empty game", RegisterMatchCommand{Participants: []string{"1", "2", "3"}}, shared.ErrEmptyGame},
		{"no players", RegisterMatchCommand{Game: "Uno"}, shared.ErrTooFewParticipants},
		{"too few", RegisterMatchCommand{Game: "Uno", Participants: []string{"1", "2"}}, shared.ErrTooFewParticipants},
		{"duplicate", RegisterMatchCommand{Game: "Uno", Participants: []string{"1", "2", "1"}}, shared.ErrDuplicateParticipant},
		{"too many", RegisterMatchCommand{Game: "Uno", Participants: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}}, shared.ErrTooManyParticipants},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := new(mockStore)
			h := NewRegisterMatchHandler(store, nil, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

			_, err := h.Handle(context.Background(), tc.cmd)
			assert.ErrorIs(t, err, tc.want)
			store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		})
	}
}

func TestRegisterMatch_DuplicateIsReported(t *testing.T) {
	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewRegisterMatchHandler(store, pub, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

	store.On("Append", mock.Anything, mock.Anything).Return(shared.ErrDuplicateMatch)

	_, err := h.Handle(context.Background(), RegisterMatchCommand{Game: "Uno", Participants: []string{"1", "2", "3"}})
	assert.ErrorIs(t, err, shared.ErrDuplicateMatch)
	pub.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRegisterMatch_PublishFailureDoesNotFail(t *testing.T) {
	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewRegisterMatchHandler(store, pub, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

	store.On("Append", mock.Anything, mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything).Return(errors.New("bus closed"))

	_, err := h.Handle(context.Background(), RegisterMatchCommand{Game: "Uno", Participants: []string{"1", "2", "3"}})
	assert.NoError(t, err)
}

func TestCorrectMatch_KeepsOriginalTimestamp(t *testing.T) {
	original, err := match.NewMatchRecord(match.NewMatchInput{
		Game:         "Uno",
		Participants: shared.PlayerIDs("1", "2", "3"),
		PlayedAt:     playedAt.Add(-48 * time.Hour),
		RecordedBy:   "host",
	}, match.DefaultPolicy())
	require.NoError(t, err)

	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewCorrectMatchHandler(store, pub, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

	store.On("Get", mock.Anything, original.ID()).Return(original, nil)
	store.On("Replace", mock.Anything, original.ID(), mock.MatchedBy(func(r *match.MatchRecord) bool {
		return r.ID() != original.ID() && r.Timestamp().Equal(original.Timestamp())
	})).Return(nil)
	pub.On("Publish", mock.AnythingOfType("shared.MatchCorrectedEvent")).Return(nil)

	res, err := h.Handle(context.Background(), CorrectMatchCommand{
		MatchID:      original.ID(),
		Game:         "Uno",
		Participants: []string{"3", "2", "1"},
	})
	require.NoError(t, err)

	assert.Equal(t, original.ID(), res.PreviousID)
	assert.Equal(t, []string{"3", "2", "1"}, res.Match.Participants)
	assert.Equal(t, "host", res.Match.RecordedBy)
	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestCorrectMatch_NotFound(t *testing.T) {
	store := new(mockStore)
	h := NewCorrectMatchHandler(store, nil, scoring.Standard(), match.DefaultPolicy(), newClock(), nil)

	store.On("Get", mock.Anything, "missing").Return(nil, shared.ErrMatchNotFound)

	_, err := h.Handle(context.Background(), CorrectMatchCommand{MatchID: "missing", Game: "Uno", Participants: []string{"1", "2", "3"}})
	assert.True(t, shared.IsNotFound(err))
	store.AssertNotCalled(t, "Replace", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMatch(t *testing.T) {
	record := match.FromSnapshot(match.Snapshot{ID: "m1", Game: "Uno", Timestamp: playedAt, Participants: []string{"1", "2", "3"}})

	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewDeleteMatchHandler(store, pub, newClock(), nil)

	store.On("Get", mock.Anything, "m1").Return(record, nil)
	store.On("Delete", mock.Anything, "m1").Return(nil)
	pub.On("Publish", mock.AnythingOfType("shared.MatchDeletedEvent")).Return(nil)

	snap, err := h.Handle(context.Background(), DeleteMatchCommand{MatchID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", snap.ID)

	_, err = h.Handle(context.Background(), DeleteMatchCommand{})
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestResetHistory(t *testing.T) {
	store := new(mockStore)
	pub := new(mockPublisher)
	h := NewResetHistoryHandler(store, pub, newClock(), nil)

	_, err := h.Handle(context.Background(), ResetHistoryCommand{Game: "Uno"})
	assert.True(t, shared.IsValidation(err))

	store.On("Reset", mock.Anything, "Uno").Return(4, nil)
	pub.On("Publish", mock.MatchedBy(func(e shared.Event) bool {
		ev, ok := e.(shared.HistoryResetEvent)
		return ok && ev.Removed == 4 && ev.Game == "Uno"
	})).Return(nil)

	res, err := h.Handle(context.Background(), ResetHistoryCommand{Game: " Uno ", Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Removed)

	store.AssertExpectations(t)
	pub.AssertExpectations(t)
}
