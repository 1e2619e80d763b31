package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

var playedAt = time.Date(2024, 5, 4, 20, 30, 0, 0, time.UTC)

func validInput() NewMatchInput {
	return NewMatchInput{
		Game:         "  Catan ",
		Duration:     "1h20",
		Participants: shared.PlayerIDs("111", "222", "333"),
		PlayedAt:     playedAt,
		RecordedBy:   "999",
	}
}

func TestNewMatchRecord(t *testing.T) {
	rec, err := NewMatchRecord(validInput(), DefaultPolicy())
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID())
	assert.Equal(t, shared.GameTitle("Catan"), rec.Game())
	assert.Equal(t, "1h20", rec.Duration())
	assert.Equal(t, playedAt, rec.Timestamp())
	assert.Equal(t, shared.PlayerIDs("111", "222", "333"), rec.Participants())
	assert.Equal(t, 3, rec.FieldSize())
	assert.NoError(t, rec.Validate())
}

func TestNewMatchRecord_PolicyViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*NewMatchInput)
		want   error
	}{
		{"empty game", func(in *NewMatchInput) { in.Game = "   " }, shared.ErrEmptyGame},
		{"too few", func(in *NewMatchInput) { in.Participants = shared.PlayerIDs("1", "2") }, shared.ErrTooFewParticipants},
		{"too many", func(in *NewMatchInput) {
			in.Participants = shared.PlayerIDs("1", "2", "3", "4", "5", "6", "7", "8", "9")
		}, shared.ErrTooManyParticipants},
		{"duplicate", func(in *NewMatchInput) { in.Participants = shared.PlayerIDs("1", "2", "1") }, shared.ErrDuplicateParticipant},
		{"blank id", func(in *NewMatchInput) { in.Participants = shared.PlayerIDs("1", "", "3") }, shared.ErrInvalidPlayerID},
		{"no timestamp", func(in *NewMatchInput) { in.PlayedAt = time.Time{} }, shared.ErrMalformedRecord},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := NewMatchRecord(in, DefaultPolicy())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestParticipantsAreCopied(t *testing.T) {
	in := validInput()
	rec, err := NewMatchRecord(in, DefaultPolicy())
	require.NoError(t, err)

	in.Participants[0] = "mutated"
	got := rec.Participants()
	got[1] = "mutated"

	assert.Equal(t, shared.PlayerIDs("111", "222", "333"), rec.Participants())
}

func TestValidate_Malformed(t *testing.T) {
	empty := FromSnapshot(Snapshot{ID: "a", Game: "Uno", Timestamp: playedAt})
	assert.ErrorIs(t, empty.Validate(), shared.ErrMalformedRecord)

	noTime := FromSnapshot(Snapshot{ID: "b", Game: "Uno", Participants: []string{"1"}})
	assert.ErrorIs(t, noTime.Validate(), shared.ErrMalformedRecord)

	var nilRecord *MatchRecord
	assert.ErrorIs(t, nilRecord.Validate(), shared.ErrMalformedRecord)

	single := FromSnapshot(Snapshot{ID: "c", Game: "Uno", Timestamp: playedAt, Participants: []string{"1"}})
	assert.NoError(t, single.Validate())

	blank := FromSnapshot(Snapshot{ID: "d", Game: "Uno", Timestamp: playedAt, Participants: []string{"1", ""}})
	assert.ErrorIs(t, blank.Validate(), shared.ErrMalformedRecord)

	spaced := FromSnapshot(Snapshot{ID: "e", Game: "Uno", Timestamp: playedAt, Participants: []string{"Ann Lee", "Bob"}})
	assert.NoError(t, spaced.Validate())
}

func TestSnapshotRoundTripPreservesOrder(t *testing.T) {
	rec, err := NewMatchRecord(validInput(), DefaultPolicy())
	require.NoError(t, err)

	restored := FromSnapshot(rec.Snapshot())
	assert.Equal(t, rec.ID(), restored.ID())
	assert.Equal(t, rec.Participants(), restored.Participants())
	assert.Equal(t, rec.ProcessingHash(), restored.ProcessingHash())
}

func TestProcessingHash(t *testing.T) {
	a, err := NewMatchRecord(validInput(), DefaultPolicy())
	require.NoError(t, err)

	in := validInput()
	in.Game = "CATAN"
	in.RecordedBy = "someone else"
	b, err := NewMatchRecord(in, DefaultPolicy())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ProcessingHash(), b.ProcessingHash(), "id, author and title case are not part of the hash")

	in = validInput()
	in.Participants = shared.PlayerIDs("222", "111", "333")
	c, err := NewMatchRecord(in, DefaultPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, a.ProcessingHash(), c.ProcessingHash(), "finishing order is part of the hash")
	assert.Len(t, a.ProcessingHash(), 64)

	in = validInput()
	in.PlayedAt = in.PlayedAt.Add(time.Hour)
	rematch, err := NewMatchRecord(in, DefaultPolicy())
	require.NoError(t, err)
	assert.NotEqual(t, a.ProcessingHash(), rematch.ProcessingHash(), "rematch at another time is not a duplicate")
}

func TestReplaceKeepsTimestamp(t *testing.T) {
	orig, err := NewMatchRecord(validInput(), DefaultPolicy())
	require.NoError(t, err)

	fixed, err := orig.Replace(NewMatchInput{
		Game:         "Catan",
		Duration:     "1h20",
		Participants: shared.PlayerIDs("333", "222", "111"),
	}, DefaultPolicy())
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID(), fixed.ID())
	assert.Equal(t, orig.Timestamp(), fixed.Timestamp())
	assert.Equal(t, "999", fixed.RecordedBy())
}

func TestParseMentions(t *testing.T) {
	got := ParseMentions("<@123> then <@!456>, finally <@789> and @nobody <#42>")
	assert.Equal(t, shared.PlayerIDs("123", "456", "789"), got)
	assert.Empty(t, ParseMentions("no mentions here"))
	assert.Equal(t, "<@123>", FormatMention("123"))
}

func TestRecent(t *testing.T) {
	mk := func(id, game string, at time.Time) *MatchRecord {
		return FromSnapshot(Snapshot{ID: id, Game: game, Timestamp: at, Participants: []string{"1", "2", "3"}})
	}
	records := []*MatchRecord{
		mk("a", "Uno", playedAt),
		mk("b", "Catan", playedAt.Add(time.Hour)),
		mk("c", "uno", playedAt.Add(2*time.Hour)),
		mk("d", "UNO", playedAt.Add(-time.Hour)),
	}

	ids := func(rs []*MatchRecord) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID()
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a", "d"}, ids(Recent(records, ListFilter{})))
	assert.Equal(t, []string{"c", "a", "d"}, ids(Recent(records, ListFilter{Game: "Uno"})))
	assert.Equal(t, []string{"c", "b"}, ids(Recent(records, ListFilter{Limit: 2})))
}
