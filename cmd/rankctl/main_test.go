package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/internal/bootstrap"
	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
)

func TestExportWindows(t *testing.T) {
	all, err := exportWindows(nil)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Windows(), all)

	some, err := exportWindows([]string{"week", "all"})
	require.NoError(t, err)
	assert.Equal(t, []leaderboard.TimeWindow{leaderboard.WindowWeek, leaderboard.WindowAll}, some)

	_, err = exportWindows([]string{"fortnight"})
	assert.Error(t, err)
}

func TestPrintStandings(t *testing.T) {
	var buf bytes.Buffer
	err := printStandings(&buf, &query.GetLeaderboardResult{
		Window:         "week",
		Game:           "Catan",
		Rule:           "standard",
		MatchesCounted: 1,
		Entries: []query.LeaderboardEntryDTO{
			{Rank: 1, PlayerID: "1", DisplayName: "Ana", Points: 3, MatchesPlayed: 1, Wins: 1},
			{Rank: 2, PlayerID: "2", DisplayName: "Bruno", Points: 1, MatchesPlayed: 1},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Ranking (week, Catan) rule=standard matches=1")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "Bruno")
	assert.NotContains(t, out, "skipped")
}

func TestPrintStandings_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStandings(&buf, &query.GetLeaderboardResult{Window: "all", Rule: "standard"}))
	assert.Contains(t, buf.String(), "no matches in this period")
}

func TestRunMigration_JSONStorage(t *testing.T) {
	var buf bytes.Buffer
	err := runMigration(context.Background(), &buf, &bootstrap.Storage{}, "up")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "nothing to migrate")
}
