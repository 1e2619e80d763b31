package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tabletop-league/ranking-bot/internal/application/query"
)

func TestWriteXLSX(t *testing.T) {
	wb := Workbook{
		Standings: []StandingsSheet{
			{Name: "all", Entries: []query.LeaderboardEntryDTO{
				{Rank: 1, PlayerID: "1", DisplayName: "Ana", Points: 6, MatchesPlayed: 2, Wins: 2, AveragePoints: 3},
				{Rank: 2, PlayerID: "2", DisplayName: "Bruno", Points: -1, MatchesPlayed: 1, Losses: 1, AveragePoints: -1},
			}},
			{Name: "week"},
		},
		Matches: []query.MatchDTO{{
			ID:       "m1",
			Game:     "Uno",
			Duration: "30min",
			PlayedAt: "2024-06-16T20:00:00Z",
			Participants: []query.ParticipantDTO{
				{Position: 1, PlayerID: "1", DisplayName: "Ana"},
				{Position: 2, PlayerID: "2", DisplayName: "Bruno"},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, wb))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"all", "week", MatchesSheetName}, f.GetSheetList())

	rows, err := f.GetRows("all")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Posição", rows[0][0])
	assert.Equal(t, []string{"1", "Ana", "1", "6", "2", "2", "0", "3"}, rows[1])
	assert.Equal(t, "-1", rows[2][3])

	rows, err = f.GetRows("week")
	require.NoError(t, err)
	assert.Len(t, rows, 1, "header only")

	rows, err = f.GetRows(MatchesSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1. Ana, 2. Bruno", rows[1][5])
}

func TestWriteXLSX_Empty(t *testing.T) {
	assert.ErrorIs(t, WriteXLSX(&bytes.Buffer{}, Workbook{}), ErrNoSheets)
}

func TestWriteXLSX_DuplicateSheetNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, Workbook{Standings: []StandingsSheet{{Name: "Uno"}, {Name: "uno"}}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Uno", "uno (2)"}, f.GetSheetList())
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Ranking", SheetName("  "))
	assert.Equal(t, "a_b_c", SheetName("a/b?c"))
	assert.Len(t, []rune(SheetName(strings.Repeat("x", 40))), 31)
}
