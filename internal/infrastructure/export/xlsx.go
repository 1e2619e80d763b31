// Package export renders standings and match history into spreadsheets.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tabletop-league/ranking-bot/internal/application/query"
)

// ErrNoSheets is returned when there is nothing to write.
var ErrNoSheets = errors.New("export: no sheets")

// StandingsSheet is one table, usually one time window.
type StandingsSheet struct {
	Name    string
	Entries []query.LeaderboardEntryDTO
}

// Workbook collects sheets before writing them out.
type Workbook struct {
	Standings []StandingsSheet
	Matches   []query.MatchDTO
}

var (
	standingsHeader = []any{"Posição", "Jogador", "ID", "Pontos", "Partidas", "Vitórias", "Últimos", "Média"}
	matchesHeader   = []any{"ID", "Jogo", "Duração", "Data", "Registrado por", "Participantes"}
)

// MatchesSheetName is the name of the history sheet.
const MatchesSheetName = "Partidas"

// WriteXLSX writes wb as an .xlsx document. Standings sheets come first
// in the given order; the history sheet is added when Matches is non-empty.
func WriteXLSX(w io.Writer, wb Workbook) error {
	if len(wb.Standings) == 0 && len(wb.Matches) == 0 {
		return ErrNoSheets
	}

	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	used := make(map[string]bool)
	first := true

	addSheet := func(name string) (string, error) {
		name = uniqueName(SheetName(name), used)
		if first {
			first = false
			return name, f.SetSheetName(defaultSheet, name)
		}
		_, err := f.NewSheet(name)
		return name, err
	}

	for _, s := range wb.Standings {
		name, err := addSheet(s.Name)
		if err != nil {
			return fmt.Errorf("add sheet %q: %w", s.Name, err)
		}
		if err := writeStandings(f, name, s.Entries); err != nil {
			return err
		}
	}

	if len(wb.Matches) > 0 {
		name, err := addSheet(MatchesSheetName)
		if err != nil {
			return fmt.Errorf("add sheet %q: %w", MatchesSheetName, err)
		}
		if err := writeMatches(f, name, wb.Matches); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeStandings(f *excelize.File, sheet string, entries []query.LeaderboardEntryDTO) error {
	rows := make([][]any, 0, len(entries)+1)
	rows = append(rows, standingsHeader)
	for _, e := range entries {
		rows = append(rows, []any{
			e.Rank, e.DisplayName, e.PlayerID, e.Points,
			e.MatchesPlayed, e.Wins, e.Losses, e.AveragePoints,
		})
	}
	return writeRows(f, sheet, rows)
}

func writeMatches(f *excelize.File, sheet string, matches []query.MatchDTO) error {
	rows := make([][]any, 0, len(matches)+1)
	rows = append(rows, matchesHeader)
	for _, m := range matches {
		names := make([]string, len(m.Participants))
		for i, p := range m.Participants {
			names[i] = fmt.Sprintf("%d. %s", p.Position, p.DisplayName)
		}
		rows = append(rows, []any{m.ID, m.Game, m.Duration, m.PlayedAt, m.RecordedBy, strings.Join(names, ", ")})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %q: %w", i+1, sheet, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// SheetName makes s a valid sheet name: forbidden characters are replaced
// and the result is cut to 31 runes.
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	s = strings.Trim(s, "'")
	if s == "" {
		s = "Ranking"
	}
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		r := []rune(name)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
