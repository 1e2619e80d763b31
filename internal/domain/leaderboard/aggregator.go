package leaderboard

import (
	"slices"
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FILTER
// ══════════════════════════════════════════════════════════════════════════════

// Filter - параметры выборки таблицы.
type Filter struct {
	// Window - окно времени, по умолчанию WindowAll.
	Window TimeWindow
	// Game - необязательное название игры, сравнивается без учёта регистра.
	Game string
}

// Normalize проверяет фильтр и подставляет значения по умолчанию.
func (f Filter) Normalize() (Filter, error) {
	if f.Window == "" {
		f.Window = WindowAll
	}
	if !f.Window.IsValid() {
		return f, shared.WrapError("leaderboard", "Filter", shared.ErrInvalidInput,
			"unknown time window "+string(f.Window), shared.ErrInvalidTimeWindow)
	}
	f.Game = strings.TrimSpace(f.Game)
	return f, nil
}

// Matches проверяет, попадает ли запись в фильтр.
func (f Filter) Matches(r *match.MatchRecord, now time.Time) bool {
	if !f.Window.Contains(r.Timestamp(), now) {
		return false
	}
	if f.Game != "" && !r.Game().Equal(shared.GameTitle(f.Game)) {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// SkippedRecord - диагностика по пропущенной некорректной записи.
type SkippedRecord struct {
	Index   int
	MatchID string
	Err     error
}

// Result - результат агрегации.
type Result struct {
	Standings Standings
	// Skipped - некорректные записи, пропущенные без прерывания агрегации.
	Skipped []SkippedRecord
	// MatchesCounted - число партий, прошедших фильтр и учтённых в таблице.
	MatchesCounted int
}

// IsEmpty - нет данных за период. Это не ошибка.
func (r Result) IsEmpty() bool {
	return len(r.Standings) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATION
// ══════════════════════════════════════════════════════════════════════════════

// ComputeStandings строит таблицу по истории партий.
//
// Алгоритм: фильтрация по окну и игре, начисление очков по правилу для каждого
// участника каждой партии, сортировка по очкам по убыванию (стабильная,
// при равенстве - порядок первого появления). now передаётся вызывающей
// стороной, функция не читает системное время.
//
// Некорректные записи пропускаются и попадают в Result.Skipped.
// Ошибка возвращается только для некорректного фильтра или nil-правила.
func ComputeStandings(history []*match.MatchRecord, filter Filter, now time.Time, rule scoring.Rule) (Result, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return Result{}, err
	}
	if rule == nil {
		return Result{}, shared.NewDomainError("leaderboard", "ComputeStandings", shared.ErrInvalidInput, "scoring rule is required")
	}

	var (
		result Result
		index  = make(map[shared.PlayerID]int)
		order  []PlayerStanding
	)

	for i, record := range history {
		if err := record.Validate(); err != nil {
			result.Skipped = append(result.Skipped, skipped(i, record, err))
			continue
		}
		if !filter.Matches(record, now) {
			continue
		}

		// Очки считаются до изменения итогов, чтобы ошибка правила
		// не оставила партию учтённой наполовину.
		n := record.FieldSize()
		deltas, err := scoring.Deltas(rule, n)
		if err != nil {
			result.Skipped = append(result.Skipped, skipped(i, record, err))
			continue
		}

		for pos := 0; pos < n; pos++ {
			player := record.ParticipantAt(pos)
			idx, ok := index[player]
			if !ok {
				idx = len(order)
				index[player] = idx
				order = append(order, PlayerStanding{Player: player})
			}

			st := &order[idx]
			st.TotalPoints += deltas[pos]
			st.MatchesPlayed++
			if pos == 0 {
				st.Wins++
			}
			if pos == n-1 {
				st.Losses++
			}
		}
		result.MatchesCounted++
	}

	slices.SortStableFunc(order, func(a, b PlayerStanding) int {
		return b.TotalPoints - a.TotalPoints
	})

	result.Standings = Standings(order)
	if result.Standings == nil {
		result.Standings = Standings{}
	}
	return result, nil
}

func skipped(i int, record *match.MatchRecord, err error) SkippedRecord {
	s := SkippedRecord{Index: i, Err: err}
	if record != nil {
		s.MatchID = record.ID()
	}
	return s
}
