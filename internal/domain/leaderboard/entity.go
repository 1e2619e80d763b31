// Package leaderboard содержит ядро ранжирования: окна времени, агрегацию
// результатов партий в позиции игроков и порты для кеша и имён игроков.
//
// Ядро не хранит состояния: история партий передаётся в каждый вызов,
// позиции пересчитываются с нуля.
package leaderboard

import (
	"fmt"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию игрока в таблице.
// Rank начинается с 1 (первое место).
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop возвращает true, если игрок в топ-N.
func (r Rank) IsTop(n int) bool {
	return r >= 1 && int(r) <= n
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER STANDING
// ══════════════════════════════════════════════════════════════════════════════

// PlayerStanding - агрегированная статистика игрока в рамках одного запроса.
// Значение производное и эфемерное, пересчитывается при каждом запросе.
type PlayerStanding struct {
	Player        shared.PlayerID `json:"player"`
	TotalPoints   int             `json:"total_points"`
	MatchesPlayed int             `json:"matches_played"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
}

// AveragePoints возвращает TotalPoints / MatchesPlayed.
// Для MatchesPlayed == 0 возвращает 0 (такие позиции не выдаются).
func (s PlayerStanding) AveragePoints() float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return float64(s.TotalPoints) / float64(s.MatchesPlayed)
}

// String возвращает краткое описание для логов.
func (s PlayerStanding) String() string {
	return fmt.Sprintf("%s: %d pts in %d matches (%dW/%dL)",
		s.Player, s.TotalPoints, s.MatchesPlayed, s.Wins, s.Losses)
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS
// ══════════════════════════════════════════════════════════════════════════════

// Standings - отсортированная таблица: очки по убыванию, при равенстве -
// порядок первого появления игрока в отфильтрованной истории.
type Standings []PlayerStanding

// Top возвращает первые n позиций. n <= 0 возвращает всю таблицу.
// Обрезка - забота слоя представления, ядро отдаёт всё.
func (s Standings) Top(n int) Standings {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[:n]
}

// Find возвращает позицию игрока и его ранг.
func (s Standings) Find(player shared.PlayerID) (PlayerStanding, Rank, bool) {
	for i, st := range s {
		if st.Player == player {
			return st, Rank(i + 1), true
		}
	}
	return PlayerStanding{}, 0, false
}

// Players возвращает идентификаторы в порядке таблицы.
func (s Standings) Players() []shared.PlayerID {
	out := make([]shared.PlayerID, len(s))
	for i, st := range s {
		out[i] = st.Player
	}
	return out
}

// TotalMatchesPlayed суммирует участия по всем игрокам.
func (s Standings) TotalMatchesPlayed() int {
	total := 0
	for _, st := range s {
		total += st.MatchesPlayed
	}
	return total
}
