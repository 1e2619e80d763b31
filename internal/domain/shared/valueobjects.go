// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// PlayerID - непрозрачный идентификатор игрока (например, Discord snowflake).
// Ядро ранжирования использует его только как ключ агрегации.
type PlayerID string

// IsValid проверяет, что идентификатор не пустой и не содержит пробелов.
func (p PlayerID) IsValid() bool {
	s := string(p)
	return s != "" && !strings.ContainsAny(s, " \t\r\n")
}

// String returns the string representation.
func (p PlayerID) String() string {
	return string(p)
}

// NewPlayerID создаёт PlayerID с валидацией.
func NewPlayerID(id string) (PlayerID, error) {
	p := PlayerID(strings.TrimSpace(id))
	if !p.IsValid() {
		return "", ErrInvalidPlayerID
	}
	return p, nil
}

// PlayerIDs converts a slice of strings without validation.
func PlayerIDs(ids ...string) []PlayerID {
	out := make([]PlayerID, len(ids))
	for i, id := range ids {
		out[i] = PlayerID(id)
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// Game Title
// ═══════════════════════════════════════════════════════════════════════════

// GameTitle - свободное название игры. Два названия, отличающиеся только
// регистром, обозначают одну и ту же игру.
type GameTitle string

// Key возвращает ключ для сравнения без учёта регистра.
func (g GameTitle) Key() string {
	return strings.ToLower(strings.TrimSpace(string(g)))
}

// Equal сравнивает названия без учёта регистра.
func (g GameTitle) Equal(other GameTitle) bool {
	return g.Key() == other.Key()
}

// IsEmpty проверяет, пустое ли название.
func (g GameTitle) IsEmpty() bool {
	return g.Key() == ""
}

// String returns the title as entered.
func (g GameTitle) String() string {
	return string(g)
}
