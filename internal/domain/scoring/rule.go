// Package scoring содержит правило начисления очков за место в партии.
// Правило - чистая функция (позиция, размер поля) -> дельта очков,
// без состояния и без зависимостей.
package scoring

import (
	"fmt"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULE CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Rule переводит место игрока в партии в изменение очков.
// position - место, начиная с нуля (0 = победитель).
// fieldSize - количество участников партии.
type Rule interface {
	Points(position, fieldSize int) (int, error)
	Name() string
}

// RuleFunc адаптирует обычную функцию к интерфейсу Rule.
type RuleFunc func(position, fieldSize int) (int, error)

// Points implements Rule.
func (f RuleFunc) Points(position, fieldSize int) (int, error) {
	return f(position, fieldSize)
}

// Name implements Rule.
func (f RuleFunc) Name() string {
	return "custom"
}

// ══════════════════════════════════════════════════════════════════════════════
// TABLE RULE
// ══════════════════════════════════════════════════════════════════════════════

// Table - значения очков для каждой категории места.
type Table struct {
	Winner   int `yaml:"winner" json:"winner"`
	RunnerUp int `yaml:"runner_up" json:"runner_up"`
	Last     int `yaml:"last" json:"last"`
	Middle   int `yaml:"middle" json:"middle"`
}

// DefaultTable: +3 победителю, +1 второму, -1 последнему, 0 остальным.
var DefaultTable = Table{Winner: 3, RunnerUp: 1, Last: -1, Middle: 0}

// Precedence определяет, какая категория побеждает, когда место
// одновременно попадает в несколько (поле из 1 или 2 игроков).
type Precedence string

const (
	// PrecedenceFirstMatch: победитель -> (для поля <= 2: последний -> второй)
	// -> (иначе: второй -> последний). Применяется первая подходящая ветка.
	PrecedenceFirstMatch Precedence = "first_match"

	// PrecedenceLastWrite повторяет старый бот: массив заполняется
	// победителем, затем вторым, затем последним, и последняя запись
	// перезаписывает предыдущие. Для одиночной партии даёт штраф.
	PrecedenceLastWrite Precedence = "last_write"
)

// IsValid проверяет известность значения.
func (p Precedence) IsValid() bool {
	return p == PrecedenceFirstMatch || p == PrecedenceLastWrite
}

// TableRule - правило на основе таблицы очков и порядка приоритетов.
type TableRule struct {
	name       string
	table      Table
	precedence Precedence
}

// NewTableRule создаёт правило с проверкой параметров.
func NewTableRule(name string, table Table, precedence Precedence) (*TableRule, error) {
	if precedence == "" {
		precedence = PrecedenceFirstMatch
	}
	if !precedence.IsValid() {
		return nil, shared.WrapError("scoring", "NewTableRule", shared.ErrInvalidInput,
			fmt.Sprintf("unknown precedence %q", precedence), shared.ErrInvalidScoringTable)
	}
	if name == "" {
		name = "table"
	}
	return &TableRule{name: name, table: table, precedence: precedence}, nil
}

// Standard возвращает правило по умолчанию.
//
//	points(0, n)   = +3  для n >= 1
//	points(1, 2)   = -1  (последний важнее второго в поле из двух)
//	points(1, n)   = +1  для n >= 3
//	points(n-1, n) = -1  для n >= 3
func Standard() *TableRule {
	return &TableRule{name: "standard", table: DefaultTable, precedence: PrecedenceFirstMatch}
}

// Legacy возвращает правило исходного бота с перезаписью.
func Legacy() *TableRule {
	return &TableRule{name: "legacy", table: DefaultTable, precedence: PrecedenceLastWrite}
}

// Name implements Rule.
func (r *TableRule) Name() string {
	return r.name
}

// Table returns a copy of the points table.
func (r *TableRule) Table() Table {
	return r.table
}

// Precedence returns the configured precedence.
func (r *TableRule) Precedence() Precedence {
	return r.precedence
}

// Points implements Rule.
func (r *TableRule) Points(position, fieldSize int) (int, error) {
	if err := CheckPosition(position, fieldSize); err != nil {
		return 0, err
	}

	if r.precedence == PrecedenceLastWrite {
		return r.lastWrite(position, fieldSize), nil
	}
	return r.firstMatch(position, fieldSize), nil
}

func (r *TableRule) firstMatch(position, fieldSize int) int {
	last := fieldSize - 1
	switch {
	case position == 0:
		return r.table.Winner
	case fieldSize <= 2 && position == last:
		return r.table.Last
	case position == 1:
		return r.table.RunnerUp
	case position == last:
		return r.table.Last
	default:
		return r.table.Middle
	}
}

func (r *TableRule) lastWrite(position, fieldSize int) int {
	points := r.table.Middle
	if position == 0 {
		points = r.table.Winner
	}
	if fieldSize >= 2 && position == 1 {
		points = r.table.RunnerUp
	}
	if position == fieldSize-1 {
		points = r.table.Last
	}
	return points
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// CheckPosition проверяет 0 <= position < fieldSize.
func CheckPosition(position, fieldSize int) error {
	if fieldSize < 1 || position < 0 || position >= fieldSize {
		return shared.WrapError("scoring", "Points", shared.ErrValueOutOfRange,
			fmt.Sprintf("position %d in field of %d", position, fieldSize), shared.ErrInvalidPosition)
	}
	return nil
}

// Deltas считает очки для всех мест поля размера fieldSize.
func Deltas(rule Rule, fieldSize int) ([]int, error) {
	out := make([]int, fieldSize)
	for i := range out {
		p, err := rule.Points(i, fieldSize)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// ByName возвращает встроенное правило по имени ("standard", "legacy").
func ByName(name string) (*TableRule, error) {
	switch name {
	case "", "standard":
		return Standard(), nil
	case "legacy":
		return Legacy(), nil
	default:
		return nil, shared.WrapError("scoring", "ByName", shared.ErrInvalidInput,
			fmt.Sprintf("unknown scoring rule %q", name), shared.ErrInvalidScoringTable)
	}
}
