package match

import (
	"context"
	"slices"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY STORE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// HistoryStore - единственный источник истины об истории партий.
// Реализации (JSON-файл, SQLite, PostgreSQL) находятся в infrastructure слое
// и отвечают за сериализацию записей и согласованный снимок при чтении.
type HistoryStore interface {
	// ──────────────────────────────────────────────────────────────────────────
	// READ
	// ──────────────────────────────────────────────────────────────────────────

	// Load возвращает всю историю в порядке добавления.
	// Порядок участников внутри записи сохраняется без изменений.
	Load(ctx context.Context) ([]*MatchRecord, error)

	// Get возвращает запись по идентификатору или shared.ErrMatchNotFound.
	Get(ctx context.Context, id string) (*MatchRecord, error)

	// ──────────────────────────────────────────────────────────────────────────
	// WRITE
	// ──────────────────────────────────────────────────────────────────────────

	// Append добавляет запись в конец истории.
	// Возвращает shared.ErrDuplicateMatch, если запись с тем же
	// ProcessingHash уже есть. Хеш учитывает время с точностью до секунды,
	// поэтому реванш тех же игроков с тем же порядком мест и тем же временем
	// (например, если клиент передаёт только дату) считается дубликатом.
	// Такой партии нужно указать реальное время окончания.
	Append(ctx context.Context, record *MatchRecord) error

	// Delete удаляет запись. Возвращает shared.ErrMatchNotFound, если её нет.
	Delete(ctx context.Context, id string) error

	// Replace атомарно удаляет запись oldID и добавляет replacement.
	Replace(ctx context.Context, oldID string, replacement *MatchRecord) error

	// Reset удаляет все записи (или только записи игры, если game не пустая,
	// сравнение без учёта регистра). Возвращает число удалённых записей.
	Reset(ctx context.Context, game string) (int, error)
}

// ListFilter - необязательные условия выборки для списка партий.
type ListFilter struct {
	Game  string
	Limit int
}

// Recent возвращает записи от новых к старым с учётом фильтра.
// При равном времени более поздняя вставка идёт первой.
func Recent(records []*MatchRecord, f ListFilter) []*MatchRecord {
	game := shared.GameTitle(f.Game)
	out := make([]*MatchRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if !game.IsEmpty() && !r.Game().Equal(game) {
			continue
		}
		out = append(out, r)
	}

	slices.SortStableFunc(out, func(a, b *MatchRecord) int {
		return b.Timestamp().Compare(a.Timestamp())
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
