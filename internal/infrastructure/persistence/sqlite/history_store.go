package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

var sqlBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// HistoryStore реализует match.HistoryStore поверх SQLite.
// Время хранится в наносекундах Unix (UTC).
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore создаёт хранилище над открытой базой.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// ══════════════════════════════════════════════════════════════════════════════
// READ
// ══════════════════════════════════════════════════════════════════════════════

// Load implements match.HistoryStore.
func (s *HistoryStore) Load(ctx context.Context) ([]*match.MatchRecord, error) {
	return s.loadWhere(ctx, nil)
}

// Get implements match.HistoryStore.
func (s *HistoryStore) Get(ctx context.Context, id string) (*match.MatchRecord, error) {
	records, err := s.loadWhere(ctx, sq.Eq{"m.id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.ErrMatchNotFound
	}
	return records[0], nil
}

func (s *HistoryStore) loadWhere(ctx context.Context, where sq.Sqlizer) ([]*match.MatchRecord, error) {
	query := sqlBuilder.
		Select("m.id", "m.game", "m.duration", "m.played_at", "m.recorded_by", "p.player_id").
		From("matches m").
		LeftJoin("match_participants p ON p.match_id = m.id").
		OrderBy("m.seq", "p.position")
	if where != nil {
		query = query.Where(where)
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	defer rows.Close()

	var (
		snapshots []match.Snapshot
		current   *match.Snapshot
	)
	for rows.Next() {
		var (
			snap     match.Snapshot
			playedAt int64
			player   sql.NullString
		)
		if err := rows.Scan(&snap.ID, &snap.Game, &snap.Duration, &playedAt, &snap.RecordedBy, &player); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		if current == nil || current.ID != snap.ID {
			snap.Timestamp = time.Unix(0, playedAt).UTC()
			snapshots = append(snapshots, snap)
			current = &snapshots[len(snapshots)-1]
		}
		if player.Valid {
			current.Participants = append(current.Participants, player.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	out := make([]*match.MatchRecord, len(snapshots))
	for i, snap := range snapshots {
		out[i] = match.FromSnapshot(snap)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE
// ══════════════════════════════════════════════════════════════════════════════

// Append implements match.HistoryStore.
func (s *HistoryStore) Append(ctx context.Context, record *match.MatchRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		return insert(ctx, tx, record)
	})
}

// Delete implements match.HistoryStore.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		return remove(ctx, tx, id)
	})
}

// Replace implements match.HistoryStore.
func (s *HistoryStore) Replace(ctx context.Context, oldID string, replacement *match.MatchRecord) error {
	if err := replacement.Validate(); err != nil {
		return err
	}
	return s.tx(ctx, func(tx *sql.Tx) error {
		if err := remove(ctx, tx, oldID); err != nil {
			return err
		}
		return insert(ctx, tx, replacement)
	})
}

// Reset implements match.HistoryStore.
func (s *HistoryStore) Reset(ctx context.Context, game string) (int, error) {
	query := sqlBuilder.Delete("matches")
	if key := shared.GameTitle(game).Key(); key != "" {
		query = query.Where(sq.Eq{"game_key": key})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("reset matches: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *HistoryStore) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insert(ctx context.Context, tx *sql.Tx, record *match.MatchRecord) error {
	sqlStr, args, err := sqlBuilder.
		Insert("matches").
		Columns("id", "game", "game_key", "duration", "played_at", "recorded_by", "processing_hash").
		Values(record.ID(), record.Game().String(), record.Game().Key(), record.Duration(),
			record.Timestamp().UnixNano(), record.RecordedBy(), record.ProcessingHash()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		if isConstraintViolation(err) {
			return shared.ErrDuplicateMatch
		}
		return fmt.Errorf("insert match: %w", err)
	}

	participants := sqlBuilder.Insert("match_participants").Columns("match_id", "position", "player_id")
	for i, p := range record.Participants() {
		participants = participants.Values(record.ID(), i, string(p))
	}
	sqlStr, args, err = participants.ToSql()
	if err != nil {
		return fmt.Errorf("build participants query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	return nil
}

func remove(ctx context.Context, tx *sql.Tx, id string) error {
	sqlStr, args, err := sqlBuilder.Delete("matches").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	res, err := tx.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shared.ErrMatchNotFound
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
