package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// HistoryStore реализует match.HistoryStore поверх PostgreSQL.
type HistoryStore struct {
	conn *Connection
}

// NewHistoryStore создаёт хранилище.
func NewHistoryStore(conn *Connection) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// ══════════════════════════════════════════════════════════════════════════════
// READ
// ══════════════════════════════════════════════════════════════════════════════

// Load implements match.HistoryStore.
func (s *HistoryStore) Load(ctx context.Context) ([]*match.MatchRecord, error) {
	q, err := s.conn.querier()
	if err != nil {
		return nil, err
	}
	return loadWhere(ctx, q, nil)
}

// Get implements match.HistoryStore.
func (s *HistoryStore) Get(ctx context.Context, id string) (*match.MatchRecord, error) {
	q, err := s.conn.querier()
	if err != nil {
		return nil, err
	}
	records, err := loadWhere(ctx, q, sq.Eq{"m.id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, shared.ErrMatchNotFound
	}
	return records[0], nil
}

// loadWhere читает партии с участниками одним запросом в порядке добавления.
func loadWhere(ctx context.Context, q Querier, where sq.Sqlizer) ([]*match.MatchRecord, error) {
	query := psql.
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

	rows, err := q.Query(ctx, sqlStr, args...)
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
			s      match.Snapshot
			player *string
		)
		if err := rows.Scan(&s.ID, &s.Game, &s.Duration, &s.Timestamp, &s.RecordedBy, &player); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		if current == nil || current.ID != s.ID {
			s.Timestamp = s.Timestamp.UTC()
			snapshots = append(snapshots, s)
			current = &snapshots[len(snapshots)-1]
		}
		if player != nil {
			current.Participants = append(current.Participants, *player)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}

	out := make([]*match.MatchRecord, len(snapshots))
	for i, s := range snapshots {
		out[i] = match.FromSnapshot(s)
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
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return insert(ctx, tx, record)
	})
}

// Delete implements match.HistoryStore.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return remove(ctx, tx, id)
	})
}

// Replace implements match.HistoryStore.
func (s *HistoryStore) Replace(ctx context.Context, oldID string, replacement *match.MatchRecord) error {
	if err := replacement.Validate(); err != nil {
		return err
	}
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := remove(ctx, tx, oldID); err != nil {
			return err
		}
		return insert(ctx, tx, replacement)
	})
}

// Reset implements match.HistoryStore.
func (s *HistoryStore) Reset(ctx context.Context, game string) (int, error) {
	query := psql.Delete("matches")
	if key := shared.GameTitle(game).Key(); key != "" {
		query = query.Where(sq.Eq{"game_key": key})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build reset query: %w", err)
	}

	q, err := s.conn.querier()
	if err != nil {
		return 0, err
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("reset matches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func insert(ctx context.Context, tx pgx.Tx, record *match.MatchRecord) error {
	sqlStr, args, err := psql.
		Insert("matches").
		Columns("id", "game", "game_key", "duration", "played_at", "recorded_by", "processing_hash").
		Values(record.ID(), record.Game().String(), record.Game().Key(), record.Duration(),
			record.Timestamp().UTC(), record.RecordedBy(), record.ProcessingHash()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDuplicateMatch
		}
		return fmt.Errorf("insert match: %w", err)
	}

	participants := psql.Insert("match_participants").Columns("match_id", "position", "player_id")
	for i, p := range record.Participants() {
		participants = participants.Values(record.ID(), i, string(p))
	}
	sqlStr, args, err = participants.ToSql()
	if err != nil {
		return fmt.Errorf("build participants query: %w", err)
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}
	return nil
}

func remove(ctx context.Context, tx pgx.Tx, id string) error {
	sqlStr, args, err := psql.Delete("matches").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	tag, err := tx.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMatchNotFound
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER DIRECTORY
// ══════════════════════════════════════════════════════════════════════════════

// PlayerDirectory реализует leaderboard.Resolver по таблице players.
type PlayerDirectory struct {
	conn *Connection
}

// NewPlayerDirectory создаёт справочник.
func NewPlayerDirectory(conn *Connection) *PlayerDirectory {
	return &PlayerDirectory{conn: conn}
}

// DisplayName implements leaderboard.Resolver.
func (d *PlayerDirectory) DisplayName(ctx context.Context, id shared.PlayerID) (string, error) {
	q, err := d.conn.querier()
	if err != nil {
		return "", err
	}

	sqlStr, args, err := psql.Select("display_name").From("players").Where(sq.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return "", err
	}

	var name string
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&name); err != nil {
		if IsNoRows(err) {
			return "", shared.ErrPlayerNotFound
		}
		return "", fmt.Errorf("lookup player: %w", err)
	}
	return name, nil
}

// Upsert сохраняет отображаемое имя игрока.
func (d *PlayerDirectory) Upsert(ctx context.Context, id shared.PlayerID, name string) error {
	name = strings.TrimSpace(name)
	if !id.IsValid() || name == "" {
		return shared.ErrInvalidInput
	}

	q, err := d.conn.querier()
	if err != nil {
		return err
	}

	sqlStr, args, err := psql.
		Insert("players").
		Columns("id", "display_name", "updated_at").
		Values(string(id), name, time.Now().UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, sqlStr, args...)
	return err
}
