// Package jsonfile хранит историю партий в одном JSON-файле.
// Запись атомарна: новый снимок пишется во временный файл рядом
// и переименовывается поверх старого.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// FormatVersion - версия формата файла.
const FormatVersion = 1

// Document - содержимое файла истории.
type Document struct {
	Version int              `json:"version"`
	Matches []match.Snapshot `json:"matches"`
}

// HistoryStore реализует match.HistoryStore поверх JSON-файла.
// Все операции сериализуются мьютексом; файл читается при каждом Load,
// поэтому ручные правки файла видны без перезапуска.
type HistoryStore struct {
	mu   sync.Mutex
	path string
}

// NewHistoryStore создаёт хранилище. Каталог создаётся при первой записи.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Path возвращает путь к файлу.
func (s *HistoryStore) Path() string {
	return s.path
}

// ══════════════════════════════════════════════════════════════════════════════
// READ
// ══════════════════════════════════════════════════════════════════════════════

// Load implements match.HistoryStore.
func (s *HistoryStore) Load(ctx context.Context) ([]*match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return toRecords(doc.Matches), nil
}

// Get implements match.HistoryStore.
func (s *HistoryStore) Get(ctx context.Context, id string) (*match.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	i := indexOf(doc.Matches, id)
	if i < 0 {
		return nil, shared.ErrMatchNotFound
	}
	return match.FromSnapshot(doc.Matches[i]), nil
}

// Export возвращает документ целиком (для резервных копий).
func (s *HistoryStore) Export(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.read()
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE
// ══════════════════════════════════════════════════════════════════════════════

// Append implements match.HistoryStore.
func (s *HistoryStore) Append(ctx context.Context, record *match.MatchRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(doc *Document) error {
		if containsHash(doc.Matches, record.ProcessingHash()) {
			return shared.ErrDuplicateMatch
		}
		if indexOf(doc.Matches, record.ID()) >= 0 {
			return shared.ErrDuplicateMatch
		}
		doc.Matches = append(doc.Matches, record.Snapshot())
		return nil
	})
}

// Delete implements match.HistoryStore.
func (s *HistoryStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(doc *Document) error {
		i := indexOf(doc.Matches, id)
		if i < 0 {
			return shared.ErrMatchNotFound
		}
		doc.Matches = slices.Delete(doc.Matches, i, i+1)
		return nil
	})
}

// Replace implements match.HistoryStore.
func (s *HistoryStore) Replace(ctx context.Context, oldID string, replacement *match.MatchRecord) error {
	if err := replacement.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(doc *Document) error {
		i := indexOf(doc.Matches, oldID)
		if i < 0 {
			return shared.ErrMatchNotFound
		}
		doc.Matches = slices.Delete(doc.Matches, i, i+1)
		if containsHash(doc.Matches, replacement.ProcessingHash()) {
			return shared.ErrDuplicateMatch
		}
		doc.Matches = append(doc.Matches, replacement.Snapshot())
		return nil
	})
}

// Reset implements match.HistoryStore.
func (s *HistoryStore) Reset(ctx context.Context, game string) (int, error) {
	removed := 0
	err := s.update(ctx, func(doc *Document) error {
		before := len(doc.Matches)
		if game == "" {
			doc.Matches = nil
		} else {
			title := shared.GameTitle(game)
			doc.Matches = slices.DeleteFunc(doc.Matches, func(m match.Snapshot) bool {
				return shared.GameTitle(m.Game).Equal(title)
			})
		}
		removed = before - len(doc.Matches)
		return nil
	})
	return removed, err
}

// Import добавляет записи пачкой, пропуская дубликаты.
// Возвращает число добавленных записей.
func (s *HistoryStore) Import(ctx context.Context, records []*match.MatchRecord) (int, error) {
	added := 0
	err := s.update(ctx, func(doc *Document) error {
		for _, r := range records {
			if r.Validate() != nil || containsHash(doc.Matches, r.ProcessingHash()) {
				continue
			}
			doc.Matches = append(doc.Matches, r.Snapshot())
			added++
		}
		return nil
	})
	return added, err
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE I/O
// ══════════════════════════════════════════════════════════════════════════════

func (s *HistoryStore) update(ctx context.Context, fn func(doc *Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return s.write(doc)
}

// read возвращает пустой документ, если файла ещё нет.
func (s *HistoryStore) read() (Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Document{Version: FormatVersion}, nil
	}
	if err != nil {
		return Document{}, fmt.Errorf("read history: %w", err)
	}
	return Decode(data)
}

func (s *HistoryStore) write(doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.path, data)
}

// NewDocument собирает документ из записей истории любого хранилища.
func NewDocument(records []*match.MatchRecord) Document {
	doc := Document{Version: FormatVersion, Matches: make([]match.Snapshot, 0, len(records))}
	for _, r := range records {
		if r != nil {
			doc.Matches = append(doc.Matches, r.Snapshot())
		}
	}
	return doc
}

// Encode сериализует документ в текущей версии формата.
func Encode(doc Document) ([]byte, error) {
	doc.Version = FormatVersion
	if doc.Matches == nil {
		doc.Matches = []match.Snapshot{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

// Decode разбирает файл истории. Поддерживается и старый формат -
// голый массив партий без обёртки. Партии разбираются по одной: запись
// с неразборчивым временем не ломает весь файл, а попадает в историю без
// времени, и агрегатор пропускает её как некорректную.
func Decode(data []byte) (Document, error) {
	doc := Document{Version: FormatVersion}
	if len(data) == 0 {
		return doc, nil
	}

	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		doc.Matches = decodeSnapshots(bare)
		return doc, nil
	}

	var raw struct {
		Version int               `json:"version"`
		Matches []json.RawMessage `json:"matches"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, shared.WrapError("jsonfile", "Decode", shared.ErrInvalidFormat, "history file is not valid JSON", err)
	}
	if raw.Version > FormatVersion {
		return Document{}, shared.NewDomainError("jsonfile", "Decode", shared.ErrInvalidFormat,
			fmt.Sprintf("unsupported history version %d", raw.Version))
	}
	doc.Version = raw.Version
	doc.Matches = decodeSnapshots(raw.Matches)
	return doc, nil
}

func decodeSnapshots(raws []json.RawMessage) []match.Snapshot {
	out := make([]match.Snapshot, 0, len(raws))
	for _, raw := range raws {
		var s match.Snapshot
		if err := json.Unmarshal(raw, &s); err != nil {
			s = salvageSnapshot(raw)
		}
		out = append(out, s)
	}
	return out
}

// salvageSnapshot keeps whatever fields still parse. Timestamp stays zero.
func salvageSnapshot(raw json.RawMessage) match.Snapshot {
	var loose struct {
		ID           string   `json:"id"`
		Game         string   `json:"game"`
		Duration     string   `json:"duration"`
		Participants []string `json:"participants"`
		RecordedBy   string   `json:"recorded_by"`
	}
	_ = json.Unmarshal(raw, &loose)
	return match.Snapshot{
		ID:           loose.ID,
		Game:         loose.Game,
		Duration:     loose.Duration,
		Participants: loose.Participants,
		RecordedBy:   loose.RecordedBy,
	}
}

// WriteFileAtomic пишет данные во временный файл и переименовывает его.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmpName, path)
}

func toRecords(snapshots []match.Snapshot) []*match.MatchRecord {
	out := make([]*match.MatchRecord, len(snapshots))
	for i, s := range snapshots {
		out[i] = match.FromSnapshot(s)
	}
	return out
}

func indexOf(snapshots []match.Snapshot, id string) int {
	return slices.IndexFunc(snapshots, func(s match.Snapshot) bool { return s.ID == id })
}

func containsHash(snapshots []match.Snapshot, hash string) bool {
	for _, s := range snapshots {
		if match.FromSnapshot(s).ProcessingHash() == hash {
			return true
		}
	}
	return false
}
