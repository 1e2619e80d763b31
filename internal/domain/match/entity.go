// Package match содержит доменную модель сыгранной партии.
//
// MatchRecord неизменяем после создания: исправление партии выполняется
// как удаление и повторная вставка, а не как изменение на месте.
package match

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION POLICY
// ══════════════════════════════════════════════════════════════════════════════

// Границы по умолчанию для команды регистрации.
const (
	DefaultMinParticipants = 3
	DefaultMaxParticipants = 8
)

// RegistrationPolicy - правило допустимого числа участников.
// Применяется вызывающей стороной до создания записи; агрегатор его
// не перепроверяет.
type RegistrationPolicy struct {
	MinParticipants int
	MaxParticipants int
}

// DefaultPolicy возвращает политику 3..8 участников.
func DefaultPolicy() RegistrationPolicy {
	return RegistrationPolicy{
		MinParticipants: DefaultMinParticipants,
		MaxParticipants: DefaultMaxParticipants,
	}
}

// Check проверяет список участников.
func (p RegistrationPolicy) Check(participants []shared.PlayerID) error {
	if p.MinParticipants > 0 && len(participants) < p.MinParticipants {
		return shared.WrapError("match", "Register", shared.ErrValueOutOfRange,
			fmt.Sprintf("need at least %d participants, got %d", p.MinParticipants, len(participants)),
			shared.ErrTooFewParticipants)
	}
	if p.MaxParticipants > 0 && len(participants) > p.MaxParticipants {
		return shared.WrapError("match", "Register", shared.ErrValueOutOfRange,
			fmt.Sprintf("at most %d participants allowed, got %d", p.MaxParticipants, len(participants)),
			shared.ErrTooManyParticipants)
	}

	seen := make(map[shared.PlayerID]struct{}, len(participants))
	for _, id := range participants {
		if !id.IsValid() {
			return shared.ErrInvalidPlayerID
		}
		if _, dup := seen[id]; dup {
			return shared.WrapError("match", "Register", shared.ErrInvalidInput,
				fmt.Sprintf("participant %s listed twice", id), shared.ErrDuplicateParticipant)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH RECORD
// ══════════════════════════════════════════════════════════════════════════════

// MatchRecord - одна завершённая игровая сессия.
// Participants упорядочены по занятому месту: индекс 0 - победитель,
// последний индекс - последнее место.
type MatchRecord struct {
	id           string
	game         shared.GameTitle
	duration     string
	timestamp    time.Time
	participants []shared.PlayerID
	recordedBy   string
}

// NewMatchInput - данные для регистрации новой партии.
type NewMatchInput struct {
	Game         string
	Duration     string
	Participants []shared.PlayerID
	PlayedAt     time.Time
	RecordedBy   string
}

// NewMatchRecord создаёт запись новой партии, применяя политику регистрации.
func NewMatchRecord(in NewMatchInput, policy RegistrationPolicy) (*MatchRecord, error) {
	game := shared.GameTitle(strings.TrimSpace(in.Game))
	if game.IsEmpty() {
		return nil, shared.ErrEmptyGame
	}
	if err := policy.Check(in.Participants); err != nil {
		return nil, err
	}
	if in.PlayedAt.IsZero() {
		return nil, shared.WrapError("match", "Register", shared.ErrEmptyValue,
			"timestamp is required", shared.ErrMalformedRecord)
	}

	return &MatchRecord{
		id:           uuid.NewString(),
		game:         game,
		duration:     strings.TrimSpace(in.Duration),
		timestamp:    in.PlayedAt,
		participants: slices.Clone(in.Participants),
		recordedBy:   in.RecordedBy,
	}, nil
}

// Snapshot - плоское представление записи для хранилищ и транспорта.
type Snapshot struct {
	ID           string    `json:"id"`
	Game         string    `json:"game"`
	Duration     string    `json:"duration"`
	Timestamp    time.Time `json:"timestamp"`
	Participants []string  `json:"participants"`
	RecordedBy   string    `json:"recorded_by,omitempty"`
}

// FromSnapshot восстанавливает запись из хранилища без проверки политики.
// Запись может оказаться некорректной; агрегатор пропустит её через Validate.
func FromSnapshot(s Snapshot) *MatchRecord {
	participants := make([]shared.PlayerID, len(s.Participants))
	for i, p := range s.Participants {
		participants[i] = shared.PlayerID(p)
	}
	return &MatchRecord{
		id:           s.ID,
		game:         shared.GameTitle(s.Game),
		duration:     s.Duration,
		timestamp:    s.Timestamp,
		participants: participants,
		recordedBy:   s.RecordedBy,
	}
}

// Snapshot возвращает плоскую копию записи.
func (m *MatchRecord) Snapshot() Snapshot {
	participants := make([]string, len(m.participants))
	for i, p := range m.participants {
		participants[i] = string(p)
	}
	return Snapshot{
		ID:           m.id,
		Game:         string(m.game),
		Duration:     m.duration,
		Timestamp:    m.timestamp,
		Participants: participants,
		RecordedBy:   m.recordedBy,
	}
}

// ID returns the record identifier.
func (m *MatchRecord) ID() string { return m.id }

// Game returns the game title as entered.
func (m *MatchRecord) Game() shared.GameTitle { return m.game }

// Duration returns the opaque duration label.
func (m *MatchRecord) Duration() string { return m.duration }

// Timestamp returns when the match was recorded.
func (m *MatchRecord) Timestamp() time.Time { return m.timestamp }

// RecordedBy returns who registered the match, if known.
func (m *MatchRecord) RecordedBy() string { return m.recordedBy }

// Participants возвращает копию списка участников в порядке мест.
func (m *MatchRecord) Participants() []shared.PlayerID {
	return slices.Clone(m.participants)
}

// FieldSize возвращает число участников.
func (m *MatchRecord) FieldSize() int {
	return len(m.participants)
}

// ParticipantAt возвращает участника на месте i без копирования всего списка.
func (m *MatchRecord) ParticipantAt(i int) shared.PlayerID {
	return m.participants[i]
}

// Validate проверяет минимальную форму записи для агрегации.
// Политика регистрации здесь не применяется: одиночная партия допустима.
func (m *MatchRecord) Validate() error {
	if m == nil {
		return shared.WrapError("match", "Validate", shared.ErrInvalidFormat, "nil record", shared.ErrMalformedRecord)
	}
	if len(m.participants) == 0 {
		return shared.WrapError("match", "Validate", shared.ErrInvalidFormat,
			fmt.Sprintf("record %s has no participants", m.id), shared.ErrMalformedRecord)
	}
	if m.timestamp.IsZero() {
		return shared.WrapError("match", "Validate", shared.ErrInvalidFormat,
			fmt.Sprintf("record %s has no timestamp", m.id), shared.ErrMalformedRecord)
	}
	// Идентификатор непрозрачен: при агрегации отвергается только пустой.
	for i, p := range m.participants {
		if p == "" {
			return shared.WrapError("match", "Validate", shared.ErrInvalidFormat,
				fmt.Sprintf("record %s has an empty participant at position %d", m.id, i), shared.ErrMalformedRecord)
		}
	}
	return nil
}

// Replace строит запись-замену с новым идентификатором. Время и автор
// берутся из исходной записи, если не заданы. Старая запись удаляется
// вызывающей стороной, новая вставляется.
func (m *MatchRecord) Replace(in NewMatchInput, policy RegistrationPolicy) (*MatchRecord, error) {
	if in.PlayedAt.IsZero() {
		in.PlayedAt = m.timestamp
	}
	if in.RecordedBy == "" {
		in.RecordedBy = m.recordedBy
	}
	return NewMatchRecord(in, policy)
}

// ProcessingHash - отпечаток содержимого партии для защиты от повторной
// регистрации одной и той же партии (повторная отправка команды).
// Идентификатор и автор в хеш не входят; время учитывается до секунды.
func (m *MatchRecord) ProcessingHash() string {
	h, _ := blake2b.New256(nil)

	writeField := func(s string) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	writeField(m.game.Key())
	writeField(m.duration)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(m.timestamp.Unix()))
	h.Write(ts[:])
	for _, p := range m.participants {
		writeField(string(p))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTIONS
// ══════════════════════════════════════════════════════════════════════════════

var mentionRegex = regexp.MustCompile(`<@!?(\d+)>`)

// ParseMentions извлекает идентификаторы из упоминаний вида <@id> и <@!id>
// в порядке появления. Порядок задаёт занятые места.
func ParseMentions(text string) []shared.PlayerID {
	matches := mentionRegex.FindAllStringSubmatch(text, -1)
	out := make([]shared.PlayerID, 0, len(matches))
	for _, m := range matches {
		out = append(out, shared.PlayerID(m[1]))
	}
	return out
}

// FormatMention форматирует идентификатор как упоминание.
func FormatMention(id shared.PlayerID) string {
	return "<@" + string(id) + ">"
}
