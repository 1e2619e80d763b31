package leaderboard

import (
	"strings"
	"time"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

// TimeWindow ограничивает выборку партий фиксированной длительностью до "сейчас".
// Длительности календарно-независимые: неделя = 7 дней, месяц = 30, год = 365.
type TimeWindow string

const (
	WindowAll   TimeWindow = "all"
	WindowWeek  TimeWindow = "week"
	WindowMonth TimeWindow = "month"
	WindowYear  TimeWindow = "year"
)

const day = 24 * time.Hour

// Windows возвращает все поддерживаемые окна.
func Windows() []TimeWindow {
	return []TimeWindow{WindowAll, WindowWeek, WindowMonth, WindowYear}
}

// ParseTimeWindow разбирает окно. Пустая строка означает WindowAll.
// Принимаются также португальские названия, которыми пользуются в чате.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "geral", "tudo":
		return WindowAll, nil
	case "week", "semana", "7d":
		return WindowWeek, nil
	case "month", "mes", "mês", "30d":
		return WindowMonth, nil
	case "year", "ano", "365d":
		return WindowYear, nil
	default:
		return "", shared.WrapError("leaderboard", "ParseWindow", shared.ErrInvalidInput,
			"unknown time window "+s, shared.ErrInvalidTimeWindow)
	}
}

// IsValid проверяет, что окно известно.
func (w TimeWindow) IsValid() bool {
	switch w {
	case WindowAll, WindowWeek, WindowMonth, WindowYear:
		return true
	}
	return false
}

// Duration возвращает длительность окна. Для WindowAll - 0 (нет нижней границы).
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case WindowWeek:
		return 7 * day
	case WindowMonth:
		return 30 * day
	case WindowYear:
		return 365 * day
	default:
		return 0
	}
}

// Since возвращает нижнюю границу окна относительно now.
// Второе значение false для WindowAll.
func (w TimeWindow) Since(now time.Time) (time.Time, bool) {
	d := w.Duration()
	if d == 0 {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

// Contains проверяет timestamp >= now - duration. Граница включается.
func (w TimeWindow) Contains(ts, now time.Time) bool {
	since, bounded := w.Since(now)
	if !bounded {
		return true
	}
	return !ts.Before(since)
}

// String returns the canonical name.
func (w TimeWindow) String() string {
	if w == "" {
		return string(WindowAll)
	}
	return string(w)
}
