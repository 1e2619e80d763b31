package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

func TestParseTimeWindow(t *testing.T) {
	cases := map[string]TimeWindow{
		"":       WindowAll,
		"ALL":    WindowAll,
		"geral":  WindowAll,
		"week":   WindowWeek,
		"Semana": WindowWeek,
		"month":  WindowMonth,
		"mês":    WindowMonth,
		"year":   WindowYear,
		" ano ":  WindowYear,
	}
	for in, want := range cases {
		got, err := ParseTimeWindow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTimeWindow("decade")
	assert.ErrorIs(t, err, shared.ErrInvalidTimeWindow)
}

func TestTimeWindow_Duration(t *testing.T) {
	assert.Equal(t, time.Duration(0), WindowAll.Duration())
	assert.Equal(t, 7*24*time.Hour, WindowWeek.Duration())
	assert.Equal(t, 30*24*time.Hour, WindowMonth.Duration())
	assert.Equal(t, 365*24*time.Hour, WindowYear.Duration())
}

func TestTimeWindow_Contains(t *testing.T) {
	assert.True(t, WindowAll.Contains(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), now))
	assert.True(t, WindowWeek.Contains(now.Add(time.Hour), now), "future timestamps are kept")
	assert.True(t, WindowWeek.Contains(now.Add(-7*day), now))
	assert.False(t, WindowWeek.Contains(now.Add(-7*day-time.Nanosecond), now))
}
