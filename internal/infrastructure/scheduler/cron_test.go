package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		_, err := ParseCronExpression(expr)
		assert.Error(t, err, expr)
	}
}

func TestCronExpression_Next(t *testing.T) {
	saturday := time.Date(2024, 6, 15, 18, 7, 42, 0, time.UTC)

	tests := []struct {
		expr string
		from time.Time
		want time.Time
	}{
		{"0 20 * * 0", saturday, time.Date(2024, 6, 16, 20, 0, 0, 0, time.UTC)},
		{"0 20 * * 7", saturday, time.Date(2024, 6, 16, 20, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", saturday, time.Date(2024, 6, 15, 18, 15, 0, 0, time.UTC)},
		{"0 9 1 * *", saturday, time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)},
		{"30 8 * * 1-5", saturday, time.Date(2024, 6, 17, 8, 30, 0, 0, time.UTC)},
		{"0 0 29 2 *", saturday, time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC)},
		{"0 12 1,15 * *", saturday, time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)},
		{"0 20 * * 0", time.Date(2024, 6, 16, 20, 0, 0, 0, time.UTC), time.Date(2024, 6, 23, 20, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(tt.from))
		})
	}
}

func TestCronExpression_DayFieldsAreOred(t *testing.T) {
	// 13th of the month or any Friday.
	ce := MustParseCronExpression("0 0 13 * 5")

	next := ce.Next(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), next)

	next = ce.Next(time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC), next)
}

func TestCronExpression_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	ce := MustParseCronExpression("0 20 * * 0")

	next := ce.Next(time.Date(2024, 6, 16, 19, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 6, 16, 20, 0, 0, 0, loc), next)
	assert.Equal(t, "0 20 * * 0", ce.String())
}

func TestIntervalSchedule(t *testing.T) {
	_, err := NewIntervalSchedule(0)
	assert.Error(t, err)

	s, err := NewIntervalSchedule(6 * time.Hour)
	require.NoError(t, err)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(6*time.Hour), s.Next(from))
	assert.Equal(t, "@every 6h0m0s", s.String())
}
