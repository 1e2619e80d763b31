package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
)

func points(t *testing.T, r Rule, pos, n int) int {
	t.Helper()
	p, err := r.Points(pos, n)
	require.NoError(t, err)
	return p
}

func TestStandard_WinnerAlwaysGetsThree(t *testing.T) {
	r := Standard()
	for n := 1; n <= 12; n++ {
		assert.Equal(t, 3, points(t, r, 0, n), "n=%d", n)
	}
}

func TestStandard_RunnerUpAndLastForLargerFields(t *testing.T) {
	r := Standard()
	for n := 3; n <= 12; n++ {
		assert.Equal(t, 1, points(t, r, 1, n), "runner-up n=%d", n)
		assert.Equal(t, -1, points(t, r, n-1, n), "last n=%d", n)
		for i := 2; i < n-1; i++ {
			assert.Equal(t, 0, points(t, r, i, n), "middle i=%d n=%d", i, n)
		}
	}
}

func TestStandard_SmallFields(t *testing.T) {
	r := Standard()

	// A single participant is winner and last at once; winner wins.
	assert.Equal(t, 3, points(t, r, 0, 1))

	// In a field of two, last place takes precedence over runner-up.
	assert.Equal(t, 3, points(t, r, 0, 2))
	assert.Equal(t, -1, points(t, r, 1, 2))
}

func TestStandard_IsDeterministic(t *testing.T) {
	r := Standard()
	for n := 1; n <= 8; n++ {
		first, err := Deltas(r, n)
		require.NoError(t, err)
		second, err := Deltas(r, n)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestStandard_InvalidPosition(t *testing.T) {
	r := Standard()
	cases := []struct {
		name      string
		pos, size int
	}{
		{"position equals field size", 3, 3},
		{"position beyond field", 5, 3},
		{"negative position", -1, 3},
		{"empty field", 0, 0},
		{"negative field", 0, -2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Points(tc.pos, tc.size)
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrInvalidPosition)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestLegacy_OverwriteSemantics(t *testing.T) {
	r := Legacy()

	assert.Equal(t, -1, points(t, r, 0, 1))
	assert.Equal(t, []int{3, -1}, mustDeltas(t, r, 2))
	assert.Equal(t, []int{3, 1, -1}, mustDeltas(t, r, 3))
	assert.Equal(t, []int{3, 1, 0, 0, -1}, mustDeltas(t, r, 5))
}

func TestNewTableRule(t *testing.T) {
	r, err := NewTableRule("", Table{Winner: 5, RunnerUp: 2, Last: -2, Middle: 1}, "")
	require.NoError(t, err)
	assert.Equal(t, "table", r.Name())
	assert.Equal(t, PrecedenceFirstMatch, r.Precedence())
	assert.Equal(t, []int{5, 2, 1, -2}, mustDeltas(t, r, 4))

	_, err = NewTableRule("x", DefaultTable, Precedence("random"))
	assert.ErrorIs(t, err, shared.ErrInvalidScoringTable)
}

func TestByName(t *testing.T) {
	r, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "standard", r.Name())

	r, err = ByName("legacy")
	require.NoError(t, err)
	assert.Equal(t, PrecedenceLastWrite, r.Precedence())

	_, err = ByName("elo")
	assert.Error(t, err)
}

func TestRuleFunc(t *testing.T) {
	flat := RuleFunc(func(position, fieldSize int) (int, error) {
		if err := CheckPosition(position, fieldSize); err != nil {
			return 0, err
		}
		return 1, nil
	})
	assert.Equal(t, []int{1, 1, 1}, mustDeltas(t, flat, 3))
	assert.Equal(t, "custom", flat.Name())
}

func mustDeltas(t *testing.T, r Rule, n int) []int {
	t.Helper()
	d, err := Deltas(r, n)
	require.NoError(t, err)
	return d
}
