package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected int64
	}{
		{name: "exact multiple", amount: 90000, expected: 90000},
		{name: "rounds down below midpoint", amount: 90249, expected: 90000},
		{name: "rounds up at midpoint", amount: 90250, expected: 90500},
		{name: "zero", amount: 0, expected: 0},
		{name: "small positive", amount: 100, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Round(tt.amount))
		})
	}
}

func TestCapNeverExceedsCeiling(t *testing.T) {
	assert.Equal(t, int64(100000), Cap(100500, 100300))
	assert.Equal(t, int64(94500), Cap(94500, 100000))
	assert.Equal(t, int64(0), Cap(500, 499))
}

func TestFormatParseRoundTrip(t *testing.T) {
	amounts := []float64{0, 499, 25000, 90250, 1234567, 987654321, 150000.4}

	for _, a := range amounts {
		rounded := Round(a)
		formatted := Format(rounded)

		parsed, err := Parse(formatted)
		require.NoError(t, err, formatted)
		assert.Equal(t, rounded, parsed)
		assert.Zero(t, parsed%Increment, "amount %s is not a multiple of 500", formatted)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$0", Format(0))
	assert.Equal(t, "$500", Format(500))
	assert.Equal(t, "$90,000", Format(90000))
	assert.Equal(t, "$1,234,500", Format(1234500))
	assert.Equal(t, "-$2,500", Format(-2500))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("$12a")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRoundAndFloorSaturateOutOfRangeAmounts(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected int64
	}{
		{name: "huge positive", amount: 5e18, expected: int64(MaxAmount)},
		{name: "beyond int64", amount: 1e30, expected: int64(MaxAmount)},
		{name: "huge negative", amount: -5e18, expected: -int64(MaxAmount)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Round(tt.amount))
			assert.Equal(t, tt.expected, Floor(tt.amount))
		})
	}
}
