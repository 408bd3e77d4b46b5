// Package money holds the whole-dollar rounding rules used at every public boundary.
package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Increment is the rounding unit for every published currency figure
const Increment = 500

// MaxAmount bounds every rounded figure so the int64 conversion cannot overflow
const MaxAmount = 1e15

var ErrInvalidAmount = errors.New("invalid currency amount")

// Round rounds to the nearest $500
func Round(amount float64) int64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return int64(math.Round(bounded(amount)/Increment)) * Increment
}

// Floor rounds down to a multiple of $500. Used when a figure must not exceed a cap.
func Floor(amount float64) int64 {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	return int64(math.Floor(bounded(amount)/Increment)) * Increment
}

func bounded(amount float64) float64 {
	return math.Max(-MaxAmount, math.Min(MaxAmount, amount))
}

// Cap returns amount if it does not exceed ceiling, otherwise ceiling floored to $500
func Cap(amount int64, ceiling float64) int64 {
	if float64(amount) <= ceiling {
		return amount
	}
	return Floor(ceiling)
}

// Format renders a whole-dollar amount as "$1,234,500"
func Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String()
}

// Parse reverses Format
func Parse(s string) (int64, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if negative {
		v = -v
	}
	return v, nil
}
