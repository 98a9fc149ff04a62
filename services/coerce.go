package services

import (
	"math"
	"stocktimus/interfaces"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// maxLooseInt bounds whole-number inputs such as contract counts and day horizons
var maxLooseInt = decimal.NewFromInt(math.MaxInt32)

// parseDecimal reads a loose scalar strictly; "", "abc" and "NaN" fail
func parseDecimal(l interfaces.Loose) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(l))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// parseFloat converts a loose scalar to a finite float64. Values beyond the
// float64 range ("1e400") fail.
func parseFloat(l interfaces.Loose) (float64, bool) {
	d, ok := parseDecimal(l)
	if !ok {
		return 0, false
	}
	v := d.InexactFloat64()
	if !isFinite(v) {
		return 0, false
	}
	return v, true
}

// parsePositiveFloat returns the value when it parses and is > 0. Values
// that underflow to 0 ("1e-400") fail.
func parsePositiveFloat(l interfaces.Loose) (float64, bool) {
	v, ok := parseFloat(l)
	if !ok || !(v > 0) {
		return 0, false
	}
	return v, true
}

// positiveFloatOr falls back to def when the value is missing, invalid or not positive
func positiveFloatOr(l interfaces.Loose, def float64) float64 {
	if v, ok := parsePositiveFloat(l); ok {
		return v
	}
	return def
}

// floatOr falls back to def when the value is missing or invalid
func floatOr(l interfaces.Loose, def float64) float64 {
	if v, ok := parseFloat(l); ok {
		return v
	}
	return def
}

// positiveIntOr accepts whole numbers from 1 to maxLooseInt ("3", 3, "3.0")
// and falls back to def otherwise
func positiveIntOr(l interfaces.Loose, def int) int {
	d, ok := parseDecimal(l)
	if !ok || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(maxLooseInt) {
		return def
	}
	return int(d.IntPart())
}

// parseDate reads a YYYY-MM-DD date as midnight UTC
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// daysBetween counts calendar days from one UTC date to another
func daysBetween(from, to time.Time) int {
	return int(interfaces.TruncateDay(to).Sub(interfaces.TruncateDay(from)).Hours() / 24)
}
