package services

import "math"

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// roundTo rounds to the given number of decimals; nil when the value is not finite
func roundTo(v float64, places int) *float64 {
	if !isFinite(v) {
		return nil
	}
	scale := math.Pow(10, float64(places))
	r := math.Round(v*scale) / scale
	if !isFinite(r) {
		r = v
	}
	return &r
}

func round2(v float64) *float64 {
	return roundTo(v, 2)
}

// round2Ptr is round2 for optional quote fields
func round2Ptr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return round2(*v)
}
