package units

import "math"

// RoundScore fixes a display score at four decimals so float noise in the
// last bits never leaks into stored or published values.
func RoundScore(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
