package units

import (
	"sync"

	"github.com/shopspring/decimal"
)

// expCutoff is where e^-x rounds to zero at Scale digits.
var expCutoff = decimal.NewFromInt(45)

// ExpTaylor memoises factorials in a package-level slice without locking.
var expMu sync.Mutex

// ExpNeg returns e^-x rounded to Scale digits. x <= 0 yields 1.
func ExpNeg(x decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() {
		return decimal.NewFromInt(1)
	}
	if x.GreaterThanOrEqual(expCutoff) {
		return decimal.Zero
	}

	expMu.Lock()
	defer expMu.Unlock()
	v, err := x.Round(Scale).Neg().ExpTaylor(Scale)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// Saturate maps x >= 0 onto [0, 100) as 100*(1-e^(-x/scale)). A non-positive
// x or scale yields 0.
func Saturate(x, scale decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() || !scale.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(100).Mul(decimal.NewFromInt(1).Sub(ExpNeg(Div(x, scale))))
}

// Score converts a decimal display score to float64 at four decimals.
func Score(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}
