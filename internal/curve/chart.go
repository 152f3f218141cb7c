package curve

import (
	"iter"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// CurvePoint is one chart sample.
type CurvePoint struct {
	Supply units.Shares `json:"supply"`
	Price  units.Price  `json:"price"`
}

// GenerateCurveData yields uniform samples over [0, max(supply*WindowFactor, MinWindow)].
// The current supply is always one of the samples. The sequence can be
// ranged over any number of times.
func (c *Curve) GenerateCurveData(supply units.Shares) iter.Seq[CurvePoint] {
	if supply.IsNegative() {
		supply = units.ZeroShares()
	}
	end := supply.Mul(c.cfg.WindowFactor)
	if end.LessThan(c.cfg.MinWindow.Decimal) {
		end = c.cfg.MinWindow.Decimal
	}
	steps := c.cfg.Steps
	step := units.Div(end, decimal.NewFromInt(int64(steps)))

	return func(yield func(CurvePoint) bool) {
		prev := decimal.NewFromInt(-1)
		for i := 0; i <= steps; i++ {
			x := step.Mul(decimal.NewFromInt(int64(i)))
			if i == steps {
				x = end
			}
			if supply.GreaterThan(prev) && supply.LessThan(x) {
				if !yield(c.point(supply)) {
					return
				}
			}
			if !yield(c.point(units.NewShares(x))) {
				return
			}
			prev = x
		}
	}
}

// CurveData collects GenerateCurveData into a slice.
func (c *Curve) CurveData(supply units.Shares) []CurvePoint {
	return slices.Collect(c.GenerateCurveData(supply))
}

func (c *Curve) point(supply units.Shares) CurvePoint {
	return CurvePoint{Supply: supply, Price: c.Price(supply)}
}
