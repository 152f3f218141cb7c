package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

func TestGenerateCurveData_MinWindow(t *testing.T) {
	c := newTestCurve(t)

	points := c.CurveData(units.SharesFromInt(10))

	// [0, 100] in steps of 2; supply 10 is already a grid point.
	require.Len(t, points, 51)
	assert.True(t, points[0].Supply.IsZero())
	assert.True(t, points[len(points)-1].Supply.Equal(dec("100")))
	assert.True(t, points[0].Price.Equal(dec("0.01")))
}

func TestGenerateCurveData_IncludesSupply(t *testing.T) {
	c := newTestCurve(t)

	supply := shares("33.3")
	points := c.CurveData(supply)

	found := false
	for _, p := range points {
		if p.Supply.Equal(supply.Decimal) {
			found = true
		}
	}
	assert.True(t, found, "supply sample missing")
	assert.Len(t, points, 52)
	assert.True(t, points[len(points)-1].Supply.Equal(dec("100")))
}

func TestGenerateCurveData_ScalesWithSupply(t *testing.T) {
	c := newTestCurve(t)

	points := c.CurveData(units.SharesFromInt(400))
	require.Len(t, points, 51)
	assert.True(t, points[len(points)-1].Supply.Equal(dec("800")))
	assert.True(t, points[25].Supply.Equal(dec("400")))
}

func TestGenerateCurveData_Monotonic(t *testing.T) {
	c := newTestCurve(t)

	points := c.CurveData(shares("1234.567"))
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Supply.GreaterThan(points[i-1].Supply.Decimal), "supply not increasing at %d", i)
		assert.True(t, points[i].Price.GreaterThanOrEqual(points[i-1].Price.Decimal), "price decreasing at %d", i)
	}
}

func TestGenerateCurveData_Restartable(t *testing.T) {
	c := newTestCurve(t)

	seq := c.GenerateCurveData(units.SharesFromInt(500))
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, first, second)
	assert.Positive(t, first)
}

func TestGenerateCurveData_EarlyStop(t *testing.T) {
	c := newTestCurve(t)

	n := 0
	for range c.GenerateCurveData(units.SharesFromInt(500)) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestGenerateCurveData_ZeroSupplyIsStrictlyIncreasing(t *testing.T) {
	c := newTestCurve(t)

	points := c.CurveData(units.ZeroShares())

	require.Len(t, points, 51)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Supply.GreaterThan(points[i-1].Supply.Decimal),
			"sample %d (%s) not above sample %d (%s)", i, points[i].Supply, i-1, points[i-1].Supply)
	}
}
