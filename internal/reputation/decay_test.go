package reputation

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	c, err := curve.New(curve.DefaultConfig())
	require.NoError(t, err)
	e, err := NewEngine(DefaultConfig(), c)
	require.NoError(t, err)
	return e
}

func deposit(side ledger.Side, amount int64, ago time.Duration) ledger.Signal {
	return ledger.Signal{
		Timestamp: testNow.Add(-ago),
		Side:      side,
		Amount:    units.AmountFromInt(amount),
		Shares:    units.SharesFromInt(amount),
		IsDeposit: true,
	}
}

func redeem(side ledger.Side, amount int64, ago time.Duration) ledger.Signal {
	s := deposit(side, amount, ago)
	s.IsDeposit = false
	return s
}

func weightedTrust(t *testing.T, e *Engine, signals []ledger.Signal) WeightedTrustResult {
	t.Helper()
	got, err := e.CalculateWeightedTrust(signals, testNow)
	require.NoError(t, err)
	return got
}

func TestCalculateWeightedTrust_EmptyIsNeutral(t *testing.T) {
	e := newTestEngine(t)

	got := weightedTrust(t, e, nil)

	assert.Equal(t, WeightedTrustResult{WeightedRatio: 50, RawRatio: 50}, got)
	assert.False(t, got.HasData)
}

func TestCalculateWeightedTrust_ZeroAgeHasNoDecay(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{
		deposit(ledger.SideSupport, 300, 0),
		deposit(ledger.SideOppose, 125, 0),
		redeem(ledger.SideSupport, 40, 0),
	}
	got := weightedTrust(t, e, signals)

	assert.Equal(t, got.RawRatio, got.WeightedRatio)
	assert.Equal(t, 0.0, got.DecayImpact)
	assert.Equal(t, 3, got.FreshSignalsCount)
	assert.Equal(t, 3, got.TotalSignalsCount)
	assert.True(t, got.HasData)
}

func TestCalculateWeightedTrust_RecentSupportOutweighsOldOpposition(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{
		deposit(ledger.SideOppose, 100, 90*day),
		deposit(ledger.SideSupport, 100, time.Hour),
	}
	got := weightedTrust(t, e, signals)

	assert.InDelta(t, 50, got.RawRatio, 1e-9)
	assert.Greater(t, got.WeightedRatio, got.RawRatio)
	assert.Greater(t, got.DecayImpact, 0.0)
	assert.Equal(t, 1, got.FreshSignalsCount)

	// support weight exp(-1h/30d), oppose weight exp(-90d/30d)
	ws := 100 * math.Exp(-1.0/(30*24))
	wo := 100 * math.Exp(-3.0)
	assert.InDelta(t, 100*ws/(ws+wo), got.WeightedRatio, 1e-3)
}

func TestCalculateWeightedTrust_RedemptionsSubtract(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{
		deposit(ledger.SideSupport, 200, 2*day),
		redeem(ledger.SideSupport, 100, 2*day),
		deposit(ledger.SideOppose, 100, 2*day),
	}
	got := weightedTrust(t, e, signals)

	assert.InDelta(t, 50, got.RawRatio, 1e-9)
	assert.InDelta(t, 50, got.WeightedRatio, 1e-9)
}

func TestCalculateWeightedTrust_FullyRedeemedIsNeutral(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{
		deposit(ledger.SideSupport, 50, 3*day),
		redeem(ledger.SideSupport, 80, day),
	}
	got := weightedTrust(t, e, signals)

	assert.Equal(t, NeutralRatio, got.RawRatio)
	assert.True(t, got.HasData)
}

func TestCalculateWeightedTrust_FutureSignalsCountAsFresh(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{deposit(ledger.SideSupport, 10, -time.Hour)}
	got := weightedTrust(t, e, signals)

	assert.Equal(t, 100.0, got.WeightedRatio)
	assert.Equal(t, 1, got.FreshSignalsCount)
}

func TestCalculateWeightedTrust_RatiosBounded(t *testing.T) {
	e := newTestEngine(t)

	signals := []ledger.Signal{
		deposit(ledger.SideOppose, 1000, day),
		redeem(ledger.SideSupport, 500, day),
	}
	got := weightedTrust(t, e, signals)

	assert.GreaterOrEqual(t, got.WeightedRatio, 0.0)
	assert.LessOrEqual(t, got.WeightedRatio, 100.0)
	assert.Equal(t, 0.0, got.RawRatio)
}

func TestCalculateWeightedTrust_RejectsNegativeAmounts(t *testing.T) {
	e := newTestEngine(t)

	negative := deposit(ledger.SideSupport, 100, day)
	negative.Amount = units.NewAmount(negative.Amount.Neg())

	tests := []struct {
		name    string
		signals []ledger.Signal
	}{
		{"lone negative deposit", []ledger.Signal{negative}},
		{"negative among valid", []ledger.Signal{deposit(ledger.SideOppose, 20, day), negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CalculateWeightedTrust(tt.signals, testNow)
			assert.ErrorIs(t, err, units.ErrInvalidAmount)
			assert.False(t, got.HasData)
		})
	}
}

func TestCalculateWeightedTrust_DecimalWeights(t *testing.T) {
	e := newTestEngine(t)

	// one half life apart: weights 1 and e^-1
	signals := []ledger.Signal{
		deposit(ledger.SideSupport, 100, 0),
		deposit(ledger.SideOppose, 100, 30*day),
	}
	got := weightedTrust(t, e, signals)

	w := units.ExpNeg(decimal.NewFromInt(1))
	hundred := decimal.NewFromInt(100)
	want := units.Div(hundred.Mul(hundred), hundred.Add(hundred.Mul(w)))
	assert.Equal(t, units.Score(want), got.WeightedRatio)
	assert.Equal(t, 73.1059, got.WeightedRatio)
}
