package exitguard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(DefaultConfig())
	require.NoError(t, err)
	return g
}

func sh(n int64) units.Shares { return units.SharesFromInt(n) }

func maxDailySell(t *testing.T, g *Guard, user, supply units.Shares) ExitLimit {
	t.Helper()
	got, err := g.GetMaxDailySell(user, supply)
	require.NoError(t, err)
	return got
}

func TestGetMaxDailySell(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name    string
		user    int64
		supply  int64
		limited bool
		maxSell int64
		percent float64
	}{
		{"small position", 10, 10000, false, 10, 100},
		{"exactly at whale threshold", 500, 10000, false, 500, 100},
		{"position fraction binds", 600, 10000, true, 150, 25},
		{"supply fraction binds", 1000, 10000, true, 200, 20},
		{"majority holder", 6000, 10000, true, 200, 3.3333},
		{"zero supply", 10, 0, false, 10, 100},
		{"zero position", 0, 10000, false, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maxDailySell(t, g, sh(tt.user), sh(tt.supply))
			assert.Equal(t, tt.limited, got.IsLimited)
			assert.True(t, got.MaxSellShares.Equal(decimal.NewFromInt(tt.maxSell)), "max sell = %s", got.MaxSellShares)
			assert.InDelta(t, tt.percent, got.MaxSellPercent, 1e-4)
			if tt.limited {
				assert.NotEmpty(t, got.Reason)
			} else {
				assert.Empty(t, got.Reason)
			}
		})
	}
}

func TestGetMaxDailySell_Reason(t *testing.T) {
	g := newTestGuard(t)

	got := maxDailySell(t, g, sh(1000), sh(10000))
	assert.Contains(t, got.Reason, "10.00% of supply")
	assert.Contains(t, got.Reason, "5% limit")
	assert.Contains(t, got.Reason, "200.0000 shares")
}

func TestGetMaxDailySell_NeverExceedsPosition(t *testing.T) {
	g := newTestGuard(t)

	for _, user := range []int64{1, 51, 499, 501, 2500, 9999, 10000} {
		got := maxDailySell(t, g, sh(user), sh(10000))
		assert.True(t, got.MaxSellShares.LessThanOrEqual(decimal.NewFromInt(user)), "user %d", user)
	}
}

func TestGetMaxDailySell_RejectsNegative(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name   string
		user   int64
		supply int64
	}{
		{"negative position", -10, 10000},
		{"negative supply", 10, -10000},
		{"negative position with zero supply", -1, 0},
		{"both negative", -5, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.GetMaxDailySell(sh(tt.user), sh(tt.supply))
			assert.ErrorIs(t, err, units.ErrInvalidAmount)
			assert.Equal(t, ExitLimit{}, got)
		})
	}
}

func TestRemainingDailySell(t *testing.T) {
	g := newTestGuard(t)
	limit := maxDailySell(t, g, sh(1000), sh(10000))
	require.True(t, limit.IsLimited)

	assert.True(t, RemainingDailySell(limit, sh(0)).Equal(decimal.NewFromInt(200)))
	assert.True(t, RemainingDailySell(limit, sh(50)).Equal(decimal.NewFromInt(150)))
	assert.True(t, RemainingDailySell(limit, sh(300)).IsZero())

	free := maxDailySell(t, g, sh(10), sh(10000))
	assert.True(t, RemainingDailySell(free, sh(5)).Equal(decimal.NewFromInt(10)))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WhaleThreshold = decimal.Zero
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxSupplyFraction = decimal.NewFromInt(2)
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigValidate_ReportsFirstFieldInOrder(t *testing.T) {
	cfg := Config{
		WhaleThreshold:      decimal.Zero,
		MaxPositionFraction: decimal.NewFromInt(-1),
		MaxSupplyFraction:   decimal.NewFromInt(3),
	}
	for range 20 {
		err := cfg.Validate()
		require.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), "whale_threshold")
	}

	cfg.WhaleThreshold = decimal.RequireFromString("0.05")
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max_position_fraction")
}

func TestSellReasons(t *testing.T) {
	tests := []struct {
		reason SellReason
		impact float64
	}{
		{ReasonProfitTaking, 0.1},
		{ReasonRebalancing, 0.2},
		{ReasonLiquidityNeed, 0.15},
		{ReasonNewInformation, 0.7},
		{ReasonLostConfidence, 1.0},
		{ReasonOther, 0.5},
		{SellReason("boredom"), 0.5},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			c := GetSellReasonConfig(tt.reason)
			assert.Equal(t, tt.impact, c.TrustImpact)
			assert.NotEmpty(t, c.Description)
		})
	}

	prev := -1.0
	for _, r := range SellReasons() {
		impact := GetSellReasonConfig(r).TrustImpact
		assert.GreaterOrEqual(t, impact, prev, "reasons out of order at %s", r)
		prev = impact
	}
}

func TestParseSellReason(t *testing.T) {
	r, err := ParseSellReason(" Lost_Confidence ")
	require.NoError(t, err)
	assert.Equal(t, ReasonLostConfidence, r)

	_, err = ParseSellReason("boredom")
	assert.ErrorIs(t, err, ErrUnknownSellReason)
}

func TestGetLoyaltyMultiplier(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name       string
		since      time.Time
		label      string
		days       int
		multiplier float64
	}{
		{"just staked", now.Add(-time.Hour), "New", 0, 1.0},
		{"six days", now.Add(-6 * day), "New", 6, 1.0},
		{"one week", now.Add(-7 * day), "Committed", 7, 1.1},
		{"two months", now.Add(-60 * day), "Loyal", 60, 1.25},
		{"five months", now.Add(-150 * day), "Veteran", 150, 1.5},
		{"half a year", now.Add(-180 * day), "Diamond Hands", 180, 2.0},
		{"future", now.Add(day), "New", 0, 1.0},
		{"unknown", time.Time{}, "New", 0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetLoyaltyMultiplier(tt.since, now)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.days, got.DaysStaked)
			assert.Equal(t, tt.multiplier, got.Multiplier)
			assert.NotEmpty(t, got.Color)
		})
	}
}
