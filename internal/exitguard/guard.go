// Package exitguard bounds how much of a large position can be sold per day
// and classifies declared sell reasons and holding periods.
package exitguard

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

var ErrInvalidConfig = errors.New("invalid exit guard config")

// Config holds the anti-dump fractions. All are in (0, 1].
type Config struct {
	// WhaleThreshold is the share of supply above which a position is limited.
	WhaleThreshold decimal.Decimal `yaml:"whale_threshold"`
	// MaxPositionFraction caps a daily sell relative to the seller's position.
	MaxPositionFraction decimal.Decimal `yaml:"max_position_fraction"`
	// MaxSupplyFraction caps a daily sell relative to the pool supply.
	MaxSupplyFraction decimal.Decimal `yaml:"max_supply_fraction"`
}

func DefaultConfig() Config {
	return Config{
		WhaleThreshold:      decimal.RequireFromString("0.05"),
		MaxPositionFraction: decimal.RequireFromString("0.25"),
		MaxSupplyFraction:   decimal.RequireFromString("0.02"),
	}
}

func (c Config) Validate() error {
	one := decimal.NewFromInt(1)
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"whale_threshold", c.WhaleThreshold},
		{"max_position_fraction", c.MaxPositionFraction},
		{"max_supply_fraction", c.MaxSupplyFraction},
	} {
		if !f.v.IsPositive() || f.v.GreaterThan(one) {
			return fmt.Errorf("%w: %s must be in (0, 1], got %s", ErrInvalidConfig, f.name, f.v)
		}
	}
	return nil
}

// Guard computes exit limits. It is stateless apart from its configuration.
type Guard struct {
	cfg Config
}

func New(cfg Config) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Guard{cfg: cfg}, nil
}

// ExitLimit is the daily sell allowance of one position.
type ExitLimit struct {
	IsLimited      bool         `json:"is_limited"`
	MaxSellShares  units.Shares `json:"max_sell_shares"`
	MaxSellPercent float64      `json:"max_sell_percent"`
	Reason         string       `json:"reason,omitempty"`
}

// GetMaxDailySell returns the allowance for userShares out of totalSupply.
// Positions at or below the whale threshold may exit in full. Negative
// quantities are rejected with units.ErrInvalidAmount.
func (g *Guard) GetMaxDailySell(userShares, totalSupply units.Shares) (ExitLimit, error) {
	if err := units.CheckNonNegative("user shares", userShares.Decimal); err != nil {
		return ExitLimit{}, err
	}
	if err := units.CheckNonNegative("total supply", totalSupply.Decimal); err != nil {
		return ExitLimit{}, err
	}

	unlimited := ExitLimit{MaxSellShares: userShares, MaxSellPercent: 100}
	if userShares.IsZero() || totalSupply.IsZero() {
		return unlimited, nil
	}

	ownership := units.Div(userShares.Decimal, totalSupply.Decimal)
	if ownership.LessThanOrEqual(g.cfg.WhaleThreshold) {
		return unlimited, nil
	}

	byPosition := userShares.Mul(g.cfg.MaxPositionFraction)
	bySupply := totalSupply.Mul(g.cfg.MaxSupplyFraction)
	capShares := decimal.Min(byPosition, bySupply)
	if capShares.GreaterThanOrEqual(userShares.Decimal) {
		return unlimited, nil
	}

	percent := units.Div(capShares, userShares.Decimal).Shift(2)
	return ExitLimit{
		IsLimited:      true,
		MaxSellShares:  units.NewShares(capShares),
		MaxSellPercent: units.Score(percent),
		Reason: fmt.Sprintf("position holds %s%% of supply, above the %s%% limit; daily sells are capped at %s shares",
			ownership.Shift(2).StringFixed(2), g.cfg.WhaleThreshold.Shift(2).String(), capShares.StringFixed(4)),
	}, nil
}

// RemainingDailySell subtracts what was already sold in the rolling day from
// a limit. Unlimited positions keep their full allowance.
func RemainingDailySell(limit ExitLimit, soldInWindow units.Shares) units.Shares {
	if !limit.IsLimited {
		return limit.MaxSellShares
	}
	left := limit.MaxSellShares.Sub(soldInWindow.Decimal)
	if left.IsNegative() {
		return units.ZeroShares()
	}
	return units.NewShares(left)
}
