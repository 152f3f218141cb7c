// Package curve prices claim shares on a linear bonding curve and quotes
// buys and sells against a vault's current supply.
//
// price(supply) = basePrice + slope * supply
//
// Every quantity is a decimal at units.Scale, so identical inputs produce
// identical quotes in every process.
package curve

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

var (
	// ErrInvalidConfig is returned by New when the curve parameters are out of range.
	ErrInvalidConfig = errors.New("invalid curve config")

	// ErrNegativeAmount is returned when a trade size or supply is negative.
	ErrNegativeAmount = errors.New("negative amount")
)

var (
	two  = decimal.NewFromInt(2)
	half = decimal.NewFromFloat(0.5)
)

// Config holds the curve parameters and the chart sampling window.
type Config struct {
	BasePrice units.Price     `yaml:"base_price"`
	Slope     decimal.Decimal `yaml:"slope"`
	FeeRate   decimal.Decimal `yaml:"fee_rate"`

	// Chart sampling: [0, max(supply*WindowFactor, MinWindow)] in Steps intervals.
	Steps        int             `yaml:"chart_steps"`
	WindowFactor decimal.Decimal `yaml:"chart_window_factor"`
	MinWindow    units.Shares    `yaml:"chart_min_window"`
}

// DefaultConfig returns the marketplace's production curve.
func DefaultConfig() Config {
	return Config{
		BasePrice:    units.NewPrice(decimal.RequireFromString("0.01")),
		Slope:        decimal.RequireFromString("0.0001"),
		FeeRate:      decimal.RequireFromString("0.05"),
		Steps:        50,
		WindowFactor: decimal.NewFromInt(2),
		MinWindow:    units.SharesFromInt(100),
	}
}

// Validate checks the curve invariants.
func (c Config) Validate() error {
	if !c.BasePrice.IsPositive() {
		return fmt.Errorf("%w: base price must be positive, got %s", ErrInvalidConfig, c.BasePrice)
	}
	if !c.Slope.IsPositive() {
		return fmt.Errorf("%w: slope must be positive, got %s", ErrInvalidConfig, c.Slope)
	}
	if c.FeeRate.IsNegative() || c.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: fee rate must be in [0, 1), got %s", ErrInvalidConfig, c.FeeRate)
	}
	if c.Steps < 1 {
		return fmt.Errorf("%w: chart steps must be at least 1, got %d", ErrInvalidConfig, c.Steps)
	}
	if c.WindowFactor.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: chart window factor must be >= 1, got %s", ErrInvalidConfig, c.WindowFactor)
	}
	if !c.MinWindow.IsPositive() {
		return fmt.Errorf("%w: chart min window must be positive, got %s", ErrInvalidConfig, c.MinWindow)
	}
	return nil
}

// Curve is an immutable, validated bonding curve. It is safe for concurrent use.
type Curve struct {
	cfg Config
}

// New validates cfg and returns a curve.
func New(cfg Config) (*Curve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Curve{cfg: cfg}, nil
}

// Config returns the curve parameters.
func (c *Curve) Config() Config { return c.cfg }

// Price returns the marginal share price at supply.
func (c *Curve) Price(supply units.Shares) units.Price {
	return PriceAt(c.cfg.BasePrice, c.cfg.Slope, supply)
}

// PriceAt evaluates a linear curve without a validated Curve value.
func PriceAt(basePrice units.Price, slope decimal.Decimal, supply units.Shares) units.Price {
	return units.NewPrice(basePrice.Add(slope.Mul(supply.Decimal)))
}

// BuyPreview is the quote for tendering an amount of asset into a vault.
type BuyPreview struct {
	SharesReceived   units.Shares `json:"shares_received"`
	Fee              units.Amount `json:"fee"`
	AvgPricePerShare units.Price  `json:"avg_price_per_share"`
	NewPrice         units.Price  `json:"new_price"`
}

// SellPreview is the quote for redeeming shares from a vault.
type SellPreview struct {
	SharesSold    units.Shares `json:"shares_sold"`
	GrossProceeds units.Amount `json:"gross_proceeds"`
	Fee           units.Amount `json:"fee"`
	NetProceeds   units.Amount `json:"net_proceeds"`
	NewPrice      units.Price  `json:"new_price"`
}

// CalculateBuy quotes a buy of amountIn at the given supply. The fee is taken
// off the top and the remainder is spent along the curve: the shares received
// are the positive root of slope/2*d^2 + price(supply)*d - net = 0.
func (c *Curve) CalculateBuy(amountIn units.Amount, supply units.Shares) (BuyPreview, error) {
	if amountIn.IsNegative() {
		return BuyPreview{}, fmt.Errorf("%w: buy amount %s", ErrNegativeAmount, amountIn)
	}
	if supply.IsNegative() {
		return BuyPreview{}, fmt.Errorf("%w: supply %s", ErrNegativeAmount, supply)
	}

	fee := units.NewAmount(amountIn.Mul(c.cfg.FeeRate))
	net := amountIn.Sub(fee.Decimal)
	p := c.Price(supply)

	if !net.IsPositive() {
		return BuyPreview{
			SharesReceived:   units.ZeroShares(),
			Fee:              fee,
			AvgPricePerShare: c.cfg.BasePrice,
			NewPrice:         p,
		}, nil
	}

	// d = 2*net / (p + sqrt(p^2 + 2*slope*net)) avoids the cancellation in
	// the textbook (-p + sqrt(...)) / slope form when slope*net is small.
	disc := p.Mul(p.Decimal).Add(two.Mul(c.cfg.Slope).Mul(net))
	denom := p.Add(sqrt(disc))
	delta := units.NewShares(units.Div(two.Mul(net), denom))

	if delta.IsZero() {
		return BuyPreview{
			SharesReceived:   delta,
			Fee:              fee,
			AvgPricePerShare: c.cfg.BasePrice,
			NewPrice:         p,
		}, nil
	}

	return BuyPreview{
		SharesReceived:   delta,
		Fee:              fee,
		AvgPricePerShare: units.NewPrice(units.Div(net, delta.Decimal)),
		NewPrice:         c.Price(units.NewShares(supply.Add(delta.Decimal))),
	}, nil
}

// CalculateSell quotes redeeming sharesIn at the given supply. Sizes above
// the supply are clamped to it so the curve never goes below zero.
func (c *Curve) CalculateSell(sharesIn, supply units.Shares) (SellPreview, error) {
	if sharesIn.IsNegative() {
		return SellPreview{}, fmt.Errorf("%w: sell shares %s", ErrNegativeAmount, sharesIn)
	}
	if supply.IsNegative() {
		return SellPreview{}, fmt.Errorf("%w: supply %s", ErrNegativeAmount, supply)
	}

	sold := sharesIn
	if sold.GreaterThan(supply.Decimal) {
		sold = supply
	}

	remaining := units.NewShares(supply.Sub(sold.Decimal))
	before := c.Price(supply)
	after := c.Price(remaining)

	gross := units.NewAmount(before.Add(after.Decimal).Mul(half).Mul(sold.Decimal))
	fee := units.NewAmount(gross.Mul(c.cfg.FeeRate))

	return SellPreview{
		SharesSold:    sold,
		GrossProceeds: gross,
		Fee:           fee,
		NetProceeds:   units.NewAmount(gross.Sub(fee.Decimal)),
		NewPrice:      after,
	}, nil
}

// GetSellProceeds values a position at the current supply without implying a
// trade. It is CalculateSell's net proceeds.
func (c *Curve) GetSellProceeds(shares, supply units.Shares) (units.Amount, error) {
	preview, err := c.CalculateSell(shares, supply)
	if err != nil {
		return units.Amount{}, err
	}
	return preview.NetProceeds, nil
}

const sqrtPrecision = 2 * units.Scale

// sqrt is a Newton iteration on decimals seeded from the float64 root. The
// seed is only a starting point; the result depends on decimal arithmetic.
func sqrt(x decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() {
		return decimal.Zero
	}
	z := decimal.NewFromFloat(sqrtSeed(x))
	if !z.IsPositive() {
		z = x
	}
	for i := 0; i < 100; i++ {
		next := z.Add(x.DivRound(z, sqrtPrecision)).DivRound(two, sqrtPrecision)
		if next.Equal(z) {
			break
		}
		z = next
	}
	return z.Truncate(units.Scale)
}

func sqrtSeed(x decimal.Decimal) float64 {
	return math.Sqrt(x.InexactFloat64())
}
