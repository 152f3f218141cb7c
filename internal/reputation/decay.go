// Package reputation turns a claim's stake history into a time-weighted
// signal ratio and blends it with staker diversity, stability and price
// retention into the composite trust score.
package reputation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// DecayConfig controls how quickly old signals lose weight.
type DecayConfig struct {
	// HalfLife is the decay constant in w(age) = exp(-age/HalfLife).
	HalfLife        time.Duration `yaml:"half_life"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
}

func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		HalfLife:        30 * 24 * time.Hour,
		FreshnessWindow: 7 * 24 * time.Hour,
	}
}

func (c DecayConfig) Validate() error {
	if c.HalfLife <= 0 {
		return fmt.Errorf("%w: decay half life must be positive", ErrInvalidConfig)
	}
	if c.FreshnessWindow < 0 {
		return fmt.Errorf("%w: freshness window must not be negative", ErrInvalidConfig)
	}
	return nil
}

// WeightedTrustResult compares the decayed support ratio with the all-time one.
// HasData is false for an empty history; the ratios are then the neutral 50
// and must be read as "unknown", not as a middling score.
type WeightedTrustResult struct {
	WeightedRatio     float64 `json:"weighted_ratio"`
	RawRatio          float64 `json:"raw_ratio"`
	DecayImpact       float64 `json:"decay_impact"`
	FreshSignalsCount int     `json:"fresh_signals_count"`
	TotalSignalsCount int     `json:"total_signals_count"`
	HasData           bool    `json:"has_data"`
}

// NeutralRatio is reported when there is no net stake on either side.
const NeutralRatio = 50.0

// CalculateWeightedTrust weights every deposit (+amount) and redemption
// (-amount) by its age relative to now and returns the support share of the
// weighted total. Signals dated after now count as age zero. A signal with a
// negative amount is rejected with units.ErrInvalidAmount.
func (e *Engine) CalculateWeightedTrust(signals []ledger.Signal, now time.Time) (WeightedTrustResult, error) {
	if err := ledger.ValidateSignals(signals); err != nil {
		return WeightedTrustResult{}, err
	}
	if len(signals) == 0 {
		return WeightedTrustResult{WeightedRatio: NeutralRatio, RawRatio: NeutralRatio}, nil
	}

	halfLife := decimal.NewFromInt(e.cfg.Decay.HalfLife.Nanoseconds())
	decayed := sideSums(signals, func(age time.Duration) decimal.Decimal {
		return units.ExpNeg(units.Div(decimal.NewFromInt(age.Nanoseconds()), halfLife))
	}, now)
	raw := sideSums(signals, func(time.Duration) decimal.Decimal { return decimal.NewFromInt(1) }, now)

	fresh := 0
	for _, s := range signals {
		if age(s, now) <= e.cfg.Decay.FreshnessWindow {
			fresh++
		}
	}

	weighted := decayed.ratio()
	rawRatio := raw.ratio()
	return WeightedTrustResult{
		WeightedRatio:     units.Score(weighted),
		RawRatio:          units.Score(rawRatio),
		DecayImpact:       units.Score(weighted.Sub(rawRatio)),
		FreshSignalsCount: fresh,
		TotalSignalsCount: len(signals),
		HasData:           true,
	}, nil
}

type sums struct {
	support decimal.Decimal
	oppose  decimal.Decimal
}

func (s sums) ratio() decimal.Decimal {
	support := decimal.Max(s.support, decimal.Zero)
	oppose := decimal.Max(s.oppose, decimal.Zero)
	total := support.Add(oppose)
	if !total.IsPositive() {
		return decimal.NewFromFloat(NeutralRatio)
	}
	// support <= total, so the ratio is already within [0, 100]
	return units.Div(support.Shift(2), total)
}

func sideSums(signals []ledger.Signal, weight func(time.Duration) decimal.Decimal, now time.Time) sums {
	out := sums{support: decimal.Zero, oppose: decimal.Zero}
	for _, s := range signals {
		v := s.Amount.Mul(weight(age(s, now)))
		if !s.IsDeposit {
			v = v.Neg()
		}
		if s.Side == ledger.SideOppose {
			out.oppose = out.oppose.Add(v)
		} else {
			out.support = out.support.Add(v)
		}
	}
	return out
}

func age(s ledger.Signal, now time.Time) time.Duration {
	a := now.Sub(s.Timestamp)
	if a < 0 {
		return 0
	}
	return a
}
