// Package tier classifies a claim into a display tier. A tier is reached only
// when every dimension (stakers, stake, trust ratio, age) clears its gate, so
// no single dimension can be inflated to skip ahead.
package tier

import (
	"errors"
	"fmt"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

var ErrInvalidConfig = errors.New("invalid tier config")

// Tier is ordinal: a higher value is a better tier.
type Tier int

const (
	Unranked Tier = iota
	Bronze
	Silver
	Gold
	Diamond
)

var names = [...]string{"unranked", "bronze", "silver", "gold", "diamond"}

func (t Tier) String() string {
	if t < Unranked || t > Diamond {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return names[t]
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Gate holds the minimums for one tier.
type Gate struct {
	Stakers int          `yaml:"stakers"`
	Stake   units.Amount `yaml:"stake"`
	Ratio   float64      `yaml:"ratio"`
	AgeDays int          `yaml:"age_days"`
}

// Config lists the gates from lowest to highest tier.
type Config struct {
	Bronze  Gate `yaml:"bronze"`
	Silver  Gate `yaml:"silver"`
	Gold    Gate `yaml:"gold"`
	Diamond Gate `yaml:"diamond"`
}

func DefaultConfig() Config {
	return Config{
		Bronze:  Gate{Stakers: 3, Stake: units.AmountFromInt(10), Ratio: 50, AgeDays: 1},
		Silver:  Gate{Stakers: 10, Stake: units.AmountFromInt(100), Ratio: 60, AgeDays: 7},
		Gold:    Gate{Stakers: 25, Stake: units.AmountFromInt(1000), Ratio: 70, AgeDays: 30},
		Diamond: Gate{Stakers: 100, Stake: units.AmountFromInt(10000), Ratio: 80, AgeDays: 90},
	}
}

// Validate requires non-negative gates that never decrease from one tier to the next.
func (c Config) Validate() error {
	var prev Gate
	prev.Stake = units.ZeroAmount()
	for i, g := range c.gates() {
		t := Tier(i + 1)
		if g.Stakers < 0 || g.Stake.IsNegative() || g.AgeDays < 0 || g.Ratio < 0 || g.Ratio > 100 {
			return fmt.Errorf("%w: %s gate out of range: %+v", ErrInvalidConfig, t, g)
		}
		if g.Stakers < prev.Stakers || g.Stake.LessThan(prev.Stake.Decimal) || g.Ratio < prev.Ratio || g.AgeDays < prev.AgeDays {
			return fmt.Errorf("%w: %s gate is below the previous tier", ErrInvalidConfig, t)
		}
		prev = g
	}
	return nil
}

func (c Config) gates() []Gate {
	return []Gate{c.Bronze, c.Silver, c.Gold, c.Diamond}
}

// Input is the snapshot of a claim that tiers are assessed on.
type Input struct {
	Stakers    int
	TotalStake units.Amount
	// TrustRatio is the weighted signal ratio in [0, 100].
	TrustRatio float64
	AgeDays    int
}

// Classifier assigns tiers against a fixed set of gates.
type Classifier struct {
	gates []Gate
}

func New(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{gates: cfg.gates()}, nil
}

// Assessment is a tier together with the progress toward the next one.
type Assessment struct {
	Tier     Tier    `json:"tier"`
	Next     Tier    `json:"next_tier"`
	Progress float64 `json:"progress"`
	// Limiting names the dimension holding progress back; empty at the top tier.
	Limiting string `json:"limiting,omitempty"`
}

// CalculateTier returns the highest tier whose gate every dimension clears.
func (c *Classifier) CalculateTier(in Input) Tier {
	best := Unranked
	for i, g := range c.gates {
		if !meets(in, g) {
			break
		}
		best = Tier(i + 1)
	}
	return best
}

// CalculateTierProgress returns progress in [0, 1] toward the next tier. It is
// the smallest per-dimension fraction of the way from the current gate to the
// next one. The top tier reports 1.
func (c *Classifier) CalculateTierProgress(in Input) float64 {
	return c.Assess(in).Progress
}

// Assess combines CalculateTier and CalculateTierProgress.
func (c *Classifier) Assess(in Input) Assessment {
	current := c.CalculateTier(in)
	if current == Diamond {
		return Assessment{Tier: current, Next: current, Progress: 1}
	}

	from := Gate{Stake: units.ZeroAmount()}
	if current > Unranked {
		from = c.gates[current-1]
	}
	to := c.gates[current]

	dims := []struct {
		name string
		frac float64
	}{
		{"stakers", fraction(float64(in.Stakers), float64(from.Stakers), float64(to.Stakers))},
		{"stake", fraction(in.TotalStake.InexactFloat64(), from.Stake.InexactFloat64(), to.Stake.InexactFloat64())},
		{"ratio", fraction(in.TrustRatio, from.Ratio, to.Ratio)},
		{"age", fraction(float64(in.AgeDays), float64(from.AgeDays), float64(to.AgeDays))},
	}

	weakest := dims[0]
	for _, d := range dims[1:] {
		if d.frac < weakest.frac {
			weakest = d
		}
	}
	return Assessment{
		Tier:     current,
		Next:     current + 1,
		Progress: units.RoundScore(weakest.frac),
		Limiting: weakest.name,
	}
}

func meets(in Input, g Gate) bool {
	return in.Stakers >= g.Stakers &&
		!in.TotalStake.LessThan(g.Stake.Decimal) &&
		in.TrustRatio >= g.Ratio &&
		in.AgeDays >= g.AgeDays
}

// fraction is the position of v between lo and hi, clamped to [0, 1]. A gate
// that does not rise over the previous one is already met.
func fraction(v, lo, hi float64) float64 {
	if hi <= lo {
		return 1
	}
	return units.Clamp((v-lo)/(hi-lo), 0, 1)
}
