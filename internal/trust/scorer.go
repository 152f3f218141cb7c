package trust

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// ErrInvalidConfig is returned by NewEngine for out-of-range parameters.
var ErrInvalidConfig = errors.New("invalid trust config")

// NeutralScore is reported when no stake exists on either side.
const NeutralScore = 50.0

// Level is the display band of a trust score.
type Level string

const (
	LevelCritical  Level = "critical"
	LevelLow       Level = "low"
	LevelModerate  Level = "moderate"
	LevelGood      Level = "good"
	LevelExcellent Level = "excellent"
)

// Bands are the lower score bounds of each level above critical.
type Bands struct {
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
	Moderate  float64 `yaml:"moderate"`
	Low       float64 `yaml:"low"`
}

// Config parameterises the stake-ratio scorer.
type Config struct {
	Bands Bands `yaml:"bands"`
	// ConfidenceScale is the total stake at which confidence reaches 1-1/e.
	ConfidenceScale decimal.Decimal `yaml:"confidence_scale"`
	MomentumWindow  time.Duration   `yaml:"momentum_window"`
}

func DefaultConfig() Config {
	return Config{
		Bands:           Bands{Excellent: 80, Good: 60, Moderate: 40, Low: 20},
		ConfidenceScale: decimal.NewFromInt(1000),
		MomentumWindow:  24 * time.Hour,
	}
}

// Validate checks the band ordering and scales.
func (c Config) Validate() error {
	b := c.Bands
	if !(b.Low > 0 && b.Low < b.Moderate && b.Moderate < b.Good && b.Good < b.Excellent && b.Excellent <= 100) {
		return fmt.Errorf("%w: bands must satisfy 0 < low < moderate < good < excellent <= 100, got %+v", ErrInvalidConfig, b)
	}
	if !c.ConfidenceScale.IsPositive() {
		return fmt.Errorf("%w: confidence scale must be positive", ErrInvalidConfig)
	}
	if c.MomentumWindow <= 0 {
		return fmt.Errorf("%w: momentum window must be positive", ErrInvalidConfig)
	}
	return nil
}

// Result is the simple stake-ratio trust reading of a claim.
type Result struct {
	Score        float64         `json:"score"`
	Level        Level           `json:"level"`
	Confidence   float64         `json:"confidence"`
	Momentum     float64         `json:"momentum"`
	SupportStake units.Amount    `json:"support_stake"`
	OpposeStake  units.Amount    `json:"oppose_stake"`
	NetStake     decimal.Decimal `json:"net_stake"`
	TotalStake   units.Amount    `json:"total_stake"`
}

// Engine scores raw support/oppose stake totals. It is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// CalculateTrustScoreFromStakes scores aggregate stake sums.
//
// score = 50 + 50 * (support - oppose) / (support + oppose), or 50 with no stake.
// Momentum is zero because no history is available. Negative stakes are
// rejected with units.ErrInvalidAmount.
func (e *Engine) CalculateTrustScoreFromStakes(support, oppose units.Amount) (Result, error) {
	if err := units.CheckNonNegative("support stake", support.Decimal); err != nil {
		return Result{}, err
	}
	if err := units.CheckNonNegative("oppose stake", oppose.Decimal); err != nil {
		return Result{}, err
	}
	return e.fromStakes(support, oppose), nil
}

// CalculateTrustScoreFromHistory derives the stake totals from the signed
// signal history and reports momentum as the score change over the trailing
// MomentumWindow. Momentum is zero when fewer than two signals exist or none
// predates the window.
func (e *Engine) CalculateTrustScoreFromHistory(signals []ledger.Signal, now time.Time) (Result, error) {
	if err := ledger.ValidateSignals(signals); err != nil {
		return Result{}, err
	}
	support, oppose := netStakes(signals, now)
	res := e.fromStakes(support, oppose)

	windowStart := now.Add(-e.cfg.MomentumWindow)
	if len(signals) < 2 || !anyAtOrBefore(signals, windowStart) {
		return res, nil
	}

	prevSupport, prevOppose := netStakes(signals, windowStart)
	res.Momentum = units.Score(ratioScore(support, oppose).Sub(ratioScore(prevSupport, prevOppose)))
	return res, nil
}

func (e *Engine) fromStakes(support, oppose units.Amount) Result {
	total := support.Add(oppose.Decimal)
	score := units.Score(ratioScore(support, oppose))

	return Result{
		Score:        score,
		Level:        e.LevelFor(score),
		Confidence:   e.confidence(total),
		SupportStake: support,
		OpposeStake:  oppose,
		NetStake:     support.Sub(oppose.Decimal),
		TotalStake:   units.NewAmount(total),
	}
}

// LevelFor maps a score to its band.
func (e *Engine) LevelFor(score float64) Level {
	b := e.cfg.Bands
	switch {
	case score >= b.Excellent:
		return LevelExcellent
	case score >= b.Good:
		return LevelGood
	case score >= b.Moderate:
		return LevelModerate
	case score >= b.Low:
		return LevelLow
	default:
		return LevelCritical
	}
}

// confidence saturates towards 1 as stake grows: 1 - exp(-total/scale).
func (e *Engine) confidence(total decimal.Decimal) float64 {
	if !total.IsPositive() {
		return 0
	}
	return units.Score(decimal.NewFromInt(1).Sub(units.ExpNeg(units.Div(total, e.cfg.ConfidenceScale))))
}

var (
	neutral = decimal.NewFromFloat(NeutralScore)
	hundred = decimal.NewFromInt(100)
)

func ratioScore(support, oppose units.Amount) decimal.Decimal {
	total := support.Add(oppose.Decimal)
	if !total.IsPositive() {
		return neutral
	}
	ratio := units.Div(support.Sub(oppose.Decimal), total)
	score := neutral.Add(neutral.Mul(ratio))
	return decimal.Max(decimal.Zero, decimal.Min(score, hundred))
}

// netStakes sums deposits minus redemptions per side for signals at or before
// asOf. A side never goes below zero.
func netStakes(signals []ledger.Signal, asOf time.Time) (units.Amount, units.Amount) {
	support, oppose := decimal.Zero, decimal.Zero
	for _, s := range signals {
		if s.Timestamp.After(asOf) {
			continue
		}
		delta := s.Amount.Decimal
		if !s.IsDeposit {
			delta = delta.Neg()
		}
		if s.Side == ledger.SideOppose {
			oppose = oppose.Add(delta)
		} else {
			support = support.Add(delta)
		}
	}
	return units.NewAmount(floorZero(support)), units.NewAmount(floorZero(oppose))
}

func anyAtOrBefore(signals []ledger.Signal, t time.Time) bool {
	for _, s := range signals {
		if !s.Timestamp.After(t) {
			return true
		}
	}
	return false
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
