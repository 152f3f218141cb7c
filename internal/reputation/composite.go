package reputation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// ErrInvalidConfig is returned by NewEngine for out-of-range parameters.
var ErrInvalidConfig = errors.New("invalid reputation config")

// Weights are the composite blend factors. They must sum to 1.
type Weights struct {
	SignalRatio    float64 `yaml:"signal_ratio"`
	Stakers        float64 `yaml:"stakers"`
	Stability      float64 `yaml:"stability"`
	PriceRetention float64 `yaml:"price_retention"`
}

// CompositeConfig parameterises the composite score.
type CompositeConfig struct {
	Weights Weights `yaml:"weights"`
	// StakerScale and StabilityScale are the e-folding points of the
	// saturating sub-scores 100*(1-exp(-x/scale)).
	StakerScale            float64      `yaml:"staker_scale"`
	StabilityScale         float64      `yaml:"stability_scale_days"`
	StabilityThresholdDays int          `yaml:"stability_threshold_days"`
	RetentionThreshold     float64      `yaml:"retention_threshold"`
	DumpThreshold          units.Amount `yaml:"dump_threshold"`
}

func DefaultCompositeConfig() CompositeConfig {
	return CompositeConfig{
		Weights: Weights{
			SignalRatio:    0.4,
			Stakers:        0.2,
			Stability:      0.2,
			PriceRetention: 0.2,
		},
		StakerScale:            10,
		StabilityScale:         14,
		StabilityThresholdDays: 7,
		RetentionThreshold:     0.7,
		DumpThreshold:          units.AmountFromInt(1000),
	}
}

func (c CompositeConfig) Validate() error {
	w := c.Weights
	for _, v := range []float64{w.SignalRatio, w.Stakers, w.Stability, w.PriceRetention} {
		if v < 0 {
			return fmt.Errorf("%w: composite weights must not be negative, got %+v", ErrInvalidConfig, w)
		}
	}
	if sum := w.SignalRatio + w.Stakers + w.Stability + w.PriceRetention; math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: composite weights must sum to 1, got %f", ErrInvalidConfig, sum)
	}
	if c.StakerScale <= 0 || c.StabilityScale <= 0 {
		return fmt.Errorf("%w: staker and stability scales must be positive", ErrInvalidConfig)
	}
	if c.StabilityThresholdDays < 0 {
		return fmt.Errorf("%w: stability threshold must not be negative", ErrInvalidConfig)
	}
	if c.RetentionThreshold < 0 || c.RetentionThreshold > 1 {
		return fmt.Errorf("%w: retention threshold must be in [0, 1]", ErrInvalidConfig)
	}
	if c.DumpThreshold.IsNegative() {
		return fmt.Errorf("%w: dump threshold must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Config bundles the decay and composite parameters.
type Config struct {
	Decay     DecayConfig     `yaml:"decay"`
	Composite CompositeConfig `yaml:"composite"`
}

func DefaultConfig() Config {
	return Config{Decay: DefaultDecayConfig(), Composite: DefaultCompositeConfig()}
}

// Engine computes weighted and composite trust. It holds only immutable
// configuration and is safe for concurrent use.
type Engine struct {
	cfg   Config
	curve *curve.Curve
}

// NewEngine validates cfg. The curve is used to price the live supply and to
// replay the stake history for the peak price.
func NewEngine(cfg Config, c *curve.Curve) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: curve is required", ErrInvalidConfig)
	}
	if err := cfg.Decay.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Composite.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, curve: c}, nil
}

// Breakdown holds the four sub-scores, each in [0, 100].
type Breakdown struct {
	SignalScore    float64 `json:"signal_score"`
	StakerScore    float64 `json:"staker_score"`
	StabilityScore float64 `json:"stability_score"`
	PriceScore     float64 `json:"price_score"`
}

// CompositeResult is the blended reputation of a claim.
type CompositeResult struct {
	Score               float64   `json:"score"`
	IsStable            bool      `json:"is_stable"`
	Breakdown           Breakdown `json:"breakdown"`
	PriceRetentionRatio float64   `json:"price_retention_ratio"`
}

// CompositeInput carries the already-derived signals of one claim.
type CompositeInput struct {
	WeightedSignalRatio float64
	UniqueStakers       int
	StableDays          int
	CurrentPrice        units.Price
	PeakPrice           units.Price
	// RecentSells are the redemptions of the last day. A dump-sized one
	// among them resets StableDays to zero.
	RecentSells []ledger.Signal
}

// CalculateCompositeTrust blends the four sub-scores with the configured weights.
func (e *Engine) CalculateCompositeTrust(in CompositeInput) CompositeResult {
	cfg := e.cfg.Composite

	stableDays := in.StableDays
	if stableDays < 0 || e.hasDump(in.RecentSells) {
		stableDays = 0
	}
	stakers := in.UniqueStakers
	if stakers < 0 {
		stakers = 0
	}

	retention := retentionRatio(in.CurrentPrice, in.PeakPrice)
	hundred := decimal.NewFromInt(100)

	signal := decimal.NewFromFloat(units.Clamp(in.WeightedSignalRatio, 0, 100))
	staker := units.Saturate(decimal.NewFromInt(int64(stakers)), decimal.NewFromFloat(cfg.StakerScale))
	stability := units.Saturate(decimal.NewFromInt(int64(stableDays)), decimal.NewFromFloat(cfg.StabilityScale))
	price := hundred.Mul(retention)

	w := cfg.Weights
	score := decimal.NewFromFloat(w.SignalRatio).Mul(signal).
		Add(decimal.NewFromFloat(w.Stakers).Mul(staker)).
		Add(decimal.NewFromFloat(w.Stability).Mul(stability)).
		Add(decimal.NewFromFloat(w.PriceRetention).Mul(price))
	score = decimal.Min(decimal.Max(score, decimal.Zero), hundred)

	return CompositeResult{
		Score:    units.Score(score),
		IsStable: stableDays >= cfg.StabilityThresholdDays && retention.GreaterThanOrEqual(decimal.NewFromFloat(cfg.RetentionThreshold)),
		Breakdown: Breakdown{
			SignalScore:    units.Score(signal),
			StakerScore:    units.Score(staker),
			StabilityScore: units.Score(stability),
			PriceScore:     units.Score(price),
		},
		PriceRetentionRatio: units.Score(retention),
	}
}

// RetentionRatio is min(current/peak, 1); 1 when no peak is known.
func RetentionRatio(current, peak units.Price) float64 {
	return retentionRatio(current, peak).InexactFloat64()
}

func retentionRatio(current, peak units.Price) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !peak.IsPositive() {
		return one
	}
	r := units.Div(current.Decimal, peak.Decimal)
	return decimal.Min(decimal.Max(r, decimal.Zero), one)
}

// EvaluationInput is everything the service knows about one claim.
type EvaluationInput struct {
	Signals       []ledger.Signal
	UniqueStakers int
	SupportSupply units.Shares
	Now           time.Time
}

// Evaluation is the full composite pipeline output with its intermediates.
type Evaluation struct {
	Weighted     WeightedTrustResult `json:"weighted"`
	StableDays   int                 `json:"stable_days"`
	CurrentPrice units.Price         `json:"current_price"`
	PeakPrice    units.Price         `json:"peak_price"`
	Composite    CompositeResult     `json:"composite"`
}

// Evaluate runs decay, stability, peak-price replay and the composite blend.
// Stability and price retention are measured on the support vault. Signals
// with negative quantities are rejected with units.ErrInvalidAmount.
func (e *Engine) Evaluate(in EvaluationInput) (Evaluation, error) {
	weighted, err := e.CalculateWeightedTrust(in.Signals, in.Now)
	if err != nil {
		return Evaluation{}, err
	}

	support := ledger.FilterSide(in.Signals, ledger.SideSupport)
	stableDays := e.CalculateStableDays(support, in.Now)

	cfg := e.curve.Config()
	current := e.curve.Price(in.SupportSupply)
	peak := FindPeakPrice(support, cfg.BasePrice, cfg.Slope)
	if current.GreaterThan(peak.Decimal) {
		peak = current
	}

	composite := e.CalculateCompositeTrust(CompositeInput{
		WeightedSignalRatio: weighted.WeightedRatio,
		UniqueStakers:       in.UniqueStakers,
		StableDays:          stableDays,
		CurrentPrice:        current,
		PeakPrice:           peak,
		RecentSells:         recentSells(support, in.Now),
	})

	return Evaluation{
		Weighted:     weighted,
		StableDays:   stableDays,
		CurrentPrice: current,
		PeakPrice:    peak,
		Composite:    composite,
	}, nil
}

func (e *Engine) hasDump(sells []ledger.Signal) bool {
	for _, s := range sells {
		if e.isDump(s) {
			return true
		}
	}
	return false
}

func (e *Engine) isDump(s ledger.Signal) bool {
	return !s.IsDeposit && s.Amount.GreaterThan(e.cfg.Composite.DumpThreshold.Decimal)
}

func recentSells(signals []ledger.Signal, now time.Time) []ledger.Signal {
	var out []ledger.Signal
	for _, s := range signals {
		if !s.IsDeposit && !s.Timestamp.After(now) && now.Sub(s.Timestamp) < day {
			out = append(out, s)
		}
	}
	return out
}
