package reputation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/arbiter/internal/curve"
	"github.com/MikeSquared-Agency/arbiter/internal/ledger"
	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

const day = 24 * time.Hour

// CalculateStableDays counts whole days, ending at now, since the last
// redemption larger than the dump threshold. Without any dump the run starts
// at the first signal. Signals after now are ignored.
func (e *Engine) CalculateStableDays(signals []ledger.Signal, now time.Time) int {
	var (
		first    time.Time
		lastDump time.Time
		seen     bool
	)
	for _, s := range signals {
		if s.Timestamp.After(now) {
			continue
		}
		if !seen || s.Timestamp.Before(first) {
			first = s.Timestamp
		}
		seen = true
		if e.isDump(s) && s.Timestamp.After(lastDump) {
			lastDump = s.Timestamp
		}
	}
	if !seen {
		return 0
	}

	start := first
	if !lastDump.IsZero() {
		start = lastDump
	}
	return int(now.Sub(start) / day)
}

// FindPeakPrice replays deposits and redemptions in time order into a
// synthetic supply and returns the highest price the curve reached. The
// running supply never drops below zero.
func FindPeakPrice(supportSignals []ledger.Signal, basePrice units.Price, slope decimal.Decimal) units.Price {
	peak := basePrice
	supply := decimal.Zero
	for _, s := range ledger.SortSignals(supportSignals) {
		if s.IsDeposit {
			supply = supply.Add(s.Shares.Decimal)
		} else {
			supply = supply.Sub(s.Shares.Decimal)
			if supply.IsNegative() {
				supply = decimal.Zero
			}
		}
		if p := curve.PriceAt(basePrice, slope, units.NewShares(supply)); p.GreaterThan(peak.Decimal) {
			peak = p
		}
	}
	return peak
}
