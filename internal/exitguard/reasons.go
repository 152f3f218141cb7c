package exitguard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownSellReason = errors.New("unknown sell reason")

// SellReason is the motivation a seller declares.
type SellReason string

const (
	ReasonProfitTaking   SellReason = "profit_taking"
	ReasonRebalancing    SellReason = "rebalancing"
	ReasonLiquidityNeed  SellReason = "liquidity_need"
	ReasonNewInformation SellReason = "new_information"
	ReasonLostConfidence SellReason = "lost_confidence"
	ReasonOther          SellReason = "other"
)

// SellReasonConfig weights how strongly a sell should read as lost trust.
type SellReasonConfig struct {
	Reason      SellReason `json:"reason"`
	TrustImpact float64    `json:"trust_impact"`
	Description string     `json:"description"`
}

var sellReasons = map[SellReason]SellReasonConfig{
	ReasonProfitTaking:   {ReasonProfitTaking, 0.1, "Realising gains after a price rise"},
	ReasonRebalancing:    {ReasonRebalancing, 0.2, "Adjusting portfolio allocation"},
	ReasonLiquidityNeed:  {ReasonLiquidityNeed, 0.15, "Funds needed elsewhere"},
	ReasonNewInformation: {ReasonNewInformation, 0.7, "New evidence changed the assessment"},
	ReasonLostConfidence: {ReasonLostConfidence, 1.0, "No longer believes the claim"},
	ReasonOther:          {ReasonOther, 0.5, "Unspecified reason"},
}

// SellReasons lists the known reasons from lowest to highest trust impact.
func SellReasons() []SellReason {
	return []SellReason{
		ReasonProfitTaking,
		ReasonLiquidityNeed,
		ReasonRebalancing,
		ReasonOther,
		ReasonNewInformation,
		ReasonLostConfidence,
	}
}

// GetSellReasonConfig looks up a reason. Unknown reasons resolve to other.
func GetSellReasonConfig(reason SellReason) SellReasonConfig {
	if c, ok := sellReasons[reason]; ok {
		return c
	}
	return sellReasons[ReasonOther]
}

// ParseSellReason accepts the snake_case names, case-insensitively.
func ParseSellReason(s string) (SellReason, error) {
	r := SellReason(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sellReasons[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSellReason, s)
	}
	return r, nil
}

// LoyaltyInfo is the display badge for a holding period. It does not change
// any score.
type LoyaltyInfo struct {
	Label      string  `json:"label"`
	Color      string  `json:"color"`
	DaysStaked int     `json:"days_staked"`
	Multiplier float64 `json:"multiplier"`
}

type loyaltyBand struct {
	maxDays    int
	label      string
	color      string
	multiplier float64
}

var loyaltyBands = []loyaltyBand{
	{7, "New", "#9ca3af", 1.0},
	{30, "Committed", "#3b82f6", 1.1},
	{90, "Loyal", "#10b981", 1.25},
	{180, "Veteran", "#8b5cf6", 1.5},
}

var diamondHands = loyaltyBand{label: "Diamond Hands", color: "#06b6d4", multiplier: 2.0}

// GetLoyaltyMultiplier maps whole days staked since stakedSince to a badge.
// A zero or future stakedSince counts as zero days.
func GetLoyaltyMultiplier(stakedSince, now time.Time) LoyaltyInfo {
	days := 0
	if !stakedSince.IsZero() && now.After(stakedSince) {
		days = int(now.Sub(stakedSince) / (24 * time.Hour))
	}
	band := diamondHands
	for _, b := range loyaltyBands {
		if days < b.maxDays {
			band = b
			break
		}
	}
	return LoyaltyInfo{Label: band.label, Color: band.color, DaysStaked: days, Multiplier: band.multiplier}
}
