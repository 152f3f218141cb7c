// Package ledger holds the read-only facts the scoring core consumes from the
// vault ledger and its event indexer.
package ledger

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/arbiter/internal/units"
)

// Side identifies one of the two vaults of a claim.
type Side string

const (
	SideSupport Side = "support"
	SideOppose  Side = "oppose"
)

// ErrUnknownSide is returned by ParseSide for anything but support or oppose.
var ErrUnknownSide = errors.New("unknown side")

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideSupport, SideOppose:
		return Side(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSide, s)
	}
}

// Signal is one indexed deposit or redemption against a vault. Amount is the
// staked asset value moved; Shares is what the vault minted or burned for it.
type Signal struct {
	Timestamp time.Time    `json:"timestamp"`
	Side      Side         `json:"side"`
	Amount    units.Amount `json:"amount"`
	Shares    units.Shares `json:"shares"`
	IsDeposit bool         `json:"is_deposit"`
	Account   string       `json:"account,omitempty"`
}

// Claim is the supply snapshot of both vaults of one claim.
type Claim struct {
	ID            uuid.UUID    `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	SupportSupply units.Shares `json:"support_supply"`
	OpposeSupply  units.Shares `json:"oppose_supply"`
}

// Supply returns the share supply of the given side.
func (c Claim) Supply(side Side) units.Shares {
	if side == SideOppose {
		return c.OpposeSupply
	}
	return c.SupportSupply
}

// Position is an account's holding in one vault.
type Position struct {
	ClaimID     uuid.UUID    `json:"claim_id"`
	Side        Side         `json:"side"`
	Account     string       `json:"account"`
	Shares      units.Shares `json:"shares"`
	StakedSince time.Time    `json:"staked_since"`
}

// ValidateSignals rejects signals carrying a negative amount or share count.
// Direction is expressed by IsDeposit, never by sign.
func ValidateSignals(signals []Signal) error {
	for i, s := range signals {
		if err := units.CheckNonNegative("signal amount", s.Amount.Decimal); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
		if err := units.CheckNonNegative("signal shares", s.Shares.Decimal); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}
	return nil
}

// SortSignals returns a copy of signals ordered by timestamp. Ties keep their
// indexer order.
func SortSignals(signals []Signal) []Signal {
	sorted := slices.Clone(signals)
	slices.SortStableFunc(sorted, func(a, b Signal) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return sorted
}

// FilterSide returns the signals recorded against side, in input order.
func FilterSide(signals []Signal, side Side) []Signal {
	var out []Signal
	for _, s := range signals {
		if s.Side == side {
			out = append(out, s)
		}
	}
	return out
}

// UniqueAccounts counts distinct non-empty accounts that deposited.
func UniqueAccounts(signals []Signal) int {
	seen := make(map[string]struct{})
	for _, s := range signals {
		if s.IsDeposit && s.Account != "" {
			seen[s.Account] = struct{}{}
		}
	}
	return len(seen)
}
