// Package units defines the fixed-point quantities shared by the pricing and
// scoring packages. Stake amounts, vault shares and curve prices are distinct
// types so they cannot be mixed up by accident; all of them are decimals held
// at the ledger's native 18-digit precision.
package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every quantity.
const Scale = 18

// ErrInvalidAmount is returned when a textual quantity cannot be parsed or is negative.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a quantity of the staked asset (deposits, fees, proceeds).
type Amount struct{ decimal.Decimal }

// Shares is a quantity of vault shares.
type Shares struct{ decimal.Decimal }

// Price is the asset cost of one share.
type Price struct{ decimal.Decimal }

func NewAmount(d decimal.Decimal) Amount { return Amount{d.Truncate(Scale)} }
func NewShares(d decimal.Decimal) Shares { return Shares{d.Truncate(Scale)} }
func NewPrice(d decimal.Decimal) Price   { return Price{d.Truncate(Scale)} }

func ZeroAmount() Amount { return Amount{decimal.Zero} }
func ZeroShares() Shares { return Shares{decimal.Zero} }

// SharesFromInt is a convenience for whole-share quantities.
func SharesFromInt(n int64) Shares { return Shares{decimal.NewFromInt(n)} }

// AmountFromInt is a convenience for whole-unit amounts.
func AmountFromInt(n int64) Amount { return Amount{decimal.NewFromInt(n)} }

// ParseAmount parses a decimal string such as "12.5".
func ParseAmount(s string) (Amount, error) {
	d, err := parseNonNegative(s)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(d), nil
}

// ParseShares parses a decimal share quantity.
func ParseShares(s string) (Shares, error) {
	d, err := parseNonNegative(s)
	if err != nil {
		return Shares{}, err
	}
	return NewShares(d), nil
}

// ParsePrice parses a decimal price.
func ParsePrice(s string) (Price, error) {
	d, err := parseNonNegative(s)
	if err != nil {
		return Price{}, err
	}
	return NewPrice(d), nil
}

// ParseBaseUnits converts an integer string in the ledger's smallest unit
// (10^-18) into a decimal quantity. "1500000000000000000" becomes 1.5.
func ParseBaseUnits(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty base-unit value", ErrInvalidAmount)
	}
	if strings.ContainsAny(s, ".eE") {
		return decimal.Zero, fmt.Errorf("%w: base-unit value %q is not an integer", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, s)
	}
	return d.Shift(-Scale), nil
}

// BaseUnits renders d as an integer string in the ledger's smallest unit.
func BaseUnits(d decimal.Decimal) string {
	return d.Shift(Scale).Truncate(0).String()
}

// CheckNonNegative rejects a negative quantity before it reaches any math.
func CheckNonNegative(what string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s %s is negative", ErrInvalidAmount, what, d)
	}
	return nil
}

// Div divides at the package scale. Division by zero yields zero; callers
// guard the cases where that is not the neutral answer.
func Div(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, Scale)
}

func parseNonNegative(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, s)
	}
	return d, nil
}
