package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a display-unit amount to the asset's base units.
// The amount must be non-negative and representable at the asset's fixed
// precision; 0.001 with 6 decimals becomes 1000.
func ToBaseUnits(amount decimal.Decimal, decimals int) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount)
	}

	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s exceeds asset precision of %d decimals", amount, decimals)
	}

	units := shifted.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s overflows base units", amount)
	}

	return units.Uint64(), nil
}

// FromBaseUnits converts base units back to display units.
func FromBaseUnits(units uint64, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -int32(decimals))
}

// MinAcceptedBaseUnits returns the smallest received amount that still
// settles a charge of expected base units. Up to 1% under-payment is
// tolerated to absorb unit-conversion rounding on the payer side; the
// integer division rounds the tolerance down, never the threshold.
func MinAcceptedBaseUnits(expected uint64) uint64 {
	return expected - expected/100
}
