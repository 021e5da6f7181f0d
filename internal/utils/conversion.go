/*
This file contains the integer math shared by the ledger and the allocator:
mul-div in both rounding directions, basis-point application and the
float ratios used for share-price reporting.
*/

package utils

import (
	"errors"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrDivisionByZero = errors.New("division by zero")
)

// MulDivFloor returns floor(a*b/c) for non-negative operands.
func MulDivFloor(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if err := checkOperands(a, b, c); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.Mul(b).Quo(c), nil
}

// MulDivCeil returns ceil(a*b/c) for non-negative operands.
func MulDivCeil(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if err := checkOperands(a, b, c); err != nil {
		return sdkmath.ZeroInt(), err
	}
	product := a.Mul(b)
	q := product.Quo(c)
	if !product.Mod(c).IsZero() {
		q = q.AddRaw(1)
	}
	return q, nil
}

// ApplyBps returns floor(amount*bps/10000).
func ApplyBps(amount sdkmath.Int, bps uint64) sdkmath.Int {
	if amount.IsNil() || amount.IsZero() || bps == 0 {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(sdkmath.NewIntFromUint64(bps)).QuoRaw(10000)
}

// AbsDiff returns |a-b|.
func AbsDiff(a, b sdkmath.Int) sdkmath.Int {
	if a.GTE(b) {
		return a.Sub(b)
	}
	return b.Sub(a)
}

// OrZero maps a nil Int to zero so zero-valued structs are safe to use.
func OrZero(v sdkmath.Int) sdkmath.Int {
	if v.IsNil() {
		return sdkmath.ZeroInt()
	}
	return v
}

func checkOperands(a, b, c sdkmath.Int) error {
	if a.IsNil() || b.IsNil() || c.IsNil() {
		return ErrAmountNil
	}
	if a.IsNegative() || b.IsNegative() || c.IsNegative() {
		return ErrAmountNegative
	}
	if c.IsZero() {
		return ErrDivisionByZero
	}
	return nil
}

// Ratio returns num/den as float64, or 0 when den is zero. Used for share
// price reporting only; never for accounting.
func Ratio(num, den sdkmath.Int) float64 {
	if num.IsNil() || den.IsNil() || den.IsZero() {
		return 0
	}
	r, err := sdkmath.LegacyNewDecFromInt(num).Quo(sdkmath.LegacyNewDecFromInt(den)).Float64()
	if err != nil || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
