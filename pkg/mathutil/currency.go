// Package mathutil provides common mathematical utility functions for money
// held as shopspring decimals.
package mathutil

import (
	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/shopspring/decimal"
)

// Tolerance is the currency comparison tolerance (one cent).
var Tolerance = decimal.RequireFromString(constants.CurrencyTolerance)

// One is the decimal 1, shared to avoid re-allocating it in hot loops.
var One = decimal.NewFromInt(1)

// Round rounds a value to two decimals, i.e. to represent real currency.
func Round(val decimal.Decimal) decimal.Decimal {
	return val.Round(constants.CurrencyPlaces)
}

// RoundRate rounds a rate or growth factor to the precision rates are carried at.
func RoundRate(val decimal.Decimal) decimal.Decimal {
	return val.Round(constants.RatePlaces)
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val decimal.Decimal) bool {
	return val.Abs().LessThanOrEqual(Tolerance)
}

// IsPositive checks if a value is positive (greater than tolerance)
func IsPositive(val decimal.Decimal) bool {
	return val.GreaterThan(Tolerance)
}

// IsNegative checks if a value is negative (less than negative tolerance)
func IsNegative(val decimal.Decimal) bool {
	return val.LessThan(Tolerance.Neg())
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance decimal.Decimal) bool {
	return val1.Sub(val2).Abs().LessThanOrEqual(tolerance)
}

// Min returns the minimum of two values
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the maximum of two values
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// NonNegative clamps a value at zero from below.
func NonNegative(val decimal.Decimal) decimal.Decimal {
	if val.IsNegative() {
		return decimal.Zero
	}
	return val
}

// MonthlyRate converts an annual nominal rate into its monthly rate.
func MonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return RoundRate(annual.Div(decimal.NewFromInt(constants.MonthsPerYear)))
}

// PowInt raises base to a non-negative integer power, rounding the running
// product to rate precision so long horizons do not grow the mantissa.
func PowInt(base decimal.Decimal, exp int) decimal.Decimal {
	result := One
	for i := 0; i < exp; i++ {
		result = RoundRate(result.Mul(base))
	}
	return result
}

// Allocate splits amount across weights pro rata, rounding each share to cents.
// The rounding residual lands on the last positive weight so that the shares
// always sum to the rounded amount exactly. Negative weights count as zero; if
// no weight is positive the amount is split equally.
func Allocate(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(weights))
	for i := range shares {
		shares[i] = decimal.Zero
	}
	if len(weights) == 0 {
		return shares
	}

	amount = Round(amount)
	clean := make([]decimal.Decimal, len(weights))
	total := decimal.Zero
	last := -1
	for i, w := range weights {
		clean[i] = NonNegative(w)
		if clean[i].IsPositive() {
			total = total.Add(clean[i])
			last = i
		}
	}
	if last < 0 {
		for i := range clean {
			clean[i] = One
		}
		total = decimal.NewFromInt(int64(len(clean)))
		last = len(clean) - 1
	}

	allocated := decimal.Zero
	for i, w := range clean {
		if i == last {
			continue
		}
		shares[i] = Round(amount.Mul(w).Div(total))
		allocated = allocated.Add(shares[i])
	}
	shares[last] = amount.Sub(allocated)
	return shares
}
