// Package finance provides the return metrics of a feasibility run: rate
// conversion, IRR, NPV and the private-equity multiples.
//
// Metrics are computed in float64 from cent-exact decimal rows. A metric that
// has no meaningful value is reported as a nil pointer, never as 0 or NaN.
package finance

import (
	"fmt"
	"math"

	"github.com/iwvelando/project-feasibility/pkg/constants"
)

// NominalToEffective converts a nominal annual rate compounded m times a year
// into the equivalent effective annual rate.
func NominalToEffective(nominal float64, m int) (float64, error) {
	if m <= 0 {
		return 0, fmt.Errorf("compounding periods must be positive, got %d", m)
	}
	base := 1 + nominal/float64(m)
	if base <= 0 {
		return 0, fmt.Errorf("nominal rate %g is below -100%% per compounding period", nominal)
	}
	return math.Pow(base, float64(m)) - 1, nil
}

// EffectiveToNominal converts an effective annual rate into the nominal annual
// rate compounded m times a year.
func EffectiveToNominal(effective float64, m int) (float64, error) {
	if m <= 0 {
		return 0, fmt.Errorf("compounding periods must be positive, got %d", m)
	}
	if effective <= -1 {
		return 0, fmt.Errorf("effective rate %g must be above -100%%", effective)
	}
	return float64(m) * (math.Pow(1+effective, 1/float64(m)) - 1), nil
}

// PeriodRate returns the monthly rate equivalent to an effective annual rate.
func PeriodRate(ratePa float64) float64 {
	return math.Pow(1+ratePa, 1/float64(constants.MonthsPerYear)) - 1
}

// AnnualizeMonthly compounds a monthly rate into an effective annual rate.
func AnnualizeMonthly(monthly float64) float64 {
	return math.Pow(1+monthly, constants.MonthsPerYear) - 1
}

// AnnualizeMonthlyPtr annualizes an optional monthly rate.
func AnnualizeMonthlyPtr(monthly *float64) *float64 {
	if monthly == nil {
		return nil
	}
	annual := AnnualizeMonthly(*monthly)
	return &annual
}
