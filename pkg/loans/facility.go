// Package loans schedules construction debt facilities over the period grid:
// draws against a loan-to-cost cap, interest, amortization, fees and the debt
// service reserve account.
package loans

import (
	"fmt"
	"strings"

	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/finance"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// AmortType selects the principal repayment shape of a facility.
type AmortType int

const (
	// AmortBullet rolls interest up while the facility is available and
	// repays everything at maturity.
	AmortBullet AmortType = iota
	// AmortAnnuity pays a constant total debt service after availability.
	AmortAnnuity
	// AmortStraightLine pays equal principal installments after availability.
	AmortStraightLine
	// AmortInterestOnly pays interest in cash throughout and repays at maturity.
	AmortInterestOnly
)

var amortNames = map[AmortType]string{
	AmortBullet:       "bullet",
	AmortAnnuity:      "annuity",
	AmortStraightLine: "straightLine",
	AmortInterestOnly: "interestOnly",
}

func (a AmortType) String() string {
	if name, ok := amortNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AmortType(%d)", int(a))
}

// ParseAmortType accepts the camelCase names as well as snake_case spellings.
func ParseAmortType(s string) (AmortType, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for a, name := range amortNames {
		if strings.ToLower(name) == normalized {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown amortization type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a AmortType) MarshalText() ([]byte, error) {
	if _, ok := amortNames[a]; !ok {
		return nil, fmt.Errorf("unknown amortization type %d", int(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AmortType) UnmarshalText(text []byte) error {
	parsed, err := ParseAmortType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// RateBasis states how a facility's annual rate is quoted.
type RateBasis string

const (
	RateNominal   RateBasis = "nominal"
	RateEffective RateBasis = "effective"
)

// Facility is one debt facility of the capital stack. Rates and percentages
// are fractions, so 0.7 is a 70% loan-to-cost cap.
type Facility struct {
	Key               string          `json:"key"`
	Limit             decimal.Decimal `json:"limit"`
	LTCPercent        decimal.Decimal `json:"ltc_percent"`
	RatePa            decimal.Decimal `json:"nominal_rate_pa"`
	RateBasis         RateBasis       `json:"rate_basis,omitempty"`
	AmortType         AmortType       `json:"amort_type"`
	AvailabilityStart int             `json:"availability_start"`
	AvailabilityEnd   int             `json:"availability_end"`
	TenorMonths       int             `json:"tenor_months"`
	UpfrontFeePct     decimal.Decimal `json:"upfront_fee_pct"`
	OngoingFeePct     decimal.Decimal `json:"ongoing_fee_pct"`
	CommitmentFeePct  decimal.Decimal `json:"commitment_fee_pct"`
	DSRAMonths        int             `json:"dsra_months"`
	DrawPriority      int             `json:"draw_priority"`
}

// ConfigError reports a facility definition the engine refuses to run.
type ConfigError struct {
	Facility string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("debt facility %q: %s %s", e.Facility, e.Field, e.Reason)
}

// Validate checks the facility definition.
func (f Facility) Validate() error {
	fail := func(field, reason string) error {
		return &ConfigError{Facility: f.Key, Field: field, Reason: reason}
	}
	if f.Key == "" {
		return fail("key", "is required")
	}
	if _, ok := amortNames[f.AmortType]; !ok {
		return fail("amort_type", fmt.Sprintf("has unknown value %d", int(f.AmortType)))
	}
	switch f.RateBasis {
	case "", RateNominal, RateEffective:
	default:
		return fail("rate_basis", fmt.Sprintf("must be nominal or effective, got %q", f.RateBasis))
	}
	nonNegative := map[string]decimal.Decimal{
		"limit":              f.Limit,
		"ltc_percent":        f.LTCPercent,
		"nominal_rate_pa":    f.RatePa,
		"upfront_fee_pct":    f.UpfrontFeePct,
		"ongoing_fee_pct":    f.OngoingFeePct,
		"commitment_fee_pct": f.CommitmentFeePct,
	}
	for _, field := range []string{"limit", "ltc_percent", "nominal_rate_pa", "upfront_fee_pct", "ongoing_fee_pct", "commitment_fee_pct"} {
		if nonNegative[field].IsNegative() {
			return fail(field, "must not be negative")
		}
	}
	if f.AvailabilityStart < 0 {
		return fail("availability_start", "must not be negative")
	}
	if f.AvailabilityEnd < f.AvailabilityStart {
		return fail("availability_end", "must not precede availability_start")
	}
	if f.TenorMonths < 0 {
		return fail("tenor_months", "must not be negative")
	}
	if f.DSRAMonths < 0 {
		return fail("dsra_months", "must not be negative")
	}
	return nil
}

// MonthlyRate returns the periodic rate interest accrues at. Effective annual
// quotes are converted to their monthly-compounded nominal equivalent first.
func (f Facility) MonthlyRate() (decimal.Decimal, error) {
	if f.RateBasis != RateEffective {
		return mathutil.MonthlyRate(f.RatePa), nil
	}
	nominal, err := finance.EffectiveToNominal(f.RatePa.InexactFloat64(), constants.MonthsPerYear)
	if err != nil {
		return decimal.Zero, &ConfigError{Facility: f.Key, Field: "nominal_rate_pa", Reason: err.Error()}
	}
	return mathutil.MonthlyRate(decimal.NewFromFloat(nominal)), nil
}

// Maturity returns the repayment period, truncated to the last period of the
// horizon.
func (f Facility) Maturity(horizon int) int {
	maturity := f.AvailabilityEnd + f.TenorMonths
	if maturity > horizon-1 {
		maturity = horizon - 1
	}
	return maturity
}

// DrawWindow returns the inclusive range of periods draws may happen in. The
// range is empty when last < first.
func (f Facility) DrawWindow(horizon int) (first, last int) {
	last = f.AvailabilityEnd
	if maturity := f.Maturity(horizon); last > maturity-1 {
		last = maturity - 1
	}
	return f.AvailabilityStart, last
}
