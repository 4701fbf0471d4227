// Package engine runs a full feasibility calculation: cost and revenue rows,
// the debt stack, equity calls and the distribution waterfall, the cash-flow
// statement and its tie-out, and the return metrics.
//
// Run is a pure function of its Input. Nothing is shared between calls, so
// scenarios and previews are computed over independent clones.
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/loans"
	"github.com/iwvelando/project-feasibility/pkg/rows"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/iwvelando/project-feasibility/pkg/waterfall"
	"github.com/shopspring/decimal"
)

// ErrConfiguration is matched by every error that rejects an input as
// malformed. Such runs return no partial result.
var ErrConfiguration = errors.New("configuration error")

// ConfigError is an input the engine refuses to run. Err holds the
// component's own error when there is one.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrConfiguration, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", ErrConfiguration, e.Field, e.Reason)
}

// Unwrap returns the component error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports ErrConfiguration for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Valuation holds the assumptions used to value the equity cash flows.
type Valuation struct {
	DiscountRatePa decimal.Decimal `json:"discount_rate_pa"`
}

// Input is the immutable snapshot a run is computed from.
type Input struct {
	Timeline        timeline.Timeline   `json:"timeline"`
	CostItems       []rows.CostItem     `json:"cost_items"`
	UnitTypes       []rows.RevenueLine  `json:"unit_types"`
	Debt            []loans.Facility    `json:"debt"`
	Equity          []waterfall.Tranche `json:"equity"`
	WaterfallConfig waterfall.Config    `json:"waterfall_config"`
	Valuation       Valuation           `json:"valuation"`
}

// Clone returns a deep copy of the input that shares no slices or pointers
// with the original.
func (in Input) Clone() Input {
	out := in
	if in.CostItems != nil {
		out.CostItems = make([]rows.CostItem, len(in.CostItems))
		for i, item := range in.CostItems {
			if item.Weights != nil {
				item.Weights = append([]decimal.Decimal(nil), item.Weights...)
			}
			out.CostItems[i] = item
		}
	}
	if in.UnitTypes != nil {
		out.UnitTypes = make([]rows.RevenueLine, len(in.UnitTypes))
		for i, line := range in.UnitTypes {
			if line.Occupancy != nil {
				occ := *line.Occupancy
				line.Occupancy = &occ
			}
			if line.HandoverPeriod != nil {
				hp := *line.HandoverPeriod
				line.HandoverPeriod = &hp
			}
			out.UnitTypes[i] = line
		}
	}
	if in.Debt != nil {
		out.Debt = append([]loans.Facility(nil), in.Debt...)
	}
	if in.Equity != nil {
		out.Equity = append([]waterfall.Tranche(nil), in.Equity...)
	}
	out.WaterfallConfig = in.WaterfallConfig.Clone()
	return out
}

// Fingerprint returns the hex sha256 of the input's JSON encoding. Identical
// inputs always share a fingerprint, so results can be memoized by it.
func (in Input) Fingerprint() (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("failed to encode input for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Validate rejects inputs that cannot be computed as stated. Timing outside
// the horizon is not an error; such items contribute zero rows.
func (in Input) Validate() error {
	if _, err := timeline.New(in.Timeline.Periods, in.Timeline.StartDate); err != nil {
		return &ConfigError{Field: "timeline", Err: err}
	}

	seen := make(map[string]bool, len(in.CostItems))
	for i, item := range in.CostItems {
		field := fmt.Sprintf("cost_items[%d]", i)
		if item.ID == "" {
			return &ConfigError{Field: field + ".id", Reason: "is required"}
		}
		if seen[item.ID] {
			return &ConfigError{Field: field + ".id", Reason: fmt.Sprintf("%q is duplicated", item.ID)}
		}
		seen[item.ID] = true
		if item.EscalationRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
			return &ConfigError{Field: field + ".escalation_rate", Reason: "must be above -1"}
		}
	}

	seen = make(map[string]bool, len(in.UnitTypes))
	for i, line := range in.UnitTypes {
		if err := validateRevenueLine(fmt.Sprintf("unit_types[%d]", i), line, seen); err != nil {
			return err
		}
	}

	seen = make(map[string]bool, len(in.Debt))
	for i, f := range in.Debt {
		if err := f.Validate(); err != nil {
			return &ConfigError{Field: fmt.Sprintf("debt[%d]", i), Err: err}
		}
		if seen[f.Key] {
			return &ConfigError{Field: fmt.Sprintf("debt[%d].key", i), Reason: fmt.Sprintf("%q is duplicated", f.Key)}
		}
		seen[f.Key] = true
	}

	if err := waterfall.Validate(in.WaterfallConfig, in.Equity); err != nil {
		return &ConfigError{Field: "waterfall_config", Err: err}
	}

	if in.Valuation.DiscountRatePa.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return &ConfigError{Field: "valuation.discount_rate_pa", Reason: "must be above -1"}
	}
	return nil
}

func validateRevenueLine(field string, line rows.RevenueLine, seen map[string]bool) error {
	if line.ID == "" {
		return &ConfigError{Field: field + ".id", Reason: "is required"}
	}
	if seen[line.ID] {
		return &ConfigError{Field: field + ".id", Reason: fmt.Sprintf("%q is duplicated", line.ID)}
	}
	seen[line.ID] = true

	switch line.Kind {
	case rows.KindSale, rows.KindRental:
	default:
		return &ConfigError{Field: field + ".kind", Reason: fmt.Sprintf("must be sale or rental, got %q", line.Kind)}
	}
	switch line.Recognition {
	case "", rows.RecognizeHandover, rows.RecognizeLinear:
	default:
		return &ConfigError{Field: field + ".recognition",
			Reason: fmt.Sprintf("must be handover or linear, got %q", line.Recognition)}
	}
	switch line.RentBasis {
	case "", rows.RentMonthly, rows.RentDaily:
	default:
		return &ConfigError{Field: field + ".rent_basis",
			Reason: fmt.Sprintf("must be monthly or daily, got %q", line.RentBasis)}
	}
	if line.Units.IsNegative() {
		return &ConfigError{Field: field + ".units", Reason: "must not be negative"}
	}
	if line.Price.IsNegative() {
		return &ConfigError{Field: field + ".price", Reason: "must not be negative"}
	}
	if line.Occupancy != nil && (line.Occupancy.IsNegative() || line.Occupancy.GreaterThan(decimal.NewFromInt(1))) {
		return &ConfigError{Field: field + ".occupancy", Reason: "must be between 0 and 1"}
	}
	if line.EscalationRate.LessThanOrEqual(decimal.NewFromInt(-1)) {
		return &ConfigError{Field: field + ".escalation_rate", Reason: "must be above -1"}
	}
	return nil
}
