package config

import (
	"fmt"
	"strings"
)

const (
	OptimizerFieldBaseAmount = "baseAmount"
	OptimizerFieldPrice      = "price"
	OptimizerFieldUnits      = "units"

	OptimizerGoalEquityIRR  = "equityIrr"
	OptimizerGoalLPIRR      = "lpIrr"
	OptimizerGoalProjectIRR = "projectIrr"
	OptimizerGoalMOIC       = "moic"
	OptimizerGoalNPV        = "npv"

	defaultToleranceAmount = 0.01
	defaultMaxIterations   = 60
)

// OptimizerConfig defines a single-parameter goal seek on the cost item or
// unit type it is attached to: find the field value within [Min, Max] at
// which the goal KPI equals Target. Solving a land cost for a target equity
// IRR gives the residual land value.
type OptimizerConfig struct {
	Field         string   `yaml:"field,omitempty" mapstructure:"field"`
	Goal          string   `yaml:"goal,omitempty" mapstructure:"goal"`
	Target        float64  `yaml:"target" mapstructure:"target"`
	Min           *float64 `yaml:"min,omitempty" mapstructure:"min"`
	Max           *float64 `yaml:"max,omitempty" mapstructure:"max"`
	Tolerance     float64  `yaml:"tolerance,omitempty" mapstructure:"tolerance"`
	MaxIterations int      `yaml:"maxIterations,omitempty" mapstructure:"maxIterations"`
}

// CanonicalOptimizerField returns the canonical identifier for an optimizer field.
func CanonicalOptimizerField(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(trimmed)) {
	case "":
		return ""
	case "baseamount", "amount":
		return OptimizerFieldBaseAmount
	case "price":
		return OptimizerFieldPrice
	case "units":
		return OptimizerFieldUnits
	default:
		return strings.ToLower(trimmed)
	}
}

// CanonicalOptimizerGoal returns the canonical identifier for an optimizer goal.
func CanonicalOptimizerGoal(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(trimmed)) {
	case "", "equityirr", "irr":
		return OptimizerGoalEquityIRR
	case "lpirr":
		return OptimizerGoalLPIRR
	case "projectirr":
		return OptimizerGoalProjectIRR
	case "moic":
		return OptimizerGoalMOIC
	case "npv":
		return OptimizerGoalNPV
	default:
		return strings.ToLower(trimmed)
	}
}

// Normalize ensures defaults and canonical values are applied before
// validation. defaultField is the field of the item the directive sits on.
func (o *OptimizerConfig) Normalize(defaultField string) {
	if o == nil {
		return
	}
	o.Field = CanonicalOptimizerField(o.Field)
	if o.Field == "" {
		o.Field = defaultField
	}
	o.Goal = CanonicalOptimizerGoal(o.Goal)
	if o.Tolerance <= 0 {
		o.Tolerance = defaultToleranceAmount
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultMaxIterations
	}
}

// Validate returns an error when the optimizer configuration is unsupported.
// allowed lists the fields the owning item exposes; the first is the default.
func (o *OptimizerConfig) Validate(allowed ...string) error {
	if o == nil {
		return fmt.Errorf("optimizer configuration cannot be nil")
	}
	if len(allowed) == 0 {
		return fmt.Errorf("optimizer has no field to adjust")
	}

	o.Normalize(allowed[0])

	supported := false
	for _, field := range allowed {
		if o.Field == field {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("optimizer field %q is not supported here, expected one of %s",
			o.Field, strings.Join(allowed, ", "))
	}

	switch o.Goal {
	case OptimizerGoalEquityIRR, OptimizerGoalLPIRR, OptimizerGoalProjectIRR, OptimizerGoalMOIC, OptimizerGoalNPV:
		// supported goals
	default:
		return fmt.Errorf("optimizer goal %q is not supported", o.Goal)
	}

	if o.Min == nil {
		return fmt.Errorf("optimizer requires a minimum bound")
	}
	if o.Max == nil {
		return fmt.Errorf("optimizer requires a maximum bound")
	}
	if *o.Min >= *o.Max {
		return fmt.Errorf("optimizer minimum %.2f must be less than maximum %.2f", *o.Min, *o.Max)
	}
	if o.Field != OptimizerFieldBaseAmount && *o.Min < 0 {
		return fmt.Errorf("optimizer %s minimum %.2f must not be negative", o.Field, *o.Min)
	}

	return nil
}
