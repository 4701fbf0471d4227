// Package waterfall allocates equity calls and distributable cash across LP
// and GP tranches: return of capital, preferred return, tiered hurdles with
// catch-up and promote, and a terminal clawback.
package waterfall

import (
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Role is the partner class of a tranche.
type Role string

// Compounding is the convention a preferred return accrues under.
type Compounding string

// Mode selects when hurdle tests are evaluated.
type Mode string

// TriggerType is the metric a hurdle is measured in.
type TriggerType string

// AccrualLevel selects which tranches accrue a preferred return.
type AccrualLevel string

const (
	RoleLP Role = "LP"
	RoleGP Role = "GP"

	CompoundMonthly Compounding = "monthly"
	CompoundAnnual  Compounding = "annual"
	CompoundSimple  Compounding = "simple"

	// ModeEuropean runs the waterfall once on the terminal cash flow.
	ModeEuropean Mode = "european"
	// ModeAmerican runs the waterfall every period cash is distributed.
	ModeAmerican Mode = "american"

	TriggerIRR      TriggerType = "irr"
	TriggerMultiple TriggerType = "multiple"

	AccrueAll    AccrualLevel = "all"
	AccrueLPOnly AccrualLevel = "lp_only"
)

// PreferredReturn is the hurdle rate a tranche accrues on its capital.
type PreferredReturn struct {
	RatePa      decimal.Decimal `json:"rate_pa"`
	Compounding Compounding     `json:"compounding,omitempty"`
}

// Tranche is one equity investor position. An empty Compounding means monthly.
type Tranche struct {
	Key             string          `json:"key"`
	Role            Role            `json:"role"`
	Commitment      decimal.Decimal `json:"commitment"`
	PreferredReturn PreferredReturn `json:"preferred_return"`
}

// Trigger is the LP return a hurdle tier ends at: an annual IRR or a multiple
// of contributed capital.
type Trigger struct {
	Type      TriggerType     `json:"type"`
	Threshold decimal.Decimal `json:"threshold"`
}

// Split divides a tier's cash between the classes; LP+GP must equal 1.
type Split struct {
	LP decimal.Decimal `json:"lp"`
	GP decimal.Decimal `json:"gp"`
}

// Catchup gives the GP all cash until its share of profits reaches the target.
type Catchup struct {
	Enabled                bool            `json:"enabled"`
	GPTargetShareOfProfits decimal.Decimal `json:"gp_target_share_of_profits"`
}

// Hurdle is one tier of the waterfall. Once the LP return reaches Trigger,
// cash above it is handled by Catchup then SplitAfterCatchup.
type Hurdle struct {
	Trigger           Trigger `json:"trigger"`
	SplitAfterCatchup Split   `json:"split_after_catchup"`
	Catchup           Catchup `json:"catchup"`
}

// Config is the waterfall definition. An empty AccrualLevel means all.
type Config struct {
	Mode         Mode         `json:"mode"`
	Hurdles      []Hurdle     `json:"hurdles"`
	AccrualLevel AccrualLevel `json:"accrual_level,omitempty"`
}

// Clone returns a deep copy of the config.
func (c Config) Clone() Config {
	out := c
	if c.Hurdles != nil {
		out.Hurdles = make([]Hurdle, len(c.Hurdles))
		copy(out.Hurdles, c.Hurdles)
	}
	return out
}

// ConfigError reports a waterfall definition the engine refuses to run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("waterfall %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate rejects waterfall definitions that cannot be run as stated. Nothing
// is renormalized or corrected.
func Validate(cfg Config, tranches []Tranche) error {
	switch cfg.Mode {
	case ModeEuropean, ModeAmerican:
	default:
		return configErrorf("mode", "must be european or american, got %q", cfg.Mode)
	}
	switch cfg.AccrualLevel {
	case "", AccrueAll, AccrueLPOnly:
	default:
		return configErrorf("accrual_level", "must be all or lp_only, got %q", cfg.AccrualLevel)
	}

	gpShare := false
	var triggerType TriggerType
	for i, h := range cfg.Hurdles {
		field := fmt.Sprintf("hurdles[%d]", i)
		switch h.Trigger.Type {
		case TriggerIRR, TriggerMultiple:
		default:
			return configErrorf(field+".trigger.type", "must be irr or multiple, got %q", h.Trigger.Type)
		}
		if i == 0 {
			triggerType = h.Trigger.Type
		} else if h.Trigger.Type != triggerType {
			return configErrorf(field+".trigger.type", "mixes %s and %s triggers", triggerType, h.Trigger.Type)
		}
		if h.Trigger.Threshold.IsNegative() {
			return configErrorf(field+".trigger.threshold", "must not be negative")
		}
		if i > 0 && !h.Trigger.Threshold.GreaterThan(cfg.Hurdles[i-1].Trigger.Threshold) {
			return configErrorf(field+".trigger.threshold", "%s does not increase over the previous tier's %s",
				h.Trigger.Threshold, cfg.Hurdles[i-1].Trigger.Threshold)
		}
		if h.SplitAfterCatchup.LP.IsNegative() || h.SplitAfterCatchup.GP.IsNegative() {
			return configErrorf(field+".split_after_catchup", "shares must not be negative")
		}
		if sum := h.SplitAfterCatchup.LP.Add(h.SplitAfterCatchup.GP); !sum.Equal(mathutil.One) {
			return configErrorf(field+".split_after_catchup", "lp + gp must equal 1, got %s", sum)
		}
		if h.Catchup.Enabled {
			tau := h.Catchup.GPTargetShareOfProfits
			if !tau.IsPositive() || !tau.LessThan(mathutil.One) {
				return configErrorf(field+".catchup.gp_target_share_of_profits", "must be in (0, 1), got %s", tau)
			}
			gpShare = true
		}
		if h.SplitAfterCatchup.GP.IsPositive() {
			gpShare = true
		}
	}

	seen := make(map[string]bool, len(tranches))
	hasGP := false
	for i, tr := range tranches {
		field := fmt.Sprintf("equity[%d]", i)
		if tr.Key == "" {
			return configErrorf(field+".key", "is required")
		}
		if seen[tr.Key] {
			return configErrorf(field+".key", "%q is duplicated", tr.Key)
		}
		seen[tr.Key] = true
		switch tr.Role {
		case RoleLP:
		case RoleGP:
			hasGP = true
		default:
			return configErrorf(field+".role", "must be LP or GP, got %q", tr.Role)
		}
		if tr.Commitment.IsNegative() {
			return configErrorf(field+".commitment", "must not be negative")
		}
		if tr.PreferredReturn.RatePa.IsNegative() {
			return configErrorf(field+".preferred_return.rate_pa", "must not be negative")
		}
		switch tr.PreferredReturn.Compounding {
		case "", CompoundMonthly, CompoundAnnual, CompoundSimple:
		default:
			return configErrorf(field+".preferred_return.compounding", "must be monthly, annual or simple, got %q",
				tr.PreferredReturn.Compounding)
		}
	}
	if gpShare && !hasGP {
		return configErrorf("hurdles", "allocate cash to the GP but no GP tranche is defined")
	}
	return nil
}
