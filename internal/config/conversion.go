package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/loans"
	"github.com/iwvelando/project-feasibility/pkg/rows"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/iwvelando/project-feasibility/pkg/waterfall"
	"github.com/shopspring/decimal"
)

// Defaults applied when an optional option is left out of the file. The
// engine itself never defaults.
const (
	DefaultWaterfallMode = waterfall.ModeEuropean
	DefaultAccrualLevel  = waterfall.AccrueAll
	DefaultCompounding   = waterfall.CompoundMonthly
	DefaultRateBasis     = loans.RateNominal
)

// ToInput converts the common project into an engine input snapshot.
func (p Project) ToInput() (engine.Input, error) {
	in := engine.Input{
		Timeline: timeline.Timeline{
			Periods:   p.Timeline.Periods,
			StartDate: p.Timeline.StartDate,
		},
		Valuation: engine.Valuation{
			DiscountRatePa: decimal.NewFromFloat(p.Valuation.DiscountRate),
		},
		WaterfallConfig: p.Waterfall.ToWaterfall(),
	}

	for _, item := range p.CostItems {
		in.CostItems = append(in.CostItems, item.ToCostItem())
	}
	for _, unit := range p.UnitTypes {
		in.UnitTypes = append(in.UnitTypes, unit.ToRevenueLine())
	}
	for _, f := range p.Debt {
		facility, err := f.ToFacility()
		if err != nil {
			return engine.Input{}, err
		}
		in.Debt = append(in.Debt, facility)
	}
	for _, tr := range p.Equity {
		in.Equity = append(in.Equity, tr.ToTranche())
	}

	return in, nil
}

// ScenarioInput builds the input of one scenario over a fresh copy of the
// common project. Scenario items replace common items with the same id and
// are appended otherwise; a scenario waterfall replaces the common one.
func (c *Configuration) ScenarioInput(s Scenario) (engine.Input, error) {
	in, err := c.Common.ToInput()
	if err != nil {
		return engine.Input{}, err
	}

	for _, item := range s.CostItems {
		converted := item.ToCostItem()
		if i := indexOf(len(in.CostItems), func(i int) bool { return in.CostItems[i].ID == item.ID }); i >= 0 {
			in.CostItems[i] = converted
		} else {
			in.CostItems = append(in.CostItems, converted)
		}
	}
	for _, unit := range s.UnitTypes {
		converted := unit.ToRevenueLine()
		if i := indexOf(len(in.UnitTypes), func(i int) bool { return in.UnitTypes[i].ID == unit.ID }); i >= 0 {
			in.UnitTypes[i] = converted
		} else {
			in.UnitTypes = append(in.UnitTypes, converted)
		}
	}
	for _, f := range s.Debt {
		converted, err := f.ToFacility()
		if err != nil {
			return engine.Input{}, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		if i := indexOf(len(in.Debt), func(i int) bool { return in.Debt[i].Key == f.Name }); i >= 0 {
			in.Debt[i] = converted
		} else {
			in.Debt = append(in.Debt, converted)
		}
	}
	for _, tr := range s.Equity {
		converted := tr.ToTranche()
		if i := indexOf(len(in.Equity), func(i int) bool { return in.Equity[i].Key == tr.Name }); i >= 0 {
			in.Equity[i] = converted
		} else {
			in.Equity = append(in.Equity, converted)
		}
	}
	if s.Waterfall != nil {
		in.WaterfallConfig = s.Waterfall.ToWaterfall()
	}

	return in, nil
}

func indexOf(n int, match func(int) bool) int {
	for i := 0; i < n; i++ {
		if match(i) {
			return i
		}
	}
	return -1
}

// ToCostItem converts a config cost item.
func (item CostItem) ToCostItem() rows.CostItem {
	out := rows.CostItem{
		ID:              item.ID,
		Label:           item.Label,
		Category:        item.Category,
		BaseAmount:      decimal.NewFromFloat(item.BaseAmount),
		StartPeriod:     item.StartPeriod,
		DurationPeriods: item.DurationPeriods,
		EscalationRate:  decimal.NewFromFloat(item.EscalationRate),
	}
	if item.Label == "" {
		out.Label = item.ID
	}
	for _, w := range item.Weights {
		out.Weights = append(out.Weights, decimal.NewFromFloat(w))
	}
	return out
}

// ToRevenueLine converts a config unit type with every default resolved.
func (u UnitType) ToRevenueLine() rows.RevenueLine {
	line := rows.RevenueLine{
		ID:             u.ID,
		Label:          u.Label,
		Kind:           rows.RevenueKind(strings.ToLower(u.Kind)),
		Units:          decimal.NewFromFloat(u.Units),
		Price:          decimal.NewFromFloat(u.Price),
		StartPeriod:    u.StartPeriod,
		EndPeriod:      u.EndPeriod,
		EscalationRate: decimal.NewFromFloat(u.EscalationRate),
		Recognition:    rows.Recognition(strings.ToLower(u.Recognition)),
		RentBasis:      rows.RentBasis(strings.ToLower(u.RentBasis)),
	}
	if u.Label == "" {
		line.Label = u.ID
	}
	if u.Occupancy != nil {
		occ := decimal.NewFromFloat(*u.Occupancy)
		line.Occupancy = &occ
	}
	if u.HandoverPeriod != nil {
		hp := *u.HandoverPeriod
		line.HandoverPeriod = &hp
	}
	return line.WithDefaults()
}

// ToFacility converts a config facility. Unknown amortization types are
// rejected here since the engine receives the parsed enum.
func (f Facility) ToFacility() (loans.Facility, error) {
	amort, err := loans.ParseAmortType(f.AmortType)
	if err != nil {
		return loans.Facility{}, fmt.Errorf("facility %q: %w", f.Name, err)
	}
	basis := loans.RateBasis(strings.ToLower(f.RateBasis))
	if basis == "" {
		basis = DefaultRateBasis
	}
	return loans.Facility{
		Key:               f.Name,
		Limit:             decimal.NewFromFloat(f.Limit),
		LTCPercent:        decimal.NewFromFloat(f.LTC),
		RatePa:            decimal.NewFromFloat(f.Rate),
		RateBasis:         basis,
		AmortType:         amort,
		AvailabilityStart: f.AvailabilityStart,
		AvailabilityEnd:   f.AvailabilityEnd,
		TenorMonths:       f.TenorMonths,
		UpfrontFeePct:     decimal.NewFromFloat(f.UpfrontFee),
		OngoingFeePct:     decimal.NewFromFloat(f.OngoingFee),
		CommitmentFeePct:  decimal.NewFromFloat(f.CommitmentFee),
		DSRAMonths:        f.DSRAMonths,
		DrawPriority:      f.DrawPriority,
	}, nil
}

// ToTranche converts a config equity tranche.
func (tr Tranche) ToTranche() waterfall.Tranche {
	compounding := waterfall.Compounding(strings.ToLower(tr.Compounding))
	if compounding == "" {
		compounding = DefaultCompounding
	}
	return waterfall.Tranche{
		Key:        tr.Name,
		Role:       waterfall.Role(strings.ToUpper(tr.Role)),
		Commitment: decimal.NewFromFloat(tr.Commitment),
		PreferredReturn: waterfall.PreferredReturn{
			RatePa:      decimal.NewFromFloat(tr.PreferredReturn),
			Compounding: compounding,
		},
	}
}

// ToWaterfall converts a config waterfall. A nil waterfall is a plain
// european pro rata split with no hurdles.
func (w *WaterfallConfig) ToWaterfall() waterfall.Config {
	cfg := waterfall.Config{
		Mode:         DefaultWaterfallMode,
		AccrualLevel: DefaultAccrualLevel,
	}
	if w == nil {
		return cfg
	}
	if w.Mode != "" {
		cfg.Mode = waterfall.Mode(strings.ToLower(w.Mode))
	}
	if w.AccrualLevel != "" {
		cfg.AccrualLevel = waterfall.AccrualLevel(strings.ToLower(w.AccrualLevel))
	}
	for _, h := range w.Hurdles {
		hurdle := waterfall.Hurdle{
			Trigger: waterfall.Trigger{
				Type:      waterfall.TriggerType(strings.ToLower(h.Trigger)),
				Threshold: decimal.NewFromFloat(h.Threshold),
			},
			SplitAfterCatchup: waterfall.Split{
				LP: decimal.NewFromFloat(h.LPShare),
				GP: decimal.NewFromFloat(h.GPShare),
			},
		}
		if h.CatchupShare != nil {
			hurdle.Catchup = waterfall.Catchup{
				Enabled:                true,
				GPTargetShareOfProfits: decimal.NewFromFloat(*h.CatchupShare),
			}
		}
		cfg.Hurdles = append(cfg.Hurdles, hurdle)
	}
	return cfg
}
