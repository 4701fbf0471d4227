// Package rows spreads cost items and revenue lines across the period grid.
//
// Builders are pure: timing that falls outside the horizon, or a phasing
// vector that cannot be used, yields an all-zero row instead of an error so
// that partially specified drafts still produce a result.
package rows

import (
	"sort"

	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
)

// UncategorizedCost is the breakdown key for cost items without a category.
const UncategorizedCost = "uncategorized"

var daysPerMonth = decimal.RequireFromString(constants.DaysPerMonth)

// CostItem is a construction or soft cost spread over a window of periods.
type CostItem struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	Category        string            `json:"category"`
	BaseAmount      decimal.Decimal   `json:"base_amount"`
	StartPeriod     int               `json:"start_period"`
	DurationPeriods int               `json:"duration_periods"`
	EscalationRate  decimal.Decimal   `json:"escalation_rate"`
	Weights         []decimal.Decimal `json:"weights,omitempty"`
}

// Breakdown is one named component of an aggregate row.
type Breakdown struct {
	Key string       `json:"key"`
	Row timeline.Row `json:"row"`
}

// Aggregate is a total row plus its components in key order.
type Aggregate struct {
	Total      timeline.Row `json:"total"`
	Components []Breakdown  `json:"components"`
}

// escalationFactor returns (1 + annual/12)^k.
func escalationFactor(annual decimal.Decimal, k int) decimal.Decimal {
	if annual.IsZero() || k <= 0 {
		return mathutil.One
	}
	return mathutil.PowInt(mathutil.One.Add(mathutil.MonthlyRate(annual)), k)
}

// inWindow reports whether [start, end) is a non-empty window inside the horizon.
func inWindow(start, end, horizon int) bool {
	return start >= 0 && end > start && end <= horizon
}

// BuildCostRow spreads item.BaseAmount over [StartPeriod, StartPeriod+DurationPeriods).
// The phasing weights default to a flat profile; escalation shapes the weights
// before they are normalized, so the row always sums to BaseAmount to the cent.
func BuildCostRow(item CostItem, horizon int) timeline.Row {
	row := timeline.NewRow(horizon)
	end := item.StartPeriod + item.DurationPeriods
	if !inWindow(item.StartPeriod, end, horizon) {
		return row
	}

	weights := make([]decimal.Decimal, item.DurationPeriods)
	if len(item.Weights) > 0 {
		if len(item.Weights) != item.DurationPeriods {
			return row
		}
		total := decimal.Zero
		for i, w := range item.Weights {
			if w.IsNegative() {
				return row
			}
			weights[i] = w
			total = total.Add(w)
		}
		if !total.IsPositive() {
			return row
		}
	} else {
		for i := range weights {
			weights[i] = mathutil.One
		}
	}

	for k := range weights {
		weights[k] = weights[k].Mul(escalationFactor(item.EscalationRate, k))
	}

	for k, share := range mathutil.Allocate(item.BaseAmount, weights) {
		row[item.StartPeriod+k] = share
	}
	return row
}

// BuildCostRows builds every cost item and sums them, keeping a per-category
// breakdown sorted by category name.
func BuildCostRows(items []CostItem, horizon int) Aggregate {
	byCategory := make(map[string]timeline.Row)
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = UncategorizedCost
		}
		row := BuildCostRow(item, horizon)
		if existing, ok := byCategory[category]; ok {
			row = existing.Add(row)
		}
		byCategory[category] = row
	}
	return aggregate(byCategory, horizon)
}

func aggregate(components map[string]timeline.Row, horizon int) Aggregate {
	keys := make([]string, 0, len(components))
	for k := range components {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	agg := Aggregate{Total: timeline.NewRow(horizon), Components: make([]Breakdown, 0, len(keys))}
	for _, k := range keys {
		agg.Total = agg.Total.Add(components[k])
		agg.Components = append(agg.Components, Breakdown{Key: k, Row: components[k]})
	}
	return agg
}
