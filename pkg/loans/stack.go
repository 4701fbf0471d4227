package loans

import (
	"fmt"
	"sort"

	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"go.uber.org/zap"
)

// StackRows aggregates the facilities of a capital stack. Facilities are kept
// in the order they were drawn.
type StackRows struct {
	Facilities          []*FacilityRows `json:"tranches"`
	Draws               timeline.Row    `json:"draws"`
	DSRADraws           timeline.Row    `json:"dsra_draws"`
	Balance             timeline.Row    `json:"balance"`
	Interest            timeline.Row    `json:"interest"`
	CapitalizedInterest timeline.Row    `json:"capitalized_interest"`
	CashInterest        timeline.Row    `json:"cash_interest"`
	Principal           timeline.Row    `json:"principal"`
	FeesUpfront         timeline.Row    `json:"fees_upfront"`
	FeesOngoing         timeline.Row    `json:"fees_ongoing"`
	FeesCommitment      timeline.Row    `json:"fees_commitment"`
	DSRABalance         timeline.Row    `json:"dsra_balance"`
	DSRAFunding         timeline.Row    `json:"dsra_funding"`
	DSRARelease         timeline.Row    `json:"dsra_release"`
	DebtService         timeline.Row    `json:"debt_service"`
	// Unfunded is the part of the cost requirement no facility drew.
	Unfunded timeline.Row `json:"unfunded"`
}

// Fees returns the sum of the three fee rows.
func (s *StackRows) Fees() timeline.Row {
	return s.FeesUpfront.Add(s.FeesOngoing).Add(s.FeesCommitment)
}

// SortFacilities orders facilities by draw priority, lowest first, breaking
// ties by key so that the result does not depend on input order.
func SortFacilities(facilities []Facility) []Facility {
	sorted := make([]Facility, len(facilities))
	copy(sorted, facilities)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DrawPriority != sorted[j].DrawPriority {
			return sorted[i].DrawPriority < sorted[j].DrawPriority
		}
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// Stack schedules every facility against the cost row. Each facility sees
// only the requirement left over by the facilities drawn before it.
func (g *ScheduleGenerator) Stack(facilities []Facility, cost timeline.Row, horizon int) (*StackRows, error) {
	seen := make(map[string]bool, len(facilities))
	for _, f := range facilities {
		if seen[f.Key] {
			return nil, &ConfigError{Facility: f.Key, Field: "key", Reason: "is duplicated"}
		}
		seen[f.Key] = true
	}

	stack := &StackRows{Facilities: make([]*FacilityRows, 0, len(facilities))}
	remaining := nonNegativeRow(cost)

	for _, f := range SortFacilities(facilities) {
		rows, err := g.Schedule(f, remaining, cost, horizon)
		if err != nil {
			return nil, err
		}
		remaining = remaining.Sub(rows.ConstructionDraws())
		stack.Facilities = append(stack.Facilities, rows)
	}

	sum := func(pick func(*FacilityRows) timeline.Row) timeline.Row {
		parts := make([]timeline.Row, len(stack.Facilities))
		for i, f := range stack.Facilities {
			parts[i] = pick(f)
		}
		return timeline.SumRows(horizon, parts...)
	}
	stack.Draws = sum(func(f *FacilityRows) timeline.Row { return f.Draws })
	stack.DSRADraws = sum(func(f *FacilityRows) timeline.Row { return f.DSRADraws })
	stack.Balance = sum(func(f *FacilityRows) timeline.Row { return f.Balance })
	stack.Interest = sum(func(f *FacilityRows) timeline.Row { return f.Interest })
	stack.CapitalizedInterest = sum(func(f *FacilityRows) timeline.Row { return f.CapitalizedInterest })
	stack.CashInterest = sum(func(f *FacilityRows) timeline.Row { return f.CashInterest })
	stack.Principal = sum(func(f *FacilityRows) timeline.Row { return f.Principal })
	stack.FeesUpfront = sum(func(f *FacilityRows) timeline.Row { return f.FeesUpfront })
	stack.FeesOngoing = sum(func(f *FacilityRows) timeline.Row { return f.FeesOngoing })
	stack.FeesCommitment = sum(func(f *FacilityRows) timeline.Row { return f.FeesCommitment })
	stack.DSRABalance = sum(func(f *FacilityRows) timeline.Row { return f.DSRABalance })
	stack.DSRAFunding = sum(func(f *FacilityRows) timeline.Row { return f.DSRAFunding })
	stack.DSRARelease = sum(func(f *FacilityRows) timeline.Row { return f.DSRARelease })
	stack.DebtService = sum(func(f *FacilityRows) timeline.Row { return f.DebtService })
	stack.Unfunded = timeline.SumRows(horizon, remaining)

	if stack.Unfunded.Sum().IsPositive() && len(facilities) > 0 {
		g.logger.Debug(fmt.Sprintf("debt stack left %s of cost requirement to equity",
			stack.Unfunded.Sum().StringFixed(2)),
			zap.String("op", "loans.Stack"),
		)
	}
	return stack, nil
}

// nonNegativeRow drops credits from the cost row; a negative cost is never a
// funding requirement.
func nonNegativeRow(r timeline.Row) timeline.Row {
	out := r.Clone()
	for i, v := range out {
		out[i] = mathutil.NonNegative(v)
	}
	return out
}
