package finance

import (
	"math"
	"sort"

	"github.com/iwvelando/project-feasibility/pkg/constants"
)

// NPVAt discounts flows at a periodic rate; flows[0] is undiscounted.
func NPVAt(rate float64, flows []float64) float64 {
	total := 0.0
	factor := 1.0
	for _, cf := range flows {
		total += cf / factor
		factor *= 1 + rate
	}
	return total
}

func npvDerivative(rate float64, flows []float64) float64 {
	total := 0.0
	for t, cf := range flows {
		if t == 0 {
			continue
		}
		total -= float64(t) * cf / math.Pow(1+rate, float64(t+1))
	}
	return total
}

// NPV discounts monthly flows at the monthly rate implied by an effective
// annual discount rate, over the full horizon.
func NPV(ratePa float64, flows []float64) float64 {
	return NPVAt(PeriodRate(ratePa), flows)
}

// HasSignChange reports whether flows contain both a strictly positive and a
// strictly negative value; without one no IRR exists.
func HasSignChange(flows []float64) bool {
	positive, negative := false, false
	for _, cf := range flows {
		if cf > 0 {
			positive = true
		} else if cf < 0 {
			negative = true
		}
	}
	return positive && negative
}

// IRR solves for the periodic rate at which the flows have zero NPV. It runs
// Newton-Raphson from a small positive guess and falls back to bisection over
// a bracketed root when Newton leaves the admissible range or stalls. It
// returns nil when the flows have no sign change or no root can be bracketed.
func IRR(flows []float64) *float64 {
	if !HasSignChange(flows) {
		return nil
	}

	scale := 0.0
	for _, cf := range flows {
		scale += math.Abs(cf)
	}
	converged := func(rate float64) bool {
		return math.Abs(NPVAt(rate, flows)) <= 1e-7*scale
	}

	rate := 0.01
	for i := 0; i < constants.IRRMaxIterations; i++ {
		f := NPVAt(rate, flows)
		df := npvDerivative(rate, flows)
		if df == 0 || math.IsNaN(df) || math.IsInf(df, 0) {
			break
		}
		next := rate - f/df
		if math.IsNaN(next) || next <= constants.IRRLowerBound || next >= constants.IRRUpperBound {
			break
		}
		if math.Abs(next-rate) < constants.IRRTolerance {
			if converged(next) {
				return &next
			}
			break
		}
		rate = next
	}

	lo, hi, ok := bracket(flows)
	if !ok {
		return nil
	}
	result := bisect(flows, lo, hi)
	return &result
}

var bracketGrid = []float64{
	constants.IRRLowerBound, -0.9, -0.75, -0.5, -0.3, -0.2, -0.1, -0.05, -0.02, -0.01,
	0, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1, 2, 5, constants.IRRUpperBound,
}

// bracket picks, among grid intervals with an NPV sign change, the one whose
// midpoint is closest to zero. That is the economically meaningful root when
// the flows admit several.
func bracket(flows []float64) (lo, hi float64, ok bool) {
	type interval struct{ lo, hi float64 }
	var candidates []interval
	prev := NPVAt(bracketGrid[0], flows)
	for i := 1; i < len(bracketGrid); i++ {
		cur := NPVAt(bracketGrid[i], flows)
		if prev == 0 {
			candidates = append(candidates, interval{bracketGrid[i-1], bracketGrid[i-1]})
		} else if (prev < 0) != (cur < 0) || cur == 0 {
			candidates = append(candidates, interval{bracketGrid[i-1], bracketGrid[i]})
		}
		prev = cur
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].lo+candidates[i].hi) < math.Abs(candidates[j].lo+candidates[j].hi)
	})
	return candidates[0].lo, candidates[0].hi, true
}

func bisect(flows []float64, lo, hi float64) float64 {
	fLo := NPVAt(lo, flows)
	for i := 0; i < constants.IRRMaxIterations && hi-lo > constants.IRRTolerance; i++ {
		mid := (lo + hi) / 2
		fMid := NPVAt(mid, flows)
		if fMid == 0 {
			return mid
		}
		if (fMid < 0) == (fLo < 0) {
			lo, fLo = mid, fMid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
