// Package optimizer solves scenario fields for a target return: the residual
// land value a deal can pay for a required IRR, or the sale price it needs to
// break even.
package optimizer

import (
	"fmt"
	"math"

	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/format"
	"github.com/iwvelando/project-feasibility/pkg/optimization"
	"go.uber.org/zap"
)

const (
	targetCostItem = "costItem"
	targetUnitType = "unitType"

	// goalTolerance is how close the goal KPI must get to its target for the
	// search to stop before the field interval shrinks below its tolerance.
	goalTolerance = 1e-7
)

type Runner struct {
	logger *zap.Logger
	conf   *config.Configuration
}

type itemTarget struct {
	scenarioIndex int
	scenarioName  string
	kind          string
	itemIndex     int
	name          string
	cfg           *config.OptimizerConfig
	original      float64
}

type evaluation struct {
	value    float64
	achieved *float64
}

// residual is the signed distance of the goal KPI from its target; ok is false
// when the KPI is undefined at this value.
func (e evaluation) residual(target float64) (float64, bool) {
	if e.achieved == nil {
		return 0, false
	}
	return *e.achieved - target, true
}

// Result summarizes optimizer adjustments keyed by scenario name.
type Result struct {
	Summaries map[string][]optimization.Summary
}

// Empty indicates whether any optimizer adjustments were produced.
func (r Result) Empty() bool {
	return len(r.Summaries) == 0
}

// Apply attaches optimizer summaries to the provided forecast results.
func (r Result) Apply(forecasts []forecast.Forecast) {
	if len(r.Summaries) == 0 {
		return
	}
	for i := range forecasts {
		summaries, ok := r.Summaries[forecasts[i].Name]
		if !ok {
			continue
		}
		forecasts[i].Optimizations = append(forecasts[i].Optimizations, summaries...)
	}
}

// NewRunner constructs a Runner for the provided configuration.
func NewRunner(logger *zap.Logger, conf *config.Configuration) (*Runner, error) {
	if conf == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger, conf: conf}, nil
}

// Run executes all optimizer directives of the active scenarios and writes
// the solved values back into the configuration, so a following forecast
// runs on them. Directives in one scenario are solved in file order, each on
// top of the values already solved.
func (r *Runner) Run() (*Result, error) {
	targets, err := r.collectTargets()
	if err != nil {
		return nil, err
	}

	summaries := make(map[string][]optimization.Summary)
	for _, target := range targets {
		summary, err := r.optimizeItem(target)
		if err != nil {
			return nil, err
		}
		summaries[target.scenarioName] = append(summaries[target.scenarioName], summary)

		r.logger.Info("optimizer adjusted scenario field",
			zap.String("op", "optimizer.Run"),
			zap.String("scenario", target.scenarioName),
			zap.String("target", target.name),
			zap.String("field", target.cfg.Field),
			zap.String("goal", target.cfg.Goal),
			zap.Float64("goalTarget", target.cfg.Target),
			zap.Float64("originalNumeric", target.original),
			zap.Float64("optimizedNumeric", summary.Value),
			zap.String("optimizedDisplay", summary.ValueDisplay),
			zap.Int("iterations", summary.Iterations),
			zap.Bool("converged", summary.Converged),
		)
	}

	return &Result{Summaries: summaries}, nil
}

func (r *Runner) collectTargets() ([]itemTarget, error) {
	var targets []itemTarget

	for i := range r.conf.Scenarios {
		scenario := &r.conf.Scenarios[i]
		if !scenario.Active {
			continue
		}
		for j := range scenario.CostItems {
			item := &scenario.CostItems[j]
			if item.Optimizer == nil {
				continue
			}
			if err := item.Optimizer.Validate(config.OptimizerFieldBaseAmount); err != nil {
				return nil, fmt.Errorf("scenario %s cost item %s: %w", scenario.Name, item.ID, err)
			}
			targets = append(targets, itemTarget{
				scenarioIndex: i,
				scenarioName:  scenario.Name,
				kind:          targetCostItem,
				itemIndex:     j,
				name:          item.ID,
				cfg:           item.Optimizer,
				original:      item.BaseAmount,
			})
		}
		for j := range scenario.UnitTypes {
			unit := &scenario.UnitTypes[j]
			if unit.Optimizer == nil {
				continue
			}
			if err := unit.Optimizer.Validate(config.OptimizerFieldPrice, config.OptimizerFieldUnits); err != nil {
				return nil, fmt.Errorf("scenario %s unit type %s: %w", scenario.Name, unit.ID, err)
			}
			original := unit.Price
			if unit.Optimizer.Field == config.OptimizerFieldUnits {
				original = unit.Units
			}
			targets = append(targets, itemTarget{
				scenarioIndex: i,
				scenarioName:  scenario.Name,
				kind:          targetUnitType,
				itemIndex:     j,
				name:          unit.ID,
				cfg:           unit.Optimizer,
				original:      original,
			})
		}
	}

	for _, item := range r.conf.Common.CostItems {
		if item.Optimizer != nil {
			return nil, fmt.Errorf("optimizer directives on common cost items are not supported (cost item %s)", item.ID)
		}
	}
	for _, unit := range r.conf.Common.UnitTypes {
		if unit.Optimizer != nil {
			return nil, fmt.Errorf("optimizer directives on common unit types are not supported (unit type %s)", unit.ID)
		}
	}

	return targets, nil
}

func (r *Runner) optimizeItem(target itemTarget) (optimization.Summary, error) {
	cfg := target.cfg
	minVal := *cfg.Min
	maxVal := *cfg.Max

	lowerEval, err := r.evaluateTarget(target, minVal)
	if err != nil {
		return optimization.Summary{}, err
	}
	upperEval, err := r.evaluateTarget(target, maxVal)
	if err != nil {
		return optimization.Summary{}, err
	}

	lowerResidual, lowerOK := lowerEval.residual(cfg.Target)
	upperResidual, upperOK := upperEval.residual(cfg.Target)

	if !lowerOK || !upperOK || sameSign(lowerResidual, upperResidual) {
		chased := closest(cfg.Target, lowerEval, upperEval)
		summary := r.summarize(target, chased, 0, false)
		summary.Notes = []string{fmt.Sprintf(
			"unable to reach %s of %s within bounds %s to %s",
			cfg.Goal,
			formatGoal(cfg.Goal, cfg.Target),
			formatFieldDisplay(target.cfg.Field, minVal),
			formatFieldDisplay(target.cfg.Field, maxVal),
		)}
		r.setFieldValue(target, chased.value)
		return summary, nil
	}

	iterations := 0
	lower, upper := lowerEval, upperEval
	best := closest(cfg.Target, lowerEval, upperEval)
	bestResidual, _ := best.residual(cfg.Target)
	solved := math.Abs(bestResidual) <= goalTolerance
	for !solved && iterations < cfg.MaxIterations && math.Abs(upper.value-lower.value) > cfg.Tolerance {
		mid := lower.value + (upper.value-lower.value)/2
		evalMid, err := r.evaluateTarget(target, mid)
		if err != nil {
			return optimization.Summary{}, err
		}
		iterations++

		midResidual, ok := evalMid.residual(cfg.Target)
		if !ok {
			summary := r.summarize(target, best, iterations, false)
			summary.Notes = []string{fmt.Sprintf("%s is undefined at %s", cfg.Goal, formatFieldDisplay(cfg.Field, mid))}
			r.setFieldValue(target, best.value)
			return summary, nil
		}
		best = closest(cfg.Target, best, evalMid)
		if math.Abs(midResidual) <= goalTolerance {
			solved = true
			break
		}
		if lowerResidual, _ = lower.residual(cfg.Target); sameSign(lowerResidual, midResidual) {
			lower = evalMid
		} else {
			upper = evalMid
		}
	}

	converged := solved || math.Abs(upper.value-lower.value) <= cfg.Tolerance
	summary := r.summarize(target, best, iterations, converged)
	if !converged {
		summary.Notes = []string{fmt.Sprintf("stopped after %d iterations without converging", iterations)}
	}
	r.setFieldValue(target, best.value)
	return summary, nil
}

func (r *Runner) summarize(target itemTarget, eval evaluation, iterations int, converged bool) optimization.Summary {
	summary := optimization.Summary{
		Scope:           "scenario",
		TargetName:      target.name,
		Field:           target.cfg.Field,
		Goal:            target.cfg.Goal,
		Target:          target.cfg.Target,
		Original:        target.original,
		OriginalDisplay: formatFieldDisplay(target.cfg.Field, target.original),
		Value:           eval.value,
		ValueDisplay:    formatFieldDisplay(target.cfg.Field, eval.value),
		Achieved:        eval.achieved,
		Iterations:      iterations,
		Converged:       converged,
	}
	if residual, ok := eval.residual(target.cfg.Target); ok {
		summary.Residual = &residual
	}
	return summary
}

// evaluateTarget runs the target's scenario with the field set to value. The
// configuration is left untouched.
func (r *Runner) evaluateTarget(target itemTarget, value float64) (evaluation, error) {
	scenario := cloneScenario(r.conf.Scenarios[target.scenarioIndex])
	applyValue(&scenario, target, value)

	in, err := r.conf.ScenarioInput(scenario)
	if err != nil {
		return evaluation{}, fmt.Errorf("optimizer scenario %s: %w", target.scenarioName, err)
	}
	result, err := engine.Run(r.logger, in)
	if err != nil {
		return evaluation{}, fmt.Errorf("optimizer scenario %s at %s %s: %w",
			target.scenarioName, target.cfg.Field, formatFieldDisplay(target.cfg.Field, value), err)
	}

	return evaluation{value: value, achieved: goalValue(target.cfg.Goal, result)}, nil
}

func (r *Runner) setFieldValue(target itemTarget, value float64) {
	applyValue(&r.conf.Scenarios[target.scenarioIndex], target, value)
}

func applyValue(scenario *config.Scenario, target itemTarget, value float64) {
	switch target.kind {
	case targetCostItem:
		scenario.CostItems[target.itemIndex].BaseAmount = value
	case targetUnitType:
		if target.cfg.Field == config.OptimizerFieldUnits {
			scenario.UnitTypes[target.itemIndex].Units = value
		} else {
			scenario.UnitTypes[target.itemIndex].Price = value
		}
	}
}

func cloneScenario(s config.Scenario) config.Scenario {
	out := s
	out.CostItems = append([]config.CostItem(nil), s.CostItems...)
	out.UnitTypes = append([]config.UnitType(nil), s.UnitTypes...)
	return out
}

func goalValue(goal string, result *engine.Result) *float64 {
	switch goal {
	case config.OptimizerGoalEquityIRR:
		return result.KPIs.IRRPa
	case config.OptimizerGoalLPIRR:
		return result.KPIs.Detail.LPIRRPa
	case config.OptimizerGoalProjectIRR:
		return result.KPIs.Detail.ProjectIRRPa
	case config.OptimizerGoalMOIC:
		return result.KPIs.MOIC
	case config.OptimizerGoalNPV:
		npv := result.KPIs.NPV.InexactFloat64()
		return &npv
	}
	return nil
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

// closest returns whichever evaluation lands nearer the target, preferring
// defined values.
func closest(target float64, a, b evaluation) evaluation {
	ra, okA := a.residual(target)
	rb, okB := b.residual(target)
	switch {
	case !okA && !okB:
		return a
	case !okA:
		return b
	case !okB:
		return a
	case math.Abs(rb) < math.Abs(ra):
		return b
	}
	return a
}

func formatFieldDisplay(field string, value float64) string {
	if field == config.OptimizerFieldUnits {
		return fmt.Sprintf("%.2f units", value)
	}
	return format.Currency(value)
}

func formatGoal(goal string, value float64) string {
	switch goal {
	case config.OptimizerGoalMOIC:
		return format.Multiple(&value)
	case config.OptimizerGoalNPV:
		return format.Currency(value)
	}
	return format.Percent(&value)
}
