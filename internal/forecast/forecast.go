// Package forecast runs the configured scenarios through the engine and
// collects their result snapshots.
package forecast

import (
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/optimization"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Forecast holds the result of one scenario.
type Forecast struct {
	Name          string                 `json:"name"`
	RunID         string                 `json:"runId"`
	Result        *engine.Result         `json:"result"`
	Notes         []string               `json:"notes,omitempty"`
	Optimizations []optimization.Summary `json:"optimizations,omitempty"`
}

// RunID derives a stable run identifier from an input fingerprint, so the
// same inputs always carry the same id.
func RunID(fingerprint string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fingerprint)).String()
}

// Compute produces the result snapshot of one input. engine.Run is the
// plain implementation; callers may wrap it with memoization.
type Compute func(logger *zap.Logger, in engine.Input) (*engine.Result, error)

// GetForecast runs every active scenario. Scenarios are independent runs over
// their own inputs, so they are computed concurrently; results keep the
// configuration order.
func GetForecast(logger *zap.Logger, conf config.Configuration) ([]Forecast, error) {
	return GetForecastWith(logger, conf, engine.Run)
}

// GetForecastWith is GetForecast with the result snapshots produced by compute.
func GetForecastWith(logger *zap.Logger, conf config.Configuration, compute Compute) ([]Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if compute == nil {
		compute = engine.Run
	}

	var scenarios []config.Scenario
	for _, scenario := range conf.Scenarios {
		if !scenario.Active {
			logger.Debug(fmt.Sprintf("skipping scenario %s because it is inactive", scenario.Name),
				zap.String("op", "forecast.GetForecast"),
			)
			continue
		}
		scenarios = append(scenarios, scenario)
	}

	results := make([]Forecast, len(scenarios))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, scenario := range scenarios {
		g.Go(func() error {
			fc, err := runScenario(logger, &conf, scenario, compute)
			if err != nil {
				return err
			}
			results[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// RunScenario converts one scenario and runs it.
func RunScenario(logger *zap.Logger, conf *config.Configuration, scenario config.Scenario) (Forecast, error) {
	return runScenario(logger, conf, scenario, engine.Run)
}

func runScenario(logger *zap.Logger, conf *config.Configuration, scenario config.Scenario, compute Compute) (Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	in, err := conf.ScenarioInput(scenario)
	if err != nil {
		return Forecast{}, err
	}

	fc, err := run(logger, scenario.Name, in, compute)
	if err != nil {
		return Forecast{}, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	return fc, nil
}

// Run computes a named forecast from an input snapshot.
func Run(logger *zap.Logger, name string, in engine.Input) (Forecast, error) {
	return run(logger, name, in, engine.Run)
}

// New wraps a computed result as a named forecast.
func New(name string, result *engine.Result) Forecast {
	return Forecast{
		Name:   name,
		RunID:  RunID(result.Fingerprint),
		Result: result,
		Notes:  notes(result),
	}
}

func run(logger *zap.Logger, name string, in engine.Input, compute Compute) (Forecast, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	result, err := compute(logger.With(zap.String("scenario", name)), in)
	if err != nil {
		return Forecast{}, err
	}

	fc := New(name, result)
	logger.Debug(fmt.Sprintf("computed scenario %s", name),
		zap.String("op", "forecast.Run"),
		zap.String("runId", fc.RunID),
	)
	return fc, nil
}

// Preview computes the committed input and a proposed change to it as two
// independent runs. change receives its own clone, so nothing it does can
// reach the committed result.
func Preview(logger *zap.Logger, current engine.Input, change func(*engine.Input)) (committed, proposed Forecast, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	candidate := current.Clone()
	if change != nil {
		change(&candidate)
	}

	var g errgroup.Group
	g.Go(func() error {
		var runErr error
		committed, runErr = Run(logger, "current", current.Clone())
		return runErr
	})
	g.Go(func() error {
		var runErr error
		proposed, runErr = Run(logger, "preview", candidate)
		return runErr
	})
	if err := g.Wait(); err != nil {
		return Forecast{}, Forecast{}, err
	}
	return committed, proposed, nil
}

// notes lists the conditions a reader of the result should know about.
func notes(result *engine.Result) []string {
	var out []string
	if !result.CashFlow.Detail.OK {
		out = append(out, fmt.Sprintf("cash does not tie out to the balance sheet: max error %s in period %d",
			result.CashFlow.Detail.MaxError.StringFixed(2), result.CashFlow.Detail.WorstPeriod))
	}
	if unfunded := result.KPIs.Detail.UnfundedEquity; unfunded.IsPositive() {
		out = append(out, fmt.Sprintf("equity commitments leave %s unfunded", unfunded.StringFixed(2)))
	}
	if result.KPIs.IRRPa == nil {
		out = append(out, "equity IRR is undefined for this cash flow")
	}
	if wf := result.Waterfall; wf != nil && wf.Clawback.IsPositive() {
		out = append(out, fmt.Sprintf("GP clawback of %s at termination", wf.Clawback.StringFixed(2)))
	}
	return out
}
