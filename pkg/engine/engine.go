package engine

import (
	"errors"
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/loans"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/rows"
	"github.com/iwvelando/project-feasibility/pkg/statements"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/iwvelando/project-feasibility/pkg/waterfall"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Financing is the aggregated debt schedule of the capital stack.
type Financing struct {
	Draws          timeline.Row    `json:"draws"`
	Balance        timeline.Row    `json:"balance"`
	Interest       timeline.Row    `json:"interest"`
	Principal      timeline.Row    `json:"principal"`
	FeesUpfront    timeline.Row    `json:"fees_upfront"`
	FeesOngoing    timeline.Row    `json:"fees_ongoing"`
	FeesCommitment timeline.Row    `json:"fees_commitment"`
	DSRABalance    timeline.Row    `json:"dsra_balance"`
	DSRAFunding    timeline.Row    `json:"dsra_funding"`
	DSRARelease    timeline.Row    `json:"dsra_release"`
	Detail         FinancingDetail `json:"detail"`
}

// FinancingDetail breaks the schedule down per facility.
type FinancingDetail struct {
	Tranches            []*loans.FacilityRows `json:"tranches"`
	CapitalizedInterest timeline.Row          `json:"capitalized_interest"`
	CashInterest        timeline.Row          `json:"cash_interest"`
	DebtService         timeline.Row          `json:"debt_service"`
	UnfundedCost        timeline.Row          `json:"unfunded_cost"`
}

// CashFlow is the cash-flow statement with its reconciliation.
type CashFlow struct {
	statements.CashFlow
	Detail CashFlowDetail `json:"detail"`
}

// CashFlowDetail carries the tie-out diagnostic and the rows behind it.
type CashFlowDetail struct {
	statements.Reconciliation
	BalanceSheet        statements.BalanceSheet `json:"balance_sheet"`
	EquityCalls         timeline.Row            `json:"equity_calls"`
	EquityContributions timeline.Row            `json:"equity_contributions"`
	EquityDistributions timeline.Row            `json:"equity_distributions"`
	PreEquityCashFlow   timeline.Row            `json:"pre_equity_cash_flow"`
}

// Rows are the cost and revenue rows the run was built from.
type Rows struct {
	Cost    rows.Aggregate `json:"cost"`
	Revenue rows.Aggregate `json:"revenue"`
}

// Result is the immutable output snapshot of a run.
type Result struct {
	Fingerprint string            `json:"fingerprint"`
	Timeline    timeline.Timeline `json:"timeline"`
	Labels      []string          `json:"labels"`
	Rows        Rows              `json:"rows"`
	Financing   Financing         `json:"financing"`
	CashFlow    CashFlow          `json:"cash_flow"`
	Waterfall   *waterfall.Result `json:"waterfall"`
	KPIs        KPIs              `json:"kpis"`
}

// Run computes the result snapshot for in. Configuration errors abort the run
// and match ErrConfiguration; every other degenerate case is represented in
// the result.
func Run(logger *zap.Logger, in Input) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in = in.Clone()
	fingerprint, err := in.Fingerprint()
	if err != nil {
		return nil, err
	}
	h := in.Timeline.Periods

	cost := rows.BuildCostRows(in.CostItems, h)
	revenue := rows.BuildRevenueRows(in.UnitTypes, h)

	stack, err := loans.NewScheduleGenerator(logger).Stack(in.Debt, cost.Total, h)
	if err != nil {
		var cfgErr *loans.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, &ConfigError{Field: "debt", Err: err}
		}
		return nil, fmt.Errorf("failed to schedule debt: %w", err)
	}
	fees := stack.Fees()

	preEquity := revenue.Total.Sub(cost.Total).
		Add(stack.Draws).Sub(stack.Principal).Sub(stack.CashInterest).Sub(fees).
		Sub(stack.DSRAFunding).Add(stack.DSRARelease)
	calls, distributable := equityFlows(preEquity, in.Equity, in.WaterfallConfig.Mode)

	wf, err := waterfall.Run(logger, waterfall.Input{
		Config:        in.WaterfallConfig,
		Tranches:      in.Equity,
		Contributions: calls,
		Distributable: distributable,
		Horizon:       h,
	})
	if err != nil {
		return nil, &ConfigError{Field: "waterfall_config", Err: err}
	}
	contributions := wf.LPContributions.Add(wf.GPContributions)

	cf := statements.Build(statements.Inputs{
		OpeningCash:   decimal.Zero,
		Revenue:       revenue.Total,
		Cost:          cost.Total,
		Draws:         stack.Draws,
		Principal:     stack.Principal,
		CashInterest:  stack.CashInterest,
		Fees:          fees,
		DSRAFunding:   stack.DSRAFunding,
		DSRARelease:   stack.DSRARelease,
		Contributions: contributions,
		Distributions: wf.Distributed,
	}, h)
	bs := statements.BuildBalanceSheet(statements.BalanceInputs{
		OpeningCash:         decimal.Zero,
		Cost:                cost.Total,
		CapitalizedInterest: stack.CapitalizedInterest,
		DebtBalance:         stack.Balance,
		DSRABalance:         stack.DSRABalance,
		Revenue:             revenue.Total,
		CashInterest:        stack.CashInterest,
		Fees:                fees,
		Contributions:       contributions,
		Distributions:       wf.Distributed,
	}, h)
	tie := statements.TieOut(cf.CashClosing, bs.Cash, mathutil.Tolerance)

	tl := timeline.Timeline{Periods: in.Timeline.Periods, StartDate: in.Timeline.StartDate}
	res := &Result{
		Fingerprint: fingerprint,
		Timeline:    tl,
		Labels:      tl.Labels(),
		Rows:        Rows{Cost: cost, Revenue: revenue},
		Financing: Financing{
			Draws:          stack.Draws,
			Balance:        stack.Balance,
			Interest:       stack.Interest,
			Principal:      stack.Principal,
			FeesUpfront:    stack.FeesUpfront,
			FeesOngoing:    stack.FeesOngoing,
			FeesCommitment: stack.FeesCommitment,
			DSRABalance:    stack.DSRABalance,
			DSRAFunding:    stack.DSRAFunding,
			DSRARelease:    stack.DSRARelease,
			Detail: FinancingDetail{
				Tranches:            stack.Facilities,
				CapitalizedInterest: stack.CapitalizedInterest,
				CashInterest:        stack.CashInterest,
				DebtService:         stack.DebtService,
				UnfundedCost:        stack.Unfunded,
			},
		},
		CashFlow: CashFlow{
			CashFlow: cf,
			Detail: CashFlowDetail{
				Reconciliation:      tie,
				BalanceSheet:        bs,
				EquityCalls:         calls,
				EquityContributions: contributions,
				EquityDistributions: wf.Distributed,
				PreEquityCashFlow:   preEquity,
			},
		},
		Waterfall: wf,
	}
	res.KPIs = computeKPIs(in, res)

	if !tie.OK {
		logger.Warn(fmt.Sprintf("cash does not tie out: max error %s in period %d",
			tie.MaxError.String(), tie.WorstPeriod),
			zap.String("op", "engine.Run"),
			zap.String("fingerprint", fingerprint),
		)
	}
	if unfunded := wf.UnfundedCalls.Sum(); unfunded.IsPositive() {
		logger.Warn(fmt.Sprintf("equity commitments leave %s of cash need unfunded", unfunded.StringFixed(2)),
			zap.String("op", "engine.Run"),
			zap.String("fingerprint", fingerprint),
		)
	}
	logger.Debug(fmt.Sprintf("run complete: cost %s, revenue %s, debt drawn %s, equity contributed %s",
		cost.Total.Sum().StringFixed(2), revenue.Total.Sum().StringFixed(2),
		stack.Draws.Sum().StringFixed(2), contributions.Sum().StringFixed(2)),
		zap.String("op", "engine.Run"),
		zap.String("fingerprint", fingerprint),
	)
	return res, nil
}

// equityFlows turns the pre-equity project cash flow into equity calls and
// distributable cash. A cash shortfall is called from the partners up to
// their remaining commitments; what they cannot cover stays a deficit. In
// american mode the surplus above the reserve for later scheduled
// shortfalls (a balloon repayment, a late fit-out) is distributable; in
// european mode the surplus is retained until the terminal period. Without
// tranches nothing is distributed and the cash stays in the project.
func equityFlows(preEquity timeline.Row, tranches []waterfall.Tranche, mode waterfall.Mode) (calls, distributable timeline.Row) {
	h := len(preEquity)
	calls = timeline.NewRow(h)
	distributable = timeline.NewRow(h)

	undrawn := decimal.Zero
	for _, tr := range tranches {
		undrawn = undrawn.Add(mathutil.NonNegative(tr.Commitment))
	}

	reserve := forwardReserve(preEquity)
	cash := decimal.Zero
	// deficit is shortfall already called but left unfunded; it is not
	// called again.
	deficit := decimal.Zero
	for t := 0; t < h; t++ {
		cash = cash.Add(preEquity[t])
		deficit = mathutil.Min(deficit, mathutil.NonNegative(cash.Neg()))
		if need := cash.Neg().Sub(deficit); need.IsPositive() {
			calls[t] = need
			funded := mathutil.Min(need, undrawn)
			undrawn = undrawn.Sub(funded)
			cash = cash.Add(funded)
			deficit = deficit.Add(need.Sub(funded))
		}
		if len(tranches) == 0 || !cash.IsPositive() {
			continue
		}
		switch {
		case t == h-1:
			distributable[t] = cash
			cash = decimal.Zero
		case mode == waterfall.ModeAmerican:
			if surplus := cash.Sub(reserve[t]); surplus.IsPositive() {
				distributable[t] = surplus
				cash = reserve[t]
			}
		}
	}
	return calls, distributable
}

// forwardReserve is, per period, the cash the project must hold to meet the
// deepest cumulative shortfall of the pre-equity flows that follow it.
// Distributions cannot be recalled, so this cash is not distributable.
func forwardReserve(preEquity timeline.Row) timeline.Row {
	h := len(preEquity)
	reserve := timeline.NewRow(h)
	lowest := decimal.Zero
	for t := h - 2; t >= 0; t-- {
		lowest = mathutil.Min(decimal.Zero, preEquity[t+1].Add(lowest))
		reserve[t] = lowest.Neg()
	}
	return reserve
}
