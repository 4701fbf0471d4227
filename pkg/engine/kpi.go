package engine

import (
	"github.com/iwvelando/project-feasibility/pkg/finance"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/iwvelando/project-feasibility/pkg/waterfall"
	"github.com/shopspring/decimal"
)

// KPIs are the headline equity returns of a run. Rates are annual fractions;
// nil means the metric is undefined for this cash flow.
type KPIs struct {
	IRRPa  *float64        `json:"irr_pa"`
	NPV    decimal.Decimal `json:"npv"`
	Profit decimal.Decimal `json:"profit"`
	MOIC   *float64        `json:"moic"`
	TVPI   *float64        `json:"tvpi"`
	DPI    *float64        `json:"dpi"`
	RVPI   *float64        `json:"rvpi"`
	Detail KPIDetail       `json:"detail"`
}

// KPIDetail holds the supporting metrics.
type KPIDetail struct {
	ProjectIRRPa      *float64          `json:"project_irr_pa"`
	ProjectProfit     decimal.Decimal   `json:"project_profit"`
	LPIRRPa           *float64          `json:"lp_irr_pa"`
	GPIRRPa           *float64          `json:"gp_irr_pa"`
	LP                finance.Multiples `json:"lp_multiples"`
	GP                finance.Multiples `json:"gp_multiples"`
	EquityContributed decimal.Decimal   `json:"equity_contributed"`
	EquityDistributed decimal.Decimal   `json:"equity_distributed"`
	ResidualCash      decimal.Decimal   `json:"residual_cash"`
	PeakEquity        decimal.Decimal   `json:"peak_equity"`
	PeakDebt          decimal.Decimal   `json:"peak_debt"`
	UnfundedEquity    decimal.Decimal   `json:"unfunded_equity"`
	DiscountRatePa    decimal.Decimal   `json:"discount_rate_pa"`
}

func computeKPIs(in Input, res *Result) KPIs {
	wf := res.Waterfall
	contributions := res.CashFlow.Detail.EquityContributions
	distributions := wf.LPDistributions.Add(wf.GPDistributions)
	equityFlows := distributions.Sub(contributions)

	residual := decimal.Zero
	if n := len(res.CashFlow.CashClosing); n > 0 {
		residual = mathutil.NonNegative(res.CashFlow.CashClosing[n-1])
	}
	contributed := contributions.Sum()
	distributed := distributions.Sum()
	multiples := finance.CalculateMultiples(contributed.InexactFloat64(), distributed.InexactFloat64(),
		residual.InexactFloat64())

	projectFlows := res.Rows.Revenue.Total.Sub(res.Rows.Cost.Total)
	discount := in.Valuation.DiscountRatePa.InexactFloat64()

	kpis := KPIs{
		IRRPa:  finance.AnnualizeMonthlyPtr(finance.IRR(equityFlows.Float64s())),
		NPV:    mathutil.Round(decimal.NewFromFloat(finance.NPV(discount, equityFlows.Float64s()))),
		Profit: distributed.Add(residual).Sub(contributed),
		MOIC:   multiples.MOIC,
		TVPI:   multiples.TVPI,
		DPI:    multiples.DPI,
		RVPI:   multiples.RVPI,
		Detail: KPIDetail{
			ProjectIRRPa:      finance.AnnualizeMonthlyPtr(finance.IRR(projectFlows.Float64s())),
			ProjectProfit:     projectFlows.Sum(),
			LPIRRPa:           classIRR(wf, waterfall.RoleLP),
			GPIRRPa:           classIRR(wf, waterfall.RoleGP),
			LP:                finance.CalculateMultiples(wf.LP.Contributed.InexactFloat64(), wf.LP.Distributed.InexactFloat64(), 0),
			GP:                finance.CalculateMultiples(wf.GP.Contributed.InexactFloat64(), wf.GP.Distributed.InexactFloat64(), 0),
			EquityContributed: contributed,
			EquityDistributed: distributed,
			ResidualCash:      residual,
			PeakEquity:        peak(contributions.Sub(distributions).Cumulative()),
			PeakDebt:          peak(res.Financing.Balance),
			UnfundedEquity:    wf.UnfundedCalls.Sum(),
			DiscountRatePa:    in.Valuation.DiscountRatePa,
		},
	}
	return kpis
}

func classIRR(wf *waterfall.Result, role waterfall.Role) *float64 {
	flows := wf.LPDistributions.Sub(wf.LPContributions)
	if role == waterfall.RoleGP {
		flows = wf.GPDistributions.Sub(wf.GPContributions)
	}
	return finance.AnnualizeMonthlyPtr(finance.IRR(flows.Float64s()))
}

func peak(r timeline.Row) decimal.Decimal {
	highest := decimal.Zero
	for _, v := range r {
		highest = mathutil.Max(highest, v)
	}
	return highest
}
