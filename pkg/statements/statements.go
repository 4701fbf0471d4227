// Package statements derives the project cash-flow statement from the engine
// rows and checks it against the cash a balance sheet implies.
package statements

import (
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
)

// Inputs are the cash movements of a run. Costs and fees are positive
// outflows; Draws includes reserve draws.
type Inputs struct {
	OpeningCash   decimal.Decimal
	Revenue       timeline.Row
	Cost          timeline.Row
	Draws         timeline.Row
	Principal     timeline.Row
	CashInterest  timeline.Row
	Fees          timeline.Row
	DSRAFunding   timeline.Row
	DSRARelease   timeline.Row
	Contributions timeline.Row
	Distributions timeline.Row
}

// CashFlow is the direct-method cash-flow statement. Interest and fees paid
// are operating, reserve deposits and releases investing.
type CashFlow struct {
	FromOperations timeline.Row    `json:"from_operations"`
	FromInvesting  timeline.Row    `json:"from_investing"`
	FromFinancing  timeline.Row    `json:"from_financing"`
	NetChange      timeline.Row    `json:"net_change"`
	CashOpening    decimal.Decimal `json:"cash_opening"`
	CashClosing    timeline.Row    `json:"cash_closing"`
}

// Build assembles the cash-flow statement over horizon periods.
func Build(in Inputs, horizon int) CashFlow {
	cf := CashFlow{
		FromOperations: timeline.NewRow(horizon),
		FromInvesting:  timeline.NewRow(horizon),
		FromFinancing:  timeline.NewRow(horizon),
		NetChange:      timeline.NewRow(horizon),
		CashOpening:    in.OpeningCash,
		CashClosing:    timeline.NewRow(horizon),
	}

	cash := in.OpeningCash
	for t := 0; t < horizon; t++ {
		cf.FromOperations[t] = in.Revenue.At(t).Sub(in.CashInterest.At(t)).Sub(in.Fees.At(t))
		cf.FromInvesting[t] = in.DSRARelease.At(t).Sub(in.Cost.At(t)).Sub(in.DSRAFunding.At(t))
		cf.FromFinancing[t] = in.Draws.At(t).Sub(in.Principal.At(t)).
			Add(in.Contributions.At(t)).Sub(in.Distributions.At(t))
		cf.NetChange[t] = cf.FromOperations[t].Add(cf.FromInvesting[t]).Add(cf.FromFinancing[t])
		cash = cash.Add(cf.NetChange[t])
		cf.CashClosing[t] = cash
	}
	return cf
}

// BalanceInputs are the stocks and income items the balance sheet is built
// from. DebtBalance and DSRABalance are closing balances per period; the
// other rows are flows.
type BalanceInputs struct {
	OpeningCash         decimal.Decimal
	Cost                timeline.Row
	CapitalizedInterest timeline.Row
	DebtBalance         timeline.Row
	DSRABalance         timeline.Row
	Revenue             timeline.Row
	CashInterest        timeline.Row
	Fees                timeline.Row
	Contributions       timeline.Row
	Distributions       timeline.Row
}

// BalanceSheet is the closing position per period. Capitalized interest is
// carried in the project asset, not expensed.
type BalanceSheet struct {
	Cash             timeline.Row `json:"cash"`
	RestrictedCash   timeline.Row `json:"restricted_cash"`
	ProjectAsset     timeline.Row `json:"project_asset"`
	Debt             timeline.Row `json:"debt"`
	PaidInCapital    timeline.Row `json:"paid_in_capital"`
	RetainedEarnings timeline.Row `json:"retained_earnings"`
}

// BuildBalanceSheet derives every balance from its own ledger and solves the
// accounting identity for cash.
func BuildBalanceSheet(in BalanceInputs, horizon int) BalanceSheet {
	bs := BalanceSheet{
		Cash:             timeline.NewRow(horizon),
		RestrictedCash:   timeline.NewRow(horizon),
		ProjectAsset:     timeline.NewRow(horizon),
		Debt:             timeline.NewRow(horizon),
		PaidInCapital:    timeline.NewRow(horizon),
		RetainedEarnings: timeline.NewRow(horizon),
	}

	asset := decimal.Zero
	paidIn := decimal.Zero
	retained := in.OpeningCash
	for t := 0; t < horizon; t++ {
		asset = asset.Add(in.Cost.At(t)).Add(in.CapitalizedInterest.At(t))
		paidIn = paidIn.Add(in.Contributions.At(t)).Sub(in.Distributions.At(t))
		retained = retained.Add(in.Revenue.At(t)).Sub(in.CashInterest.At(t)).Sub(in.Fees.At(t))

		bs.ProjectAsset[t] = asset
		bs.RestrictedCash[t] = in.DSRABalance.At(t)
		bs.Debt[t] = in.DebtBalance.At(t)
		bs.PaidInCapital[t] = paidIn
		bs.RetainedEarnings[t] = retained
		bs.Cash[t] = bs.Debt[t].Add(paidIn).Add(retained).Sub(asset).Sub(bs.RestrictedCash[t])
	}
	return bs
}

// ImpliedCash returns the cash each period's balance sheet implies.
func ImpliedCash(in BalanceInputs, horizon int) timeline.Row {
	return BuildBalanceSheet(in, horizon).Cash
}

// Reconciliation is the result of tying statement cash out to balance-sheet
// cash.
type Reconciliation struct {
	OK          bool            `json:"tie_out_ok_cash"`
	MaxError    decimal.Decimal `json:"max_cash_error"`
	WorstPeriod int             `json:"worst_period"`
}

// TieOut compares closing with implied period by period. The tie-out holds
// when the largest difference is below tolerance; a mismatch is reported, never
// returned as an error. WorstPeriod is -1 for an empty horizon.
func TieOut(closing, implied timeline.Row, tolerance decimal.Decimal) Reconciliation {
	res := Reconciliation{OK: true, MaxError: decimal.Zero, WorstPeriod: -1}
	n := len(closing)
	if len(implied) > n {
		n = len(implied)
	}
	for t := 0; t < n; t++ {
		diff := closing.At(t).Sub(implied.At(t)).Abs()
		if res.WorstPeriod < 0 || diff.GreaterThan(res.MaxError) {
			res.MaxError = diff
			res.WorstPeriod = t
		}
	}
	res.OK = res.MaxError.LessThan(tolerance)
	return res
}
