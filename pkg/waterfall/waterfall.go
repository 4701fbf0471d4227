package waterfall

import (
	"fmt"
	"math"

	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Input is everything one waterfall run needs. Contributions are the equity
// calls per period and Distributable the cash available to partners.
type Input struct {
	Config        Config
	Tranches      []Tranche
	Contributions timeline.Row
	Distributable timeline.Row
	Horizon       int
}

// CapitalAccount is the per-period ledger of one tranche. Profit is every
// distribution beyond returned capital, Promote the part of it that is carry.
type CapitalAccount struct {
	Key                string       `json:"key"`
	Role               Role         `json:"role"`
	Contributed        timeline.Row `json:"contributed"`
	ReturnedCapital    timeline.Row `json:"returned_capital"`
	PreferredAccrued   timeline.Row `json:"preferred_accrued"`
	PreferredPaid      timeline.Row `json:"preferred_paid"`
	Profit             timeline.Row `json:"profit"`
	Promote            timeline.Row `json:"promote"`
	Distributions      timeline.Row `json:"distributions"`
	CapitalOutstanding timeline.Row `json:"capital_outstanding"`
	PreferredUnpaid    timeline.Row `json:"preferred_unpaid"`
}

// NetFlows returns distributions minus contributions per period.
func (a CapitalAccount) NetFlows() timeline.Row {
	return a.Distributions.Sub(a.Contributed)
}

// ClassSummary totals one partner class over the run.
type ClassSummary struct {
	Contributed decimal.Decimal `json:"contributed"`
	Distributed decimal.Decimal `json:"distributed"`
	Profit      decimal.Decimal `json:"profit"`
}

// Result is the outcome of a waterfall run.
type Result struct {
	LP               ClassSummary     `json:"lp"`
	GP               ClassSummary     `json:"gp"`
	CapitalAccounts  []CapitalAccount `json:"capital_accounts"`
	CarryPaid        timeline.Row     `json:"carry_paid"`
	LPContributions  timeline.Row     `json:"lp_contributions"`
	GPContributions  timeline.Row     `json:"gp_contributions"`
	LPDistributions  timeline.Row     `json:"lp_distributions"`
	GPDistributions  timeline.Row     `json:"gp_distributions"`
	Distributed      timeline.Row     `json:"distributed"`
	UnfundedCalls    timeline.Row     `json:"unfunded_commitments"`
	Clawback         decimal.Decimal  `json:"clawback"`
	HurdlesReached   int              `json:"hurdles_reached"`
	UndistributedEnd decimal.Decimal  `json:"undistributed_end"`
}

type runner struct {
	logger   *zap.Logger
	cfg      Config
	tranches []Tranche
	accounts []*CapitalAccount
	horizon  int

	contributed []decimal.Decimal
	distributed []decimal.Decimal
	returned    []decimal.Decimal
	capital     []decimal.Decimal
	prefUnpaid  []decimal.Decimal
	prefRates   []decimal.Decimal
	lpFlows     []float64
	carry       decimal.Decimal
	carryRow    timeline.Row
	clawed      decimal.Decimal
	maxLevel    int
}

// Run validates the definition and allocates every period's contributions and
// distributable cash. In european mode distributable cash is held and paid out
// once in the terminal period.
func Run(logger *zap.Logger, in Input) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Validate(in.Config, in.Tranches); err != nil {
		return nil, err
	}

	r := newRunner(logger, in)
	unfunded := timeline.NewRow(in.Horizon)
	distributed := timeline.NewRow(in.Horizon)
	pending := decimal.Zero

	for t := 0; t < in.Horizon; t++ {
		unfunded[t] = r.contribute(t, mathutil.NonNegative(in.Contributions.At(t)))
		r.accrue(t)

		amount := mathutil.NonNegative(in.Distributable.At(t))
		if in.Config.Mode == ModeEuropean {
			pending = pending.Add(amount)
			amount = decimal.Zero
			if t == in.Horizon-1 {
				amount, pending = pending, decimal.Zero
			}
		}
		if amount.IsPositive() && len(r.tranches) > 0 {
			distributed[t] = r.distribute(t, amount)
		}
		r.close(t)
	}

	if in.Horizon > 0 {
		r.clawback(in.Horizon - 1)
	}
	res := r.result()
	res.Distributed = distributed
	res.UnfundedCalls = unfunded
	res.UndistributedEnd = in.Distributable.Sum().Sub(distributed.Sum())

	logger.Debug(fmt.Sprintf("waterfall distributed %s to LP and %s to GP, carry %s, clawback %s",
		res.LP.Distributed.StringFixed(2), res.GP.Distributed.StringFixed(2),
		res.CarryPaid.Sum().StringFixed(2), res.Clawback.StringFixed(2)),
		zap.String("op", "waterfall.Run"),
		zap.Int("hurdles_reached", res.HurdlesReached),
	)
	return res, nil
}

func newRunner(logger *zap.Logger, in Input) *runner {
	n := len(in.Tranches)
	r := &runner{
		logger:      logger,
		cfg:         in.Config,
		tranches:    in.Tranches,
		horizon:     in.Horizon,
		accounts:    make([]*CapitalAccount, n),
		contributed: zeros(n),
		distributed: zeros(n),
		returned:    zeros(n),
		capital:     zeros(n),
		prefUnpaid:  zeros(n),
		prefRates:   zeros(n),
		lpFlows:     make([]float64, in.Horizon),
		carry:       decimal.Zero,
		clawed:      decimal.Zero,
		carryRow:    timeline.NewRow(in.Horizon),
	}
	for i, tr := range in.Tranches {
		r.accounts[i] = &CapitalAccount{
			Key:                tr.Key,
			Role:               tr.Role,
			Contributed:        timeline.NewRow(in.Horizon),
			ReturnedCapital:    timeline.NewRow(in.Horizon),
			PreferredAccrued:   timeline.NewRow(in.Horizon),
			PreferredPaid:      timeline.NewRow(in.Horizon),
			Profit:             timeline.NewRow(in.Horizon),
			Promote:            timeline.NewRow(in.Horizon),
			Distributions:      timeline.NewRow(in.Horizon),
			CapitalOutstanding: timeline.NewRow(in.Horizon),
			PreferredUnpaid:    timeline.NewRow(in.Horizon),
		}
		if tr.Role == RoleGP && in.Config.AccrualLevel == AccrueLPOnly {
			continue
		}
		r.prefRates[i] = monthlyPreferredRate(tr.PreferredReturn)
	}
	return r
}

func zeros(n int) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = decimal.Zero
	}
	return out
}

// monthlyPreferredRate converts the annual preferred rate to the rate applied
// each period: r/12 for monthly and simple accrual, the compounded monthly
// equivalent for annual accrual.
func monthlyPreferredRate(pr PreferredReturn) decimal.Decimal {
	if pr.Compounding == CompoundAnnual {
		monthly := math.Pow(1+pr.RatePa.InexactFloat64(), 1/float64(constants.MonthsPerYear)) - 1
		return mathutil.RoundRate(decimal.NewFromFloat(monthly))
	}
	return mathutil.MonthlyRate(pr.RatePa)
}

// contribute funds an equity call pro rata to each tranche's undrawn
// commitment and returns the part no commitment could cover.
func (r *runner) contribute(t int, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	undrawn := make([]decimal.Decimal, len(r.tranches))
	for i, tr := range r.tranches {
		undrawn[i] = mathutil.NonNegative(tr.Commitment.Sub(r.contributed[i]))
	}
	shares, paid := payProRata(amount, undrawn, undrawn)
	for i, share := range shares {
		if share.IsZero() {
			continue
		}
		r.contributed[i] = r.contributed[i].Add(share)
		r.capital[i] = r.capital[i].Add(share)
		r.accounts[i].Contributed[t] = r.accounts[i].Contributed[t].Add(share)
		if r.tranches[i].Role == RoleLP {
			r.lpFlows[t] -= share.InexactFloat64()
		}
	}
	return amount.Sub(paid)
}

// accrue adds this period's preferred return. The base includes capital
// contributed this period; compounding conventions also accrue on unpaid
// preferred.
func (r *runner) accrue(t int) {
	for i, tr := range r.tranches {
		if r.prefRates[i].IsZero() {
			continue
		}
		base := r.capital[i]
		if tr.PreferredReturn.Compounding != CompoundSimple {
			base = base.Add(r.prefUnpaid[i])
		}
		accrual := mathutil.Round(base.Mul(r.prefRates[i]))
		r.prefUnpaid[i] = r.prefUnpaid[i].Add(accrual)
		r.accounts[i].PreferredAccrued[t] = accrual
	}
}

func (r *runner) close(t int) {
	for i, a := range r.accounts {
		a.CapitalOutstanding[t] = r.capital[i]
		a.PreferredUnpaid[t] = r.prefUnpaid[i]
	}
}

// pay credits a distribution to tranche i.
func (r *runner) pay(t, i int, amount decimal.Decimal, profit bool) {
	if amount.IsZero() {
		return
	}
	a := r.accounts[i]
	a.Distributions[t] = a.Distributions[t].Add(amount)
	r.distributed[i] = r.distributed[i].Add(amount)
	if profit {
		a.Profit[t] = a.Profit[t].Add(amount)
	}
	if r.tranches[i].Role == RoleLP {
		r.lpFlows[t] += amount.InexactFloat64()
	}
}

// distribute runs return of capital, preferred return and the hurdle tiers
// over amount. Hurdle status is re-tested from the bottom tier on every call,
// so an IRR hurdle the LP has since fallen below is earned again first.
func (r *runner) distribute(t int, amount decimal.Decimal) decimal.Decimal {
	remaining := amount

	shares, paid := payProRata(remaining, r.capital, r.capital)
	for i, share := range shares {
		if share.IsZero() {
			continue
		}
		r.capital[i] = r.capital[i].Sub(share)
		r.returned[i] = r.returned[i].Add(share)
		r.accounts[i].ReturnedCapital[t] = r.accounts[i].ReturnedCapital[t].Add(share)
		r.pay(t, i, share, false)
	}
	remaining = remaining.Sub(paid)

	shares, paid = payProRata(remaining, r.prefUnpaid, r.prefUnpaid)
	for i, share := range shares {
		if share.IsZero() {
			continue
		}
		r.prefUnpaid[i] = r.prefUnpaid[i].Sub(share)
		r.accounts[i].PreferredPaid[t] = r.accounts[i].PreferredPaid[t].Add(share)
		r.pay(t, i, share, true)
	}
	remaining = remaining.Sub(paid)

	hurdles := r.cfg.Hurdles
	level := 0
	for remaining.IsPositive() {
		if level == 0 {
			band, bounded := remaining, false
			if len(hurdles) > 0 {
				limit, ok := r.bandLimit(t, hurdles[0], r.lpCapitalShare())
				if ok && limit.LessThanOrEqual(remaining) {
					band, bounded = limit, true
				}
			}
			r.payByCapital(t, band)
			remaining = remaining.Sub(band)
			if !bounded {
				break
			}
			level = 1
			r.reached(t, level)
			continue
		}

		h := hurdles[level-1]
		if h.Catchup.Enabled {
			if x := r.catchupAmount(h.Catchup.GPTargetShareOfProfits); x.IsPositive() {
				pay := mathutil.Min(remaining, x)
				r.payGP(t, pay, pay.Sub(pay.Mul(r.gpCapitalShare())))
				remaining = remaining.Sub(pay)
				if !remaining.IsPositive() {
					break
				}
			}
		}

		band, bounded := remaining, false
		if level < len(hurdles) {
			limit, ok := r.bandLimit(t, hurdles[level], h.SplitAfterCatchup.LP)
			if ok && limit.LessThanOrEqual(remaining) {
				band, bounded = limit, true
			}
		}
		r.paySplit(t, band, h.SplitAfterCatchup)
		remaining = remaining.Sub(band)
		if !bounded {
			break
		}
		level++
		r.reached(t, level)
	}
	return amount.Sub(remaining)
}

func (r *runner) reached(t, level int) {
	if level > r.maxLevel {
		r.maxLevel = level
		r.logger.Debug(fmt.Sprintf("hurdle %d reached in period %d", level, t),
			zap.String("op", "waterfall.distribute"),
		)
	}
}

// classTotal sums per-tranche values for one role.
func (r *runner) classTotal(values []decimal.Decimal, role Role) decimal.Decimal {
	total := decimal.Zero
	for i, tr := range r.tranches {
		if tr.Role == role {
			total = total.Add(values[i])
		}
	}
	return total
}

func (r *runner) lpCapitalShare() decimal.Decimal {
	total := r.classTotal(r.contributed, RoleLP).Add(r.classTotal(r.contributed, RoleGP))
	if !total.IsPositive() {
		return decimal.Zero
	}
	return r.classTotal(r.contributed, RoleLP).Div(total)
}

func (r *runner) gpCapitalShare() decimal.Decimal {
	total := r.classTotal(r.contributed, RoleLP).Add(r.classTotal(r.contributed, RoleGP))
	if !total.IsPositive() {
		return decimal.Zero
	}
	return r.classTotal(r.contributed, RoleGP).Div(total)
}

// lpNeed is the LP cash still required in period t for the LP class to reach
// the hurdle's trigger.
func (r *runner) lpNeed(t int, h Hurdle) decimal.Decimal {
	contributed := r.classTotal(r.contributed, RoleLP)
	if !contributed.IsPositive() {
		return decimal.Zero
	}
	switch h.Trigger.Type {
	case TriggerMultiple:
		distributed := r.classTotal(r.distributed, RoleLP)
		return mathutil.NonNegative(h.Trigger.Threshold.Mul(contributed).Sub(distributed))
	case TriggerIRR:
		monthly := math.Pow(1+h.Trigger.Threshold.InexactFloat64(), 1/float64(constants.MonthsPerYear)) - 1
		futureValue := 0.0
		for k := 0; k <= t; k++ {
			futureValue += r.lpFlows[k] * math.Pow(1+monthly, float64(t-k))
		}
		return mathutil.NonNegative(decimal.NewFromFloat(-futureValue).RoundCeil(2))
	}
	return decimal.Zero
}

// bandLimit converts the LP need of the next hurdle into the tier size that
// delivers it, given the LP's share of the tier. ok is false when the tier is
// unbounded because the LP receives nothing from it.
func (r *runner) bandLimit(t int, next Hurdle, lpShare decimal.Decimal) (decimal.Decimal, bool) {
	need := r.lpNeed(t, next)
	if !need.IsPositive() {
		return decimal.Zero, true
	}
	if !lpShare.IsPositive() {
		return decimal.Zero, false
	}
	return need.Div(lpShare).RoundCeil(2), true
}

// catchupAmount is the GP-only cash that lifts the GP to share tau of total
// profits: G + X = tau (P + X).
func (r *runner) catchupAmount(tau decimal.Decimal) decimal.Decimal {
	profit := decimal.Zero
	gpProfit := decimal.Zero
	for i, tr := range r.tranches {
		p := r.distributed[i].Sub(r.returned[i])
		profit = profit.Add(p)
		if tr.Role == RoleGP {
			gpProfit = gpProfit.Add(p)
		}
	}
	x := tau.Mul(profit).Sub(gpProfit).Div(mathutil.One.Sub(tau))
	return mathutil.NonNegative(x.RoundCeil(2))
}

// payByCapital pays amount to every tranche pro rata to contributed capital.
func (r *runner) payByCapital(t int, amount decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	shares, _ := payProRata(amount, r.contributed, nil)
	for i, share := range shares {
		r.pay(t, i, share, true)
	}
}

// paySplit divides amount between the classes. Any GP cash above the GP's
// pro rata capital share is promote.
func (r *runner) paySplit(t int, amount decimal.Decimal, split Split) {
	if !amount.IsPositive() {
		return
	}
	lpIdx := r.roleIndexes(RoleLP)
	lpPart := mathutil.Round(amount.Mul(split.LP))
	if len(lpIdx) == 0 {
		lpPart = decimal.Zero
	}
	gpPart := amount.Sub(lpPart)
	if len(r.roleIndexes(RoleGP)) == 0 {
		lpPart, gpPart = amount, decimal.Zero
	}

	if lpPart.IsPositive() {
		weights := make([]decimal.Decimal, len(lpIdx))
		for j, i := range lpIdx {
			weights[j] = r.contributed[i]
		}
		shares, _ := payProRata(lpPart, weights, nil)
		for j, i := range lpIdx {
			r.pay(t, i, shares[j], true)
		}
	}
	carry := mathutil.NonNegative(gpPart.Sub(mathutil.Round(amount.Mul(r.gpCapitalShare()))))
	r.payGP(t, gpPart, carry)
}

// payGP pays amount to the GP tranches pro rata to commitment; carry is the
// promote part of it.
func (r *runner) payGP(t int, amount, carry decimal.Decimal) {
	if !amount.IsPositive() {
		return
	}
	gpIdx := r.roleIndexes(RoleGP)
	weights := make([]decimal.Decimal, len(gpIdx))
	for j, i := range gpIdx {
		weights[j] = r.tranches[i].Commitment
	}
	shares, _ := payProRata(amount, weights, nil)
	carry = mathutil.Min(mathutil.Round(carry), amount)
	carryShares, _ := payProRata(carry, weights, nil)
	for j, i := range gpIdx {
		r.pay(t, i, shares[j], true)
		r.accounts[i].Promote[t] = r.accounts[i].Promote[t].Add(carryShares[j])
	}
	r.carry = r.carry.Add(carry)
	r.carryRow[t] = r.carryRow[t].Add(carry)
}

func (r *runner) roleIndexes(role Role) []int {
	var idx []int
	for i, tr := range r.tranches {
		if tr.Role == role {
			idx = append(idx, i)
		}
	}
	return idx
}

// clawback returns promote the GP is not entitled to on final economics. The
// entitlement is what the GP would have received had every distribution been
// paid once, through the whole tier ladder, in the terminal period. The
// excess is capped at the carry the GP received and moved from the GP's
// final distribution to the LPs.
func (r *runner) clawback(t int) decimal.Decimal {
	if !r.carry.IsPositive() {
		return decimal.Zero
	}

	received := r.classTotal(r.distributed, RoleGP)
	excess := received.Sub(r.gpEntitlement(t))
	amount := mathutil.Round(mathutil.Min(mathutil.NonNegative(excess), r.carry))
	lpIdx := r.roleIndexes(RoleLP)
	if !amount.IsPositive() || len(lpIdx) == 0 {
		return decimal.Zero
	}

	gpIdx := r.roleIndexes(RoleGP)
	gpWeights := make([]decimal.Decimal, len(gpIdx))
	for j, i := range gpIdx {
		gpWeights[j] = r.tranches[i].Commitment
	}
	gpShares, _ := payProRata(amount, gpWeights, nil)
	for j, i := range gpIdx {
		a := r.accounts[i]
		a.Distributions[t] = a.Distributions[t].Sub(gpShares[j])
		a.Profit[t] = a.Profit[t].Sub(gpShares[j])
		a.Promote[t] = a.Promote[t].Sub(gpShares[j])
		r.distributed[i] = r.distributed[i].Sub(gpShares[j])
	}

	lpWeights := make([]decimal.Decimal, len(lpIdx))
	for j, i := range lpIdx {
		lpWeights[j] = r.contributed[i]
	}
	lpShares, _ := payProRata(amount, lpWeights, nil)
	for j, i := range lpIdx {
		r.pay(t, i, lpShares[j], true)
	}

	r.logger.Debug(fmt.Sprintf("clawback of %s moved from GP to LP", amount.StringFixed(2)),
		zap.String("op", "waterfall.clawback"),
	)
	r.clawed = amount
	return amount
}

// gpEntitlement replays the contributions through period t and pays the
// cumulative distributions as a single distribution in t.
func (r *runner) gpEntitlement(t int) decimal.Decimal {
	replay := newRunner(zap.NewNop(), Input{Config: r.cfg, Tranches: r.tranches, Horizon: r.horizon})
	total := decimal.Zero
	for i := range r.tranches {
		total = total.Add(r.distributed[i])
	}
	for k := 0; k <= t; k++ {
		called := decimal.Zero
		for _, a := range r.accounts {
			called = called.Add(a.Contributed[k])
		}
		replay.contribute(k, called)
		replay.accrue(k)
	}
	if total.IsPositive() {
		replay.distribute(t, total)
	}
	return replay.classTotal(replay.distributed, RoleGP)
}

func (r *runner) result() *Result {
	h := r.horizon
	res := &Result{
		CapitalAccounts: make([]CapitalAccount, len(r.accounts)),
		CarryPaid:       r.carryRow,
		LPContributions: timeline.NewRow(h),
		GPContributions: timeline.NewRow(h),
		LPDistributions: timeline.NewRow(h),
		GPDistributions: timeline.NewRow(h),
		Clawback:        r.clawed,
		HurdlesReached:  r.maxLevel,
		LP:              ClassSummary{Contributed: decimal.Zero, Distributed: decimal.Zero, Profit: decimal.Zero},
		GP:              ClassSummary{Contributed: decimal.Zero, Distributed: decimal.Zero, Profit: decimal.Zero},
	}
	for i, a := range r.accounts {
		res.CapitalAccounts[i] = *a
		class := &res.LP
		contributions, distributions := &res.LPContributions, &res.LPDistributions
		if r.tranches[i].Role == RoleGP {
			class = &res.GP
			contributions, distributions = &res.GPContributions, &res.GPDistributions
		}
		*contributions = contributions.Add(a.Contributed)
		*distributions = distributions.Add(a.Distributions)
		class.Contributed = class.Contributed.Add(a.Contributed.Sum())
		class.Distributed = class.Distributed.Add(a.Distributions.Sum())
	}
	res.LP.Profit = res.LP.Distributed.Sub(res.LP.Contributed)
	res.GP.Profit = res.GP.Distributed.Sub(res.GP.Contributed)
	return res
}

// payProRata splits amount across weights, never paying more than caps[i]
// when caps are given, and returns the shares and their total. Cash a cap
// refuses is left unpaid for the caller's next tier.
func payProRata(amount decimal.Decimal, weights, caps []decimal.Decimal) ([]decimal.Decimal, decimal.Decimal) {
	shares := zeros(len(weights))
	if !amount.IsPositive() || len(weights) == 0 {
		return shares, decimal.Zero
	}
	if caps != nil {
		total := decimal.Zero
		for _, c := range caps {
			total = total.Add(mathutil.NonNegative(c))
		}
		if !total.IsPositive() {
			return shares, decimal.Zero
		}
		if amount.GreaterThanOrEqual(total) {
			for i, c := range caps {
				shares[i] = mathutil.NonNegative(c)
			}
			return shares, total
		}
	}

	shares = mathutil.Allocate(amount, weights)
	paid := decimal.Zero
	for i := range shares {
		if caps != nil && shares[i].GreaterThan(caps[i]) {
			shares[i] = caps[i]
		}
		paid = paid.Add(shares[i])
	}
	return shares, paid
}
