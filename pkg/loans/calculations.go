package loans

import (
	"fmt"

	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var monthsPerYear = decimal.NewFromInt(constants.MonthsPerYear)

// FacilityRows holds the per-period schedule of one facility. Draws includes
// the part drawn to fund the reserve account, which is also broken out in
// DSRADraws.
type FacilityRows struct {
	Key                 string          `json:"key"`
	Maturity            int             `json:"maturity"`
	DSRATarget          decimal.Decimal `json:"dsra_target"`
	Cap                 timeline.Row    `json:"cap"`
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
}

func newFacilityRows(key string, horizon int) *FacilityRows {
	return &FacilityRows{
		Key:                 key,
		DSRATarget:          decimal.Zero,
		Cap:                 timeline.NewRow(horizon),
		Draws:               timeline.NewRow(horizon),
		DSRADraws:           timeline.NewRow(horizon),
		Balance:             timeline.NewRow(horizon),
		Interest:            timeline.NewRow(horizon),
		CapitalizedInterest: timeline.NewRow(horizon),
		CashInterest:        timeline.NewRow(horizon),
		Principal:           timeline.NewRow(horizon),
		FeesUpfront:         timeline.NewRow(horizon),
		FeesOngoing:         timeline.NewRow(horizon),
		FeesCommitment:      timeline.NewRow(horizon),
		DSRABalance:         timeline.NewRow(horizon),
		DSRAFunding:         timeline.NewRow(horizon),
		DSRARelease:         timeline.NewRow(horizon),
		DebtService:         timeline.NewRow(horizon),
	}
}

// ConstructionDraws returns the draws that funded the cost requirement.
func (r *FacilityRows) ConstructionDraws() timeline.Row {
	return r.Draws.Sub(r.DSRADraws)
}

// Fees returns the sum of the three fee rows.
func (r *FacilityRows) Fees() timeline.Row {
	return r.FeesUpfront.Add(r.FeesOngoing).Add(r.FeesCommitment)
}

// CalculateAnnuityPayment calculates the level payment that amortizes balance
// over periods at the given periodic rate using the standard annuity formula.
func CalculateAnnuityPayment(balance, monthlyRate decimal.Decimal, periods int) decimal.Decimal {
	if periods <= 0 {
		return balance
	}
	if monthlyRate.IsZero() {
		return balance.Div(decimal.NewFromInt(int64(periods)))
	}
	power := mathutil.PowInt(mathutil.One.Add(monthlyRate), periods)
	discountFactor := power.Sub(mathutil.One).Div(power)
	return balance.Mul(monthlyRate).Div(discountFactor)
}

// CalculateInterestPayment calculates the interest accrued over one period on
// the opening balance.
func CalculateInterestPayment(openingBalance, monthlyRate decimal.Decimal) decimal.Decimal {
	return mathutil.Round(openingBalance.Mul(monthlyRate))
}

// scheduledPrincipal is the amortization strategy of each AmortType. remaining
// counts the periods left up to and including maturity.
func scheduledPrincipal(amort AmortType, opening, interest, monthlyRate decimal.Decimal, remaining int) decimal.Decimal {
	if remaining <= 1 {
		return opening
	}
	switch amort {
	case AmortBullet, AmortInterestOnly:
		return decimal.Zero
	case AmortAnnuity:
		payment := CalculateAnnuityPayment(opening, monthlyRate, remaining)
		return mathutil.Min(opening, mathutil.NonNegative(mathutil.Round(payment.Sub(interest))))
	case AmortStraightLine:
		return mathutil.Round(opening.Div(decimal.NewFromInt(int64(remaining))))
	}
	panic(fmt.Sprintf("unhandled amortization type %v", amort))
}

// ScheduleGenerator builds facility schedules.
type ScheduleGenerator struct {
	logger *zap.Logger
}

// NewScheduleGenerator creates a new generator instance.
func NewScheduleGenerator(logger *zap.Logger) *ScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleGenerator{logger: logger}
}

// Schedule converts the per-period funding requirement into the facility's
// draw, interest, repayment, fee and reserve rows. cost is the construction
// cost row the loan-to-cost cap is measured against. Requirement the facility
// cannot meet is simply left undrawn.
func (g *ScheduleGenerator) Schedule(f Facility, requirement, cost timeline.Row, horizon int) (*FacilityRows, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	monthlyRate, err := f.MonthlyRate()
	if err != nil {
		return nil, err
	}

	rows := g.pass(f, monthlyRate, requirement, cost, horizon, decimal.Zero)
	target := dsraTarget(f, rows)
	if target.IsPositive() {
		rows = g.pass(f, monthlyRate, requirement, cost, horizon, target)
	}

	g.logger.Debug(fmt.Sprintf("facility %s drew %s, paid %s interest and %s fees, maturity period %d",
		f.Key, rows.Draws.Sum().StringFixed(2), rows.Interest.Sum().StringFixed(2),
		rows.Fees().Sum().StringFixed(2), rows.Maturity),
		zap.String("op", "loans.Schedule"),
		zap.String("dsra_target", rows.DSRATarget.StringFixed(2)),
	)
	return rows, nil
}

// dsraTarget sizes the reserve at DSRAMonths times the average monthly debt
// service over the repayment window. A bullet repayment is not debt service
// the reserve is meant to cover, so it is left out.
func dsraTarget(f Facility, rows *FacilityRows) decimal.Decimal {
	if f.DSRAMonths == 0 {
		return decimal.Zero
	}
	_, drawEnd := f.DrawWindow(len(rows.Balance))
	if drawEnd < f.AvailabilityStart {
		return decimal.Zero
	}
	total := decimal.Zero
	for t := drawEnd + 1; t <= rows.Maturity; t++ {
		service := rows.DebtService[t]
		if t == rows.Maturity && (f.AmortType == AmortBullet || f.AmortType == AmortInterestOnly) {
			service = service.Sub(rows.Principal[t])
		}
		total = total.Add(service)
	}
	count := rows.Maturity - drawEnd
	if count <= 0 {
		return decimal.Zero
	}
	average := total.Div(decimal.NewFromInt(int64(count)))
	return mathutil.Round(average.Mul(decimal.NewFromInt(int64(f.DSRAMonths))))
}

func (g *ScheduleGenerator) pass(f Facility, monthlyRate decimal.Decimal, requirement, cost timeline.Row, horizon int, reserve decimal.Decimal) *FacilityRows {
	rows := newFacilityRows(f.Key, horizon)
	rows.Maturity = f.Maturity(horizon)
	rows.DSRATarget = reserve
	drawStart, drawEnd := f.DrawWindow(horizon)

	ongoingRate := f.OngoingFeePct.Div(monthsPerYear)
	commitmentRate := f.CommitmentFeePct.Div(monthsPerYear)
	cumulativeCost := decimal.Zero
	balance := decimal.Zero
	dsra := decimal.Zero
	upfrontCharged := false

	for t := 0; t < horizon; t++ {
		cumulativeCost = cumulativeCost.Add(cost.At(t))
		capT := mathutil.NonNegative(mathutil.Min(f.Limit, mathutil.Round(cumulativeCost.Mul(f.LTCPercent))))
		rows.Cap[t] = capT

		opening := balance
		interest := CalculateInterestPayment(opening, monthlyRate)
		drawing := t >= drawStart && t <= drawEnd

		draw := decimal.Zero
		dsraDraw := decimal.Zero
		capitalized := decimal.Zero
		if drawing {
			draw = mathutil.NonNegative(mathutil.Min(capT.Sub(opening), requirement.At(t)))
		}
		if t == f.AvailabilityStart && reserve.IsPositive() {
			rows.DSRAFunding[t] = reserve
			dsra = reserve
			if drawing {
				dsraDraw = mathutil.Min(reserve, mathutil.NonNegative(capT.Sub(opening).Sub(draw)))
			}
		}
		if drawing && f.AmortType == AmortBullet {
			capitalized = mathutil.Min(interest, mathutil.NonNegative(capT.Sub(opening).Sub(draw).Sub(dsraDraw)))
		}
		balance = opening.Add(draw).Add(dsraDraw).Add(capitalized)

		principal := decimal.Zero
		if t > drawEnd && t <= rows.Maturity && balance.IsPositive() {
			principal = scheduledPrincipal(f.AmortType, balance, interest, monthlyRate, rows.Maturity-t+1)
		}
		balance = balance.Sub(principal)

		if t == rows.Maturity && dsra.IsPositive() {
			rows.DSRARelease[t] = dsra
			dsra = decimal.Zero
		}

		if !upfrontCharged && draw.Add(dsraDraw).IsPositive() {
			rows.FeesUpfront[t] = mathutil.Round(f.Limit.Mul(f.UpfrontFeePct))
			upfrontCharged = true
		}
		if opening.IsPositive() {
			rows.FeesOngoing[t] = mathutil.Round(opening.Mul(ongoingRate))
		}
		if drawing && balance.LessThan(f.Limit) {
			rows.FeesCommitment[t] = mathutil.Round(f.Limit.Sub(balance).Mul(commitmentRate))
		}

		rows.Draws[t] = draw.Add(dsraDraw)
		rows.DSRADraws[t] = dsraDraw
		rows.Interest[t] = interest
		rows.CapitalizedInterest[t] = capitalized
		rows.CashInterest[t] = interest.Sub(capitalized)
		rows.Principal[t] = principal
		rows.Balance[t] = balance
		rows.DSRABalance[t] = dsra
		rows.DebtService[t] = rows.CashInterest[t].Add(principal)
	}
	return rows
}
