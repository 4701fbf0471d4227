package rows

import (
	"github.com/iwvelando/project-feasibility/pkg/mathutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
)

// RevenueKind distinguishes for-sale units from income-producing ones.
type RevenueKind string

// Recognition selects when sale revenue is booked.
type Recognition string

// RentBasis selects whether a rental price is per month or per day.
type RentBasis string

const (
	KindSale   RevenueKind = "sale"
	KindRental RevenueKind = "rental"

	// RecognizeHandover books the whole sale in the handover period.
	RecognizeHandover Recognition = "handover"
	// RecognizeLinear books sales evenly across the sales window.
	RecognizeLinear Recognition = "linear"

	RentMonthly RentBasis = "monthly"
	RentDaily   RentBasis = "daily"
)

// RevenueLine is a sale or rental income stream over [StartPeriod, EndPeriod).
//
// Optional fields and their defaults: Occupancy nil means fully let,
// Recognition "" means handover, HandoverPeriod nil means EndPeriod-1,
// RentBasis "" means monthly.
type RevenueLine struct {
	ID             string           `json:"id"`
	Label          string           `json:"label"`
	Kind           RevenueKind      `json:"kind"`
	Units          decimal.Decimal  `json:"units"`
	Price          decimal.Decimal  `json:"price"`
	StartPeriod    int              `json:"start_period"`
	EndPeriod      int              `json:"end_period"`
	EscalationRate decimal.Decimal  `json:"escalation_rate"`
	Occupancy      *decimal.Decimal `json:"occupancy,omitempty"`
	Recognition    Recognition      `json:"recognition,omitempty"`
	HandoverPeriod *int             `json:"handover_period,omitempty"`
	RentBasis      RentBasis        `json:"rent_basis,omitempty"`
}

// WithDefaults returns a copy of the line with every optional field resolved.
func (l RevenueLine) WithDefaults() RevenueLine {
	if l.Occupancy == nil {
		full := mathutil.One
		l.Occupancy = &full
	} else {
		occ := *l.Occupancy
		l.Occupancy = &occ
	}
	if l.Recognition == "" {
		l.Recognition = RecognizeHandover
	}
	if l.HandoverPeriod == nil {
		hp := l.EndPeriod - 1
		l.HandoverPeriod = &hp
	} else {
		hp := *l.HandoverPeriod
		l.HandoverPeriod = &hp
	}
	if l.RentBasis == "" {
		l.RentBasis = RentMonthly
	}
	return l
}

// BuildRevenueRow produces the revenue row of a sale or rental line.
func BuildRevenueRow(line RevenueLine, horizon int) timeline.Row {
	row := timeline.NewRow(horizon)
	if !inWindow(line.StartPeriod, line.EndPeriod, horizon) {
		return row
	}
	line = line.WithDefaults()

	switch line.Kind {
	case KindSale:
		buildSale(row, line)
	case KindRental:
		buildRental(row, line)
	}
	return row
}

func buildSale(row timeline.Row, line RevenueLine) {
	gross := line.Units.Mul(line.Price)
	switch line.Recognition {
	case RecognizeHandover:
		hp := *line.HandoverPeriod
		if hp < line.StartPeriod || hp >= line.EndPeriod {
			return
		}
		row[hp] = mathutil.Round(gross.Mul(escalationFactor(line.EscalationRate, hp-line.StartPeriod)))
	case RecognizeLinear:
		n := line.EndPeriod - line.StartPeriod
		weights := make([]decimal.Decimal, n)
		total := decimal.Zero
		for k := range weights {
			weights[k] = escalationFactor(line.EscalationRate, k)
			total = total.Add(weights[k])
		}
		amount := gross.Mul(total).Div(decimal.NewFromInt(int64(n)))
		for k, share := range mathutil.Allocate(amount, weights) {
			row[line.StartPeriod+k] = share
		}
	}
}

func buildRental(row timeline.Row, line RevenueLine) {
	monthly := line.Units.Mul(line.Price).Mul(*line.Occupancy)
	if line.RentBasis == RentDaily {
		monthly = monthly.Mul(daysPerMonth)
	}
	for p := line.StartPeriod; p < line.EndPeriod; p++ {
		row[p] = mathutil.Round(monthly.Mul(escalationFactor(line.EscalationRate, p-line.StartPeriod)))
	}
}

// BuildRevenueRows builds every revenue line and sums them, keeping a per-line
// breakdown sorted by line id.
func BuildRevenueRows(lines []RevenueLine, horizon int) Aggregate {
	byLine := make(map[string]timeline.Row)
	for _, line := range lines {
		row := BuildRevenueRow(line, horizon)
		if existing, ok := byLine[line.ID]; ok {
			row = existing.Add(row)
		}
		byLine[line.ID] = row
	}
	return aggregate(byLine, horizon)
}
