package loans

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mkRow(values ...string) timeline.Row {
	r := timeline.NewRow(len(values))
	for i, v := range values {
		r[i] = d(v)
	}
	return r
}

func padRow(horizon int, values ...string) timeline.Row {
	r := timeline.NewRow(horizon)
	for i, v := range values {
		r[i] = d(v)
	}
	return r
}

func checkRow(t *testing.T, name string, got timeline.Row, expected ...string) {
	t.Helper()
	for i, e := range expected {
		if !got.At(i).Equal(d(e)) {
			t.Errorf("%s[%d] = %s, expected %s", name, i, got.At(i), e)
		}
	}
}

func TestCalculateAnnuityPayment(t *testing.T) {
	tests := []struct {
		name          string
		balance       string
		annualRate    string
		periods       int
		expectedRange []float64 // [min, max]
	}{
		{"Standard 30-year loan", "240000", "0.06", 360, []float64{1438, 1440}},
		{"5-year loan", "20000", "0.04", 60, []float64{368, 369}},
		{"Zero interest", "10000", "0", 60, []float64{166.66, 166.67}},
		{"Zero balance", "0", "0.05", 60, []float64{0, 0}},
		{"High interest", "10000", "0.18", 36, []float64{361, 362}},
		{"Single period", "5000", "0.12", 1, []float64{5049.99, 5050.01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monthly := d(tt.annualRate).Div(decimal.NewFromInt(12))
			result := CalculateAnnuityPayment(d(tt.balance), monthly, tt.periods).InexactFloat64()
			if result < tt.expectedRange[0] || result > tt.expectedRange[1] {
				t.Errorf("CalculateAnnuityPayment() = %.4f, expected range [%.2f, %.2f]",
					result, tt.expectedRange[0], tt.expectedRange[1])
			}
		})
	}
}

func TestCalculateInterestPayment(t *testing.T) {
	tests := []struct {
		name     string
		opening  string
		rate     string
		expected string
	}{
		{"Standard interest", "200000", "0.005", "1000"},
		{"Fractional cents round", "15000", "0.00375", "56.25"},
		{"Zero interest", "10000", "0", "0"},
		{"Very small balance", "100", "0.005", "0.5"},
		{"Rounds half up", "1", "0.005", "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateInterestPayment(d(tt.opening), d(tt.rate))
			if !result.Equal(d(tt.expected)) {
				t.Errorf("CalculateInterestPayment() = %s, expected %s", result, tt.expected)
			}
		})
	}
}

func TestAmortTypeText(t *testing.T) {
	tests := []struct {
		input    string
		expected AmortType
		wantErr  bool
	}{
		{"bullet", AmortBullet, false},
		{"annuity", AmortAnnuity, false},
		{"straightLine", AmortStraightLine, false},
		{"straight_line", AmortStraightLine, false},
		{"interestOnly", AmortInterestOnly, false},
		{"INTEREST_ONLY", AmortInterestOnly, false},
		{"balloon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var a AmortType
			err := a.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && a != tt.expected {
				t.Errorf("UnmarshalText() = %v, expected %v", a, tt.expected)
			}
		})
	}

	encoded, err := json.Marshal(struct {
		Amort AmortType `json:"amort"`
	}{AmortStraightLine})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(encoded) != `{"amort":"straightLine"}` {
		t.Errorf("json.Marshal() = %s", encoded)
	}
	if _, err := AmortType(42).MarshalText(); err == nil {
		t.Error("MarshalText() should reject an unknown variant")
	}
}

func validFacility() Facility {
	return Facility{
		Key:               "senior",
		Limit:             d("10000000"),
		LTCPercent:        d("0.7"),
		RatePa:            d("0.06"),
		AmortType:         AmortBullet,
		AvailabilityStart: 0,
		AvailabilityEnd:   3,
		TenorMonths:       2,
	}
}

func TestFacilityValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Facility)
		field  string
	}{
		{"Valid", func(*Facility) {}, ""},
		{"Missing key", func(f *Facility) { f.Key = "" }, "key"},
		{"Negative limit", func(f *Facility) { f.Limit = d("-1") }, "limit"},
		{"Negative LTC", func(f *Facility) { f.LTCPercent = d("-0.1") }, "ltc_percent"},
		{"Negative rate", func(f *Facility) { f.RatePa = d("-0.01") }, "nominal_rate_pa"},
		{"Negative commitment fee", func(f *Facility) { f.CommitmentFeePct = d("-0.01") }, "commitment_fee_pct"},
		{"Window reversed", func(f *Facility) { f.AvailabilityEnd = -1 }, "availability_end"},
		{"Negative tenor", func(f *Facility) { f.TenorMonths = -1 }, "tenor_months"},
		{"Negative DSRA", func(f *Facility) { f.DSRAMonths = -1 }, "dsra_months"},
		{"Unknown amortization", func(f *Facility) { f.AmortType = AmortType(9) }, "amort_type"},
		{"Unknown rate basis", func(f *Facility) { f.RateBasis = "simple" }, "rate_basis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFacility()
			tt.mutate(&f)
			err := f.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, expected *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Validate() field = %s, expected %s", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestEffectiveRateBasis(t *testing.T) {
	f := validFacility()
	f.RateBasis = RateEffective
	f.RatePa = d("0.126825030131970")

	monthly, err := f.MonthlyRate()
	if err != nil {
		t.Fatalf("MonthlyRate() error = %v", err)
	}
	if monthly.Sub(d("0.01")).Abs().GreaterThan(d("0.0000001")) {
		t.Errorf("MonthlyRate() = %s, expected 0.01", monthly)
	}
}

func TestLTCScenarioWithBalloon(t *testing.T) {
	g := NewScheduleGenerator(zap.NewNop())
	f := validFacility()
	f.AvailabilityEnd = 1
	f.TenorMonths = 4
	horizon := 6
	cost := padRow(horizon, "1500000", "1500000")

	rows, err := g.Schedule(f, cost, cost, horizon)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	checkRow(t, "Balance", rows.Balance, "1050000", "2100000")
	if rows.Maturity != 5 {
		t.Fatalf("Maturity = %d, expected 5", rows.Maturity)
	}
	for p := 0; p < rows.Maturity; p++ {
		if !rows.Principal[p].IsZero() {
			t.Errorf("bullet principal[%d] = %s, expected zero before maturity", p, rows.Principal[p])
		}
	}
	if !rows.Principal[5].Equal(rows.Balance[4]) {
		t.Errorf("balloon = %s, expected prior balance %s", rows.Principal[5], rows.Balance[4])
	}
	if !rows.Balance[5].IsZero() {
		t.Errorf("balance at maturity = %s, expected 0", rows.Balance[5])
	}
	// Interest after the draw window is paid in cash.
	checkRow(t, "CashInterest", rows.CashInterest, "0", "5250", "10500")
}

func TestBalanceNeverExceedsCap(t *testing.T) {
	g := NewScheduleGenerator(nil)
	horizon := 24
	cost := timeline.NewRow(horizon)
	for p := 0; p < 12; p++ {
		cost[p] = d("250000")
	}

	for _, amort := range []AmortType{AmortBullet, AmortAnnuity, AmortStraightLine, AmortInterestOnly} {
		t.Run(amort.String(), func(t *testing.T) {
			f := Facility{
				Key:               "senior",
				Limit:             d("1500000"),
				LTCPercent:        d("0.65"),
				RatePa:            d("0.08"),
				AmortType:         amort,
				AvailabilityStart: 1,
				AvailabilityEnd:   11,
				TenorMonths:       10,
				DSRAMonths:        3,
				UpfrontFeePct:     d("0.01"),
				OngoingFeePct:     d("0.005"),
				CommitmentFeePct:  d("0.01"),
			}
			rows, err := g.Schedule(f, cost, cost, horizon)
			if err != nil {
				t.Fatalf("Schedule() error = %v", err)
			}
			for p := 0; p < horizon; p++ {
				if rows.Balance[p].GreaterThan(rows.Cap[p]) {
					t.Errorf("balance[%d] = %s exceeds cap %s", p, rows.Balance[p], rows.Cap[p])
				}
				if rows.Balance[p].IsNegative() {
					t.Errorf("balance[%d] = %s is negative", p, rows.Balance[p])
				}
				if rows.Draws[p].IsNegative() {
					t.Errorf("draws[%d] = %s is negative", p, rows.Draws[p])
				}
			}
			if !rows.Draws[0].IsZero() {
				t.Errorf("draw before availability = %s", rows.Draws[0])
			}
			if !rows.Balance[rows.Maturity].IsZero() {
				t.Errorf("balance at maturity = %s", rows.Balance[rows.Maturity])
			}
			if !rows.DSRAFunding.Sum().Equal(rows.DSRARelease.Sum()) {
				t.Errorf("DSRA funding %s != release %s", rows.DSRAFunding.Sum(), rows.DSRARelease.Sum())
			}
		})
	}
}

func TestBulletCapitalizesInterest(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := Facility{
		Key:               "construction",
		Limit:             d("5000"),
		LTCPercent:        d("1"),
		RatePa:            d("0.12"),
		AmortType:         AmortBullet,
		AvailabilityStart: 0,
		AvailabilityEnd:   2,
		TenorMonths:       1,
	}
	requirement := mkRow("1000", "500", "0", "0")
	cost := mkRow("1000", "1000", "0", "0")

	rows, err := g.Schedule(f, requirement, cost, 4)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	checkRow(t, "Interest", rows.Interest, "0", "10", "15.1", "15.25")
	checkRow(t, "CapitalizedInterest", rows.CapitalizedInterest, "0", "10", "15.1", "0")
	checkRow(t, "CashInterest", rows.CashInterest, "0", "0", "0", "15.25")
	checkRow(t, "Balance", rows.Balance, "1000", "1510", "1525.1", "0")
	checkRow(t, "Principal", rows.Principal, "0", "0", "0", "1525.1")
}

func TestInterestOnlyPaysCash(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := Facility{
		Key:               "io",
		Limit:             d("5000"),
		LTCPercent:        d("1"),
		RatePa:            d("0.12"),
		AmortType:         AmortInterestOnly,
		AvailabilityStart: 0,
		AvailabilityEnd:   1,
		TenorMonths:       2,
	}
	cost := mkRow("1000", "1000", "0", "0")

	rows, err := g.Schedule(f, cost, cost, 4)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if !rows.CapitalizedInterest.Sum().IsZero() {
		t.Errorf("interest-only facility capitalized %s", rows.CapitalizedInterest.Sum())
	}
	checkRow(t, "CashInterest", rows.CashInterest, "0", "10", "20", "20")
	checkRow(t, "Principal", rows.Principal, "0", "0", "0", "2000")
}

func TestStraightLineAmortization(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := Facility{
		Key:               "term",
		Limit:             d("1200"),
		LTCPercent:        d("1"),
		AmortType:         AmortStraightLine,
		AvailabilityStart: 0,
		AvailabilityEnd:   0,
		TenorMonths:       3,
	}
	cost := mkRow("1200", "0", "0", "0", "0")

	rows, err := g.Schedule(f, cost, cost, 5)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	checkRow(t, "Principal", rows.Principal, "0", "400", "400", "400", "0")
	checkRow(t, "Balance", rows.Balance, "1200", "800", "400", "0", "0")
}

func TestFees(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := Facility{
		Key:               "fees",
		Limit:             d("1000"),
		LTCPercent:        d("1"),
		AmortType:         AmortBullet,
		AvailabilityStart: 0,
		AvailabilityEnd:   2,
		TenorMonths:       1,
		UpfrontFeePct:     d("0.01"),
		OngoingFeePct:     d("0.12"),
		CommitmentFeePct:  d("0.12"),
	}
	cost := mkRow("500", "500", "0", "0")

	rows, err := g.Schedule(f, cost, cost, 4)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	checkRow(t, "FeesUpfront", rows.FeesUpfront, "10", "0", "0", "0")
	checkRow(t, "FeesCommitment", rows.FeesCommitment, "5", "0", "0", "0")
	checkRow(t, "FeesOngoing", rows.FeesOngoing, "0", "5", "10", "10")
	checkRow(t, "Balance", rows.Balance, "500", "1000", "1000", "0")
}

func TestDSRAClosedLoop(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := Facility{
		Key:               "senior",
		Limit:             d("2000"),
		LTCPercent:        d("1"),
		RatePa:            d("0.12"),
		AmortType:         AmortInterestOnly,
		AvailabilityStart: 0,
		AvailabilityEnd:   0,
		TenorMonths:       4,
		DSRAMonths:        2,
	}
	requirement := padRow(6, "900")
	cost := padRow(6, "1000")

	rows, err := g.Schedule(f, requirement, cost, 6)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if !rows.DSRATarget.Equal(d("18")) {
		t.Fatalf("DSRATarget = %s, expected 18", rows.DSRATarget)
	}
	checkRow(t, "DSRAFunding", rows.DSRAFunding, "18", "0", "0", "0", "0", "0")
	checkRow(t, "DSRARelease", rows.DSRARelease, "0", "0", "0", "0", "18", "0")
	checkRow(t, "DSRABalance", rows.DSRABalance, "18", "18", "18", "18", "0", "0")
	checkRow(t, "Draws", rows.Draws, "918")
	checkRow(t, "DSRADraws", rows.DSRADraws, "18")
	checkRow(t, "ConstructionDraws", rows.ConstructionDraws(), "900")
	if !rows.DSRAFunding.Sum().Sub(rows.DSRARelease.Sum()).IsZero() {
		t.Error("DSRA funding and release do not net to zero")
	}
}

func TestScheduleOutsideHorizon(t *testing.T) {
	g := NewScheduleGenerator(nil)
	f := validFacility()
	f.AvailabilityStart = 10
	f.AvailabilityEnd = 12
	cost := padRow(4, "1000", "1000")

	rows, err := g.Schedule(f, cost, cost, 4)
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if !rows.Draws.Sum().IsZero() || !rows.Balance.Sum().IsZero() {
		t.Errorf("facility outside the horizon drew %s", rows.Draws.Sum())
	}
}

func TestNewScheduleGenerator(t *testing.T) {
	if g := NewScheduleGenerator(nil); g.logger == nil {
		t.Error("NewScheduleGenerator(nil) should install a no-op logger")
	}
	logger := zap.NewNop()
	if g := NewScheduleGenerator(logger); g.logger != logger {
		t.Error("NewScheduleGenerator() should keep the provided logger")
	}
}
