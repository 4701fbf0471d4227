package rows

import (
	"testing"

	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireRow(t *testing.T, expected []string, got timeline.Row) {
	t.Helper()
	require.Len(t, got, len(expected))
	for i, e := range expected {
		require.Truef(t, d(e).Equal(got[i]), "period %d = %s, expected %s", i, got[i], e)
	}
}

func TestBuildCostRow(t *testing.T) {
	tests := []struct {
		name     string
		item     CostItem
		horizon  int
		expected []string
	}{
		{
			name:     "Flat spread with residual on last period",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 1, DurationPeriods: 3},
			horizon:  5,
			expected: []string{"0", "333.33", "333.33", "333.34", "0"},
		},
		{
			name:     "Explicit weights",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 0, DurationPeriods: 2, Weights: []decimal.Decimal{d("1"), d("3")}},
			horizon:  3,
			expected: []string{"250", "750", "0"},
		},
		{
			name:     "Zero weight period stays empty",
			item:     CostItem{ID: "build", BaseAmount: d("100"), StartPeriod: 0, DurationPeriods: 3, Weights: []decimal.Decimal{d("1"), d("1"), d("0")}},
			horizon:  3,
			expected: []string{"50", "50", "0"},
		},
		{
			name:     "Negative start degrades to zero row",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: -1, DurationPeriods: 3},
			horizon:  4,
			expected: []string{"0", "0", "0", "0"},
		},
		{
			name:     "Window past horizon degrades to zero row",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 2, DurationPeriods: 3},
			horizon:  4,
			expected: []string{"0", "0", "0", "0"},
		},
		{
			name:     "Zero duration",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 0, DurationPeriods: 0},
			horizon:  2,
			expected: []string{"0", "0"},
		},
		{
			name:     "Weights of the wrong length",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 0, DurationPeriods: 2, Weights: []decimal.Decimal{d("1")}},
			horizon:  2,
			expected: []string{"0", "0"},
		},
		{
			name:     "Negative weight",
			item:     CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 0, DurationPeriods: 2, Weights: []decimal.Decimal{d("2"), d("-1")}},
			horizon:  2,
			expected: []string{"0", "0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireRow(t, tt.expected, BuildCostRow(tt.item, tt.horizon))
		})
	}
}

func TestBuildCostRowEscalation(t *testing.T) {
	item := CostItem{ID: "build", BaseAmount: d("1000"), StartPeriod: 0, DurationPeriods: 3, EscalationRate: d("0.12")}
	row := BuildCostRow(item, 3)

	require.True(t, row.Sum().Equal(d("1000")), "escalated row must still sum to the base amount, got %s", row.Sum())
	require.True(t, row[0].LessThan(row[1]))
	require.True(t, row[1].LessThan(row[2]))
	require.True(t, row[0].Equal(d("330.02")), "first period = %s", row[0])
}

func TestBuildCostRowsByCategory(t *testing.T) {
	items := []CostItem{
		{ID: "land", Category: "land", BaseAmount: d("500"), StartPeriod: 0, DurationPeriods: 1},
		{ID: "shell", Category: "hard", BaseAmount: d("300"), StartPeriod: 1, DurationPeriods: 3},
		{ID: "fitout", Category: "hard", BaseAmount: d("200"), StartPeriod: 2, DurationPeriods: 2},
		{ID: "misc", BaseAmount: d("10"), StartPeriod: 3, DurationPeriods: 1},
	}
	agg := BuildCostRows(items, 4)

	require.Len(t, agg.Components, 3)
	require.Equal(t, "hard", agg.Components[0].Key)
	require.Equal(t, "land", agg.Components[1].Key)
	require.Equal(t, UncategorizedCost, agg.Components[2].Key)
	requireRow(t, []string{"0", "100", "200", "200"}, agg.Components[0].Row)
	requireRow(t, []string{"500", "100", "200", "210"}, agg.Total)
}

func TestBuildRevenueRow(t *testing.T) {
	handover := 2
	half := d("0.5")

	tests := []struct {
		name     string
		line     RevenueLine
		horizon  int
		expected []string
	}{
		{
			name:     "Sale defaults to handover in last window period",
			line:     RevenueLine{ID: "apts", Kind: KindSale, Units: d("10"), Price: d("500000"), StartPeriod: 1, EndPeriod: 4},
			horizon:  5,
			expected: []string{"0", "0", "0", "5000000", "0"},
		},
		{
			name:     "Sale with explicit handover",
			line:     RevenueLine{ID: "apts", Kind: KindSale, Units: d("2"), Price: d("100"), StartPeriod: 0, EndPeriod: 4, HandoverPeriod: &handover},
			horizon:  4,
			expected: []string{"0", "0", "200", "0"},
		},
		{
			name:     "Sale handover outside window",
			line:     RevenueLine{ID: "apts", Kind: KindSale, Units: d("2"), Price: d("100"), StartPeriod: 0, EndPeriod: 2, HandoverPeriod: &handover},
			horizon:  4,
			expected: []string{"0", "0", "0", "0"},
		},
		{
			name:     "Linear sales",
			line:     RevenueLine{ID: "apts", Kind: KindSale, Units: d("12"), Price: d("100"), StartPeriod: 0, EndPeriod: 4, Recognition: RecognizeLinear},
			horizon:  4,
			expected: []string{"300", "300", "300", "300"},
		},
		{
			name:     "Monthly rental net of occupancy",
			line:     RevenueLine{ID: "flats", Kind: KindRental, Units: d("10"), Price: d("1000"), StartPeriod: 1, EndPeriod: 3, Occupancy: &half},
			horizon:  4,
			expected: []string{"0", "5000", "5000", "0"},
		},
		{
			name:     "Daily rate hotel rooms",
			line:     RevenueLine{ID: "hotel", Kind: KindRental, Units: d("10"), Price: d("100"), StartPeriod: 0, EndPeriod: 1, RentBasis: RentDaily},
			horizon:  1,
			expected: []string{"30416.67"},
		},
		{
			name:     "Rental escalates monthly",
			line:     RevenueLine{ID: "flats", Kind: KindRental, Units: d("1"), Price: d("1000"), StartPeriod: 0, EndPeriod: 3, EscalationRate: d("0.12")},
			horizon:  3,
			expected: []string{"1000", "1010", "1020.1"},
		},
		{
			name:     "End beyond horizon",
			line:     RevenueLine{ID: "apts", Kind: KindSale, Units: d("1"), Price: d("100"), StartPeriod: 0, EndPeriod: 5},
			horizon:  3,
			expected: []string{"0", "0", "0"},
		},
		{
			name:     "Unknown kind",
			line:     RevenueLine{ID: "x", Kind: "lease", Units: d("1"), Price: d("100"), StartPeriod: 0, EndPeriod: 1},
			horizon:  1,
			expected: []string{"0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireRow(t, tt.expected, BuildRevenueRow(tt.line, tt.horizon))
		})
	}
}

func TestWithDefaultsDoesNotAlias(t *testing.T) {
	occ := d("0.8")
	line := RevenueLine{Occupancy: &occ, EndPeriod: 6}
	resolved := line.WithDefaults()

	require.NotSame(t, line.Occupancy, resolved.Occupancy)
	require.Equal(t, 5, *resolved.HandoverPeriod)
	require.Equal(t, RecognizeHandover, resolved.Recognition)
	require.Equal(t, RentMonthly, resolved.RentBasis)
	require.Nil(t, line.HandoverPeriod)
}

func TestBuildRevenueRows(t *testing.T) {
	lines := []RevenueLine{
		{ID: "retail", Kind: KindRental, Units: d("1"), Price: d("10"), StartPeriod: 0, EndPeriod: 2},
		{ID: "apts", Kind: KindSale, Units: d("1"), Price: d("100"), StartPeriod: 0, EndPeriod: 2},
	}
	agg := BuildRevenueRows(lines, 2)

	require.Equal(t, "apts", agg.Components[0].Key)
	require.Equal(t, "retail", agg.Components[1].Key)
	requireRow(t, []string{"10", "110"}, agg.Total)
}
