package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/optimization"
	"github.com/iwvelando/project-feasibility/pkg/rows"
	"github.com/iwvelando/project-feasibility/pkg/testutil"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/iwvelando/project-feasibility/pkg/waterfall"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// landDeal buys land for 1000 and sells it for 1500 three periods later.
func landDeal(t *testing.T) forecast.Forecast {
	t.Helper()
	in := engine.Input{
		Timeline: timeline.Timeline{Periods: 4, StartDate: "2026-01"},
		CostItems: []rows.CostItem{
			{ID: "land", BaseAmount: decimal.NewFromInt(1000), StartPeriod: 0, DurationPeriods: 1},
		},
		UnitTypes: []rows.RevenueLine{
			rows.RevenueLine{ID: "plot", Kind: rows.KindSale, Units: decimal.NewFromInt(1),
				Price: decimal.NewFromInt(1500), StartPeriod: 0, EndPeriod: 4}.WithDefaults(),
		},
		Equity: []waterfall.Tranche{
			{Key: "investors", Role: waterfall.RoleLP, Commitment: decimal.NewFromInt(1000)},
		},
		WaterfallConfig: waterfall.Config{Mode: waterfall.ModeEuropean},
	}
	fc, err := forecast.Run(zap.NewNop(), "land", in)
	require.NoError(t, err)
	return fc
}

func TestWritePretty(t *testing.T) {
	fc := landDeal(t)
	fc.Optimizations = []optimization.Summary{
		{TargetName: "land", Field: "baseAmount", Goal: "equityIrr", Original: 1000, Value: 800,
			Iterations: 12, Converged: true},
	}
	fc.Notes = []string{"a note"}

	var buf bytes.Buffer
	WritePretty(&buf, []forecast.Forecast{fc})
	out := buf.String()

	for _, want := range []string{
		"--- Results for scenario land ---",
		"Period  | Revenue",
		"2026-01",
		"2026-04",
		"Equity IRR:",
		"Profit: 500.00",
		"MOIC: 1.50x",
		"land baseAmount: $1,000.00 -> $800.00",
		"converged after 12 iterations",
		"  - a note",
	} {
		require.Contains(t, out, want)
	}
	require.NotContains(t, out, "tie-out FAILED")
}

func TestPrettyFormatWritesStdout(t *testing.T) {
	fc := landDeal(t)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	PrettyFormat([]forecast.Forecast{fc, fc})

	_ = w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	require.Equal(t, 2, strings.Count(buf.String(), "--- Results for scenario land ---"))
}

func TestWritePrettyWithoutResult(t *testing.T) {
	var buf bytes.Buffer
	WritePretty(&buf, []forecast.Forecast{{Name: "empty"}})
	require.Contains(t, buf.String(), "No result")
}

func TestFinancingCsv(t *testing.T) {
	fc := landDeal(t)
	out, err := CsvString([]forecast.Forecast{fc})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, FinancingColumns, records[0])
	require.Equal(t, []string{"land", "0", "2026-01", "0.00", "0.00", "0.00", "0.00", "0.00", "0.00", "0.00", "0.00"}, records[1])
	require.Equal(t, "2026-04", records[4][2])
}

func TestFinancingCsvMultipleScenarios(t *testing.T) {
	results := testutil.ExampleForecasts(t)
	records := FinancingRecords(results)

	periods := results[0].Result.Timeline.Len()
	require.Len(t, records, 1+periods*len(results))
	for i, result := range results {
		require.Equal(t, result.Name, records[1+i*periods][0])
	}

	drawn := decimal.Zero
	for _, record := range records[1 : 1+periods] {
		drawn = drawn.Add(decimal.RequireFromString(record[3]))
	}
	require.True(t, drawn.Equal(results[0].Result.Financing.Draws.Sum()),
		"csv draws %s, expected %s", drawn, results[0].Result.Financing.Draws.Sum())
}

func TestFinancingCsvEmpty(t *testing.T) {
	out, err := CsvString(nil)
	require.NoError(t, err)
	require.Equal(t, strings.Join(FinancingColumns, ",")+"\n", out)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteCsvReportsWriteErrors(t *testing.T) {
	err := WriteCsv(failingWriter{}, []forecast.Forecast{landDeal(t)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
}

func TestCsvFormatWritesStdout(t *testing.T) {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := CsvFormat([]forecast.Forecast{landDeal(t)})

	_ = w.Close()
	os.Stdout = oldStdout
	require.NoError(t, err)

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	require.True(t, strings.HasPrefix(buf.String(), strings.Join(FinancingColumns, ",")))
}

func TestWriteJSON(t *testing.T) {
	fc := landDeal(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []forecast.Forecast{fc}))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	require.Equal(t, "land", decoded[0]["name"])
	require.Equal(t, fc.RunID, decoded[0]["runId"])

	result := decoded[0]["result"].(map[string]interface{})
	for _, key := range []string{"financing", "cash_flow", "waterfall", "kpis", "labels", "fingerprint"} {
		require.Contains(t, result, key)
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	require.Equal(t, "[]\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	fc := landDeal(t)
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, []forecast.Forecast{fc}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{SheetFinancing, SheetCashFlow, SheetKPIs}, f.GetSheetList())

	financing, err := f.GetRows(SheetFinancing)
	require.NoError(t, err)
	require.Len(t, financing, 5)
	require.Equal(t, FinancingColumns, financing[0])

	cashFlow, err := f.GetRows(SheetCashFlow)
	require.NoError(t, err)
	require.Len(t, cashFlow, 5)
	require.Equal(t, "revenue", cashFlow[0][3])

	kpis, err := f.GetRows(SheetKPIs)
	require.NoError(t, err)
	require.Len(t, kpis, 2)
	require.Equal(t, "land", kpis[1][0])
	require.Equal(t, fc.RunID, kpis[1][1])
}

func TestXLSXFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, XLSXFormat([]forecast.Forecast{landDeal(t)}, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.Len(t, f.GetSheetList(), 3)
}
