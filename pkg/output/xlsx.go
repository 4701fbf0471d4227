package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetFinancing = "Financing"
	SheetCashFlow  = "Cash Flow"
	SheetKPIs      = "KPIs"
)

var cashFlowColumns = []string{
	"scenario", "period", "date", "revenue", "cost", "from_operations", "from_investing",
	"from_financing", "net_change", "cash_closing", "equity_contributions", "equity_distributions",
}

var kpiColumns = []string{
	"scenario", "run_id", "equity_irr_pa", "npv", "profit", "moic", "tvpi", "dpi", "rvpi",
	"project_irr_pa", "lp_irr_pa", "gp_irr_pa", "peak_equity", "peak_debt", "unfunded_equity",
	"tie_out_ok_cash", "max_cash_error",
}

// XLSXFormat saves the workbook for results at path.
func XLSXFormat(results []forecast.Forecast, path string) error {
	f, err := Workbook(results)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// WriteXLSX writes the workbook for results to w.
func WriteXLSX(w io.Writer, results []forecast.Forecast) error {
	f, err := Workbook(results)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Workbook builds a workbook with the financing schedule, the cash-flow
// statement and the KPIs of every scenario, one sheet each.
func Workbook(results []forecast.Forecast) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetFinancing); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetCashFlow, SheetKPIs} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetFinancing, financingRows(results)},
		{SheetCashFlow, cashFlowRows(results)},
		{SheetKPIs, kpiRows(results)},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func header(columns []string) []interface{} {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	return row
}

func financingRows(results []forecast.Forecast) [][]interface{} {
	records := FinancingRecords(results)
	rows := [][]interface{}{header(FinancingColumns)}
	for _, record := range records[1:] {
		row := make([]interface{}, len(record))
		for i, value := range record {
			row[i] = value
			if i == 1 || i >= 3 {
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					row[i] = n
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func cashFlowRows(results []forecast.Forecast) [][]interface{} {
	rows := [][]interface{}{header(cashFlowColumns)}
	for _, result := range results {
		res := result.Result
		if res == nil {
			continue
		}
		cf := res.CashFlow
		for t := 0; t < res.Timeline.Len(); t++ {
			rows = append(rows, []interface{}{
				result.Name, t, res.Timeline.Label(t),
				float(res.Rows.Revenue.Total.At(t)),
				float(res.Rows.Cost.Total.At(t)),
				float(cf.FromOperations.At(t)),
				float(cf.FromInvesting.At(t)),
				float(cf.FromFinancing.At(t)),
				float(cf.NetChange.At(t)),
				float(cf.CashClosing.At(t)),
				float(cf.Detail.EquityContributions.At(t)),
				float(cf.Detail.EquityDistributions.At(t)),
			})
		}
	}
	return rows
}

func kpiRows(results []forecast.Forecast) [][]interface{} {
	rows := [][]interface{}{header(kpiColumns)}
	for _, result := range results {
		res := result.Result
		if res == nil {
			continue
		}
		k := res.KPIs
		rows = append(rows, []interface{}{
			result.Name, result.RunID,
			optional(k.IRRPa), float(k.NPV), float(k.Profit),
			optional(k.MOIC), optional(k.TVPI), optional(k.DPI), optional(k.RVPI),
			optional(k.Detail.ProjectIRRPa), optional(k.Detail.LPIRRPa), optional(k.Detail.GPIRRPa),
			float(k.Detail.PeakEquity), float(k.Detail.PeakDebt), float(k.Detail.UnfundedEquity),
			res.CashFlow.Detail.OK, float(res.CashFlow.Detail.MaxError),
		})
	}
	return rows
}

// optional leaves undefined metrics as empty cells.
func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
