// Package output provides utilities for formatting and displaying forecast results.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iwvelando/project-feasibility/internal/config"
	"github.com/iwvelando/project-feasibility/internal/forecast"
	"github.com/iwvelando/project-feasibility/pkg/engine"
	"github.com/iwvelando/project-feasibility/pkg/format"
	"github.com/iwvelando/project-feasibility/pkg/timeline"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FinancingColumns is the column order of the financing schedule export.
var FinancingColumns = []string{
	"scenario", "period", "date", "draws", "interest", "principal", "balance",
	"fees_upfront", "fees_commitment", "fees_ongoing", "dsra_balance",
}

// PrettyFormat outputs a human-readable rather than machine-readable table.
func PrettyFormat(results []forecast.Forecast) {
	WritePretty(os.Stdout, results)
}

// WritePretty writes the human-readable report for every scenario to w.
func WritePretty(w io.Writer, results []forecast.Forecast) {
	p := message.NewPrinter(language.English)
	for i, result := range results {
		_, _ = fmt.Fprintf(w, "--- Results for scenario %s ---\n", result.Name)
		if result.RunID != "" {
			_, _ = fmt.Fprintf(w, "Run %s\n", result.RunID)
		}
		res := result.Result
		if res == nil {
			_, _ = fmt.Fprintf(w, "No result\n")
			continue
		}

		_, _ = fmt.Fprintf(w, "Period  | Revenue         | Cost            | Debt Balance    | Equity In       | Equity Out      | Cash\n")
		_, _ = fmt.Fprintf(w, "______  | _______________ | _______________ | _______________ | _______________ | _______________ | ____\n")
		distributions := res.CashFlow.Detail.EquityDistributions
		for t, label := range res.Labels {
			_, _ = p.Fprintf(w, "%-7s | %15.2f | %15.2f | %15.2f | %15.2f | %15.2f | %.2f\n",
				label,
				res.Rows.Revenue.Total.At(t).InexactFloat64(),
				res.Rows.Cost.Total.At(t).InexactFloat64(),
				res.Financing.Balance.At(t).InexactFloat64(),
				res.CashFlow.Detail.EquityContributions.At(t).InexactFloat64(),
				distributions.At(t).InexactFloat64(),
				res.CashFlow.CashClosing.At(t).InexactFloat64(),
			)
		}

		writeKPIs(w, res)
		writeOptimizations(w, result)
		if len(result.Notes) > 0 {
			_, _ = fmt.Fprintf(w, "Notes:\n")
			for _, note := range result.Notes {
				_, _ = fmt.Fprintf(w, "  - %s\n", note)
			}
		}
		if i < len(results)-1 {
			_, _ = fmt.Fprintf(w, "\n")
		}
	}
}

func writeKPIs(w io.Writer, res *engine.Result) {
	k := res.KPIs
	_, _ = fmt.Fprintf(w, "Equity IRR: %s | NPV: %s | Profit: %s | MOIC: %s\n",
		format.Percent(k.IRRPa), format.Money(k.NPV), format.Money(k.Profit), format.Multiple(k.MOIC))
	_, _ = fmt.Fprintf(w, "Project IRR: %s | LP IRR: %s | GP IRR: %s\n",
		format.Percent(k.Detail.ProjectIRRPa), format.Percent(k.Detail.LPIRRPa), format.Percent(k.Detail.GPIRRPa))
	_, _ = fmt.Fprintf(w, "Peak equity: %s | Peak debt: %s\n",
		format.Money(k.Detail.PeakEquity), format.Money(k.Detail.PeakDebt))
	if !res.CashFlow.Detail.OK {
		_, _ = fmt.Fprintf(w, "Cash tie-out FAILED: max error %s in period %d\n",
			format.Money(res.CashFlow.Detail.MaxError), res.CashFlow.Detail.WorstPeriod)
	}
}

func writeOptimizations(w io.Writer, result forecast.Forecast) {
	if len(result.Optimizations) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Optimizations:\n")
	for _, summary := range result.Optimizations {
		original := summary.OriginalDisplay
		if original == "" {
			original = format.Currency(summary.Original)
		}
		value := summary.ValueDisplay
		if value == "" {
			value = format.Currency(summary.Value)
		}
		status := "converged"
		if !summary.Converged {
			status = "not converged"
		}
		_, _ = fmt.Fprintf(w, "  - %s %s: %s -> %s for %s %s (%s after %d iterations)\n",
			summary.TargetName, summary.Field, original, value, summary.Goal,
			formatGoalValue(summary.Goal, summary.Achieved), status, summary.Iterations)
		for _, note := range summary.Notes {
			_, _ = fmt.Fprintf(w, "      %s\n", note)
		}
	}
}

func formatGoalValue(goal string, achieved *float64) string {
	switch goal {
	case config.OptimizerGoalNPV:
		if achieved == nil {
			return format.NotAvailable
		}
		return format.Currency(*achieved)
	case config.OptimizerGoalMOIC:
		return format.Multiple(achieved)
	default:
		return format.Percent(achieved)
	}
}

// CsvFormat outputs the financing schedule in comma-separated value format.
func CsvFormat(results []forecast.Forecast) error {
	return WriteCsv(os.Stdout, results)
}

// CsvString returns the financing schedule CSV as a string.
func CsvString(results []forecast.Forecast) (string, error) {
	var sb strings.Builder
	if err := WriteCsv(&sb, results); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// WriteCsv writes the financing schedule of every scenario to w, one row per
// scenario and period.
func WriteCsv(w io.Writer, results []forecast.Forecast) error {
	cw := csv.NewWriter(w)
	for _, record := range FinancingRecords(results) {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// FinancingRecords returns the financing schedule as a header row followed by
// one record per scenario and period. Amounts carry two decimal places.
func FinancingRecords(results []forecast.Forecast) [][]string {
	records := [][]string{append([]string(nil), FinancingColumns...)}
	for _, result := range results {
		res := result.Result
		if res == nil {
			continue
		}
		f := res.Financing
		for t := 0; t < res.Timeline.Len(); t++ {
			records = append(records, []string{
				result.Name,
				fmt.Sprintf("%d", t),
				res.Timeline.Label(t),
				amount(f.Draws, t),
				amount(f.Interest, t),
				amount(f.Principal, t),
				amount(f.Balance, t),
				amount(f.FeesUpfront, t),
				amount(f.FeesCommitment, t),
				amount(f.FeesOngoing, t),
				amount(f.DSRABalance, t),
			})
		}
	}
	return records
}

func amount(r timeline.Row, t int) string {
	return r.At(t).StringFixed(2)
}

func float(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
