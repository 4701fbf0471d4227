// Package format renders money and return metrics as display text.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/project-feasibility/pkg/constants"
	"github.com/shopspring/decimal"
)

// NotAvailable is shown for metrics that are undefined for a cash flow.
const NotAvailable = "n/a"

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	formatted := NumericCurrency(math.Abs(amount))
	if amount < 0 {
		return "-$" + formatted
	}
	return "$" + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return sign + groupThousands(fmt.Sprintf("%.2f", math.Abs(amount)))
}

// Money formats a decimal amount like NumericCurrency without going through
// float64.
func Money(amount decimal.Decimal) string {
	rounded := amount.Round(constants.CurrencyPlaces)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	return sign + groupThousands(rounded.Abs().StringFixed(constants.CurrencyPlaces))
}

// Percent formats an annual rate fraction, e.g. 0.1234 as "12.34%".
func Percent(rate *float64) string {
	if rate == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f%%", *rate*constants.PercentageMultiplier)
}

// Multiple formats a capital multiple, e.g. 1.5 as "1.50x".
func Multiple(m *float64) string {
	if m == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2fx", *m)
}

func groupThousands(formatted string) string {
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
