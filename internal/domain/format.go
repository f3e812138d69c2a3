package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ThousandsSeparator groups integer digits in formatted amounts.
const ThousandsSeparator = "’"

// FormatAmount renders an amount fixed to precision with grouped thousands, e.g. -1’234.50.
func FormatAmount(amount decimal.Decimal, precision int32) string {
	rounded := amount.Round(precision)
	intPart, fracPart, hasFrac := strings.Cut(rounded.Abs().StringFixed(precision), ".")

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}

	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(ThousandsSeparator)
		}
		b.WriteRune(d)
	}

	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}

	return b.String()
}
