package view

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Rishwanth-M/finboard/internal/jsondoc"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is displayed for missing or empty values.
const Placeholder = "—"

// Value formats understood by Format.
const (
	FormatNumber     = "number"
	FormatCurrency   = "currency"
	FormatPercentage = "percentage"
)

var printer = message.NewPrinter(language.MustParse("en-IN"))

// Format renders a resolved value for display. Numbers and numeric strings
// are formatted according to kind (number by default); anything else is shown
// as-is.
func Format(v any, kind string) string {
	if v == nil {
		return Placeholder
	}
	if s, ok := v.(string); ok && s == "" {
		return Placeholder
	}
	num, ok := toNumber(v)
	if !ok {
		return jsondoc.Sample(v)
	}

	switch kind {
	case FormatCurrency:
		sign := ""
		if num < 0 {
			sign, num = "-", -num
		}
		return sign + "₹" + printer.Sprint(number.Decimal(num,
			number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	case FormatPercentage:
		return fmt.Sprintf("%.2f%%", num)
	default:
		return printer.Sprint(number.Decimal(num))
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
