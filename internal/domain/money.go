package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Round2 rounds to two decimals, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Money builds a two-decimal amount from a float literal.
func Money(v float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(v))
}

// LineTotal is round2(quantity × price).
func LineTotal(quantity int, price decimal.Decimal) decimal.Decimal {
	return Round2(price.Mul(decimal.NewFromInt(int64(quantity))))
}

func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round2(total)
}

var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency renders "Rs. 1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	f, _ := Round2(amount).Float64()
	formatted := currencyPrinter.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if strings.HasPrefix(formatted, "-") {
		return "-Rs. " + strings.TrimPrefix(formatted, "-")
	}
	return "Rs. " + formatted
}

var supportedLanguages = []language.Tag{language.English, language.Urdu}

// NormalizeLanguage maps a language tag onto "en" or "ur".
func NormalizeLanguage(raw string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	base, _ := tag.Base()
	for _, supported := range supportedLanguages {
		if sb, _ := supported.Base(); sb == base {
			return base.String(), true
		}
	}
	return "", false
}
