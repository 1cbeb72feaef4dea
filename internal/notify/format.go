package notify

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"KES": "KSh",
	"EUR": "€",
	"GBP": "£",
}

// FormatMoney renders d with two decimals and comma thousands separators,
// e.g. 1234567.891 -> "1,234,567.89".
func FormatMoney(d decimal.Decimal) string {
	return FormatDecimal(d, 2)
}

// FormatDecimal renders d rounded to places decimals with comma thousands
// separators.
func FormatDecimal(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// FormatWithSymbol prefixes the formatted amount with the currency symbol,
// or with the currency code when no symbol is known.
func FormatWithSymbol(d decimal.Decimal, currency string) string {
	symbol, ok := currencySymbols[strings.ToUpper(currency)]
	if !ok {
		symbol = currency
	}
	return symbol + FormatMoney(d)
}
