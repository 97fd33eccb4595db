package export

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// zeroDecimal currencies are never shown with cents.
var zeroDecimal = map[string]bool{"JPY": true, "VND": true, "KRW": true, "IDR": true}

// FormatCost renders an amount with grouping, e.g. "1,500,000 VND".
func FormatCost(amount float64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	digits := 2
	if zeroDecimal[currency] {
		digits = 0
	}
	s := printer.Sprint(number.Decimal(amount, number.MaxFractionDigits(digits)))
	if currency == "" {
		return s
	}
	return s + " " + currency
}
