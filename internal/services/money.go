package services

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter renders amounts for display: ISO code followed by the locale-grouped amount
// rounded to two places.
type MoneyFormatter struct {
	unit    currency.Unit
	printer *message.Printer
}

// NewMoneyFormatter parses the currency code and locale, falling back to ETB and English.
func NewMoneyFormatter(code, locale string) MoneyFormatter {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		unit = currency.MustParseISO("ETB")
	}
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		tag = language.English
	}
	return MoneyFormatter{unit: unit, printer: message.NewPrinter(tag)}
}

// Currency returns the ISO code.
func (f MoneyFormatter) Currency() string { return f.unit.String() }

// Format renders the amount.
func (f MoneyFormatter) Format(amount decimal.Decimal) string {
	if f.printer == nil {
		return f.Currency() + " " + amount.StringFixed(2)
	}
	value, _ := amount.Round(2).Float64()
	return f.unit.String() + " " + f.printer.Sprintf("%.2f", value)
}

// Display formats every amount of a quote.
func (f MoneyFormatter) Display(result PricingResult) MoneyDisplay {
	return MoneyDisplay{
		Subtotal:    f.Format(result.Subtotal),
		DeliveryFee: f.Format(result.DeliveryFee),
		Tax:         f.Format(result.Tax),
		Total:       f.Format(result.Total),
	}
}
