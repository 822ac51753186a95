package notification

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// AmountFormatter renders money amounts with the grouping and decimal
// separators of a locale
type AmountFormatter struct {
	printer *message.Printer
	tag     language.Tag
}

// NewAmountFormatter creates a formatter for a BCP 47 locale such as "en" or
// "de-DE". Unparseable locales fall back to English.
func NewAmountFormatter(locale string) *AmountFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &AmountFormatter{
		printer: message.NewPrinter(tag),
		tag:     tag,
	}
}

// Format renders amount with two fraction digits
func (f *AmountFormatter) Format(amount decimal.Decimal) string {
	return f.printer.Sprintf("%.2f", amount.Round(2).InexactFloat64())
}

// Locale returns the resolved locale
func (f *AmountFormatter) Locale() string {
	return f.tag.String()
}
