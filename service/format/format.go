// Package format turns enriched activity records into display strings.
// Everything here is a pure function of its inputs; no I/O, no clocks.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"permafeed/service/activity"
)

// Unknown is the marker rendered when a value cannot be resolved, e.g. a fiat
// amount with no exchange rate available.
const Unknown = "??"

var printer = message.NewPrinter(language.AmericanEnglish)

// Description returns the human-readable label for a record. It is a
// deterministic function of the category alone.
func Description(txn activity.Transaction) string {
	switch txn.Category {
	case activity.CategorySent:
		return "Sent AR"
	case activity.CategoryReceived:
		return "Received AR"
	case activity.CategoryComputeSent:
		return "Sent AO"
	case activity.CategoryComputeReceived:
		return "Received AO"
	default:
		return "Transaction"
	}
}

// Amount returns the record's quantity as a locale-formatted string in its
// native denomination. Unparseable, negative, or non-finite quantities clamp
// to zero rather than erroring.
func Amount(txn activity.Transaction) string {
	qty, ok := parseQuantity(txn.Quantity)
	if !ok {
		qty = 0
	}

	denom := txn.Denomination
	if denom == "" {
		denom = Unknown
	}

	return printer.Sprintf("%v %s", number.Decimal(qty, number.MaxFractionDigits(6)), denom)
}

// FiatAmount returns quantity * rate formatted with the currency's symbol.
// When the rate is unset or non-finite, or the quantity cannot be parsed, it
// returns the Unknown marker instead of emitting NaN or Infinity.
func FiatAmount(txn activity.Transaction, rate float64, currencyCode string) string {
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return Unknown
	}

	qty, ok := parseQuantity(txn.Quantity)
	if !ok {
		return Unknown
	}

	value := qty * rate
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return Unknown
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		// Unrecognized currency code: fall back to a plain decimal with the
		// code appended.
		return printer.Sprintf("%v %s",
			number.Decimal(value, number.MaxFractionDigits(2)),
			strings.ToUpper(currencyCode))
	}

	return printer.Sprint(currency.Symbol(unit.Amount(value)))
}

// MonthLabel maps a "month-year" composite key (e.g. "4-2024") to the month's
// name. Returns "" for keys that don't parse to a month in 1-12.
func MonthLabel(monthYearKey string) string {
	monthPart, _, found := strings.Cut(monthYearKey, "-")
	if !found {
		return ""
	}

	month, err := strconv.Atoi(monthPart)
	if err != nil || month < 1 || month > 12 {
		return ""
	}

	return time.Month(month).String()
}

// DateLabel returns the secondary date line for a record: "Month day" for
// confirmed records, "Pending" for unconfirmed ones.
func DateLabel(txn activity.Transaction) string {
	if txn.ISODate == "" {
		return "Pending"
	}
	return printer.Sprintf("%s %d", MonthLabel(monthYearKey(txn)), txn.Day)
}

// monthYearKey builds the composite grouping key for a record.
func monthYearKey(txn activity.Transaction) string {
	return strconv.Itoa(txn.Month) + "-" + strconv.Itoa(txn.Year)
}

// parseQuantity parses a source quantity string, rejecting non-finite and
// negative values.
func parseQuantity(quantity string) (float64, bool) {
	qty, err := strconv.ParseFloat(strings.TrimSpace(quantity), 64)
	if err != nil || math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return 0, false
	}
	return qty, true
}
