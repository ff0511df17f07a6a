package format

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"permafeed/service/activity"
)

func confirmedTxn(category activity.Category, quantity string) activity.Transaction {
	return activity.Transaction{
		ID:           "tx-1",
		Category:     category,
		Quantity:     quantity,
		Denomination: "AR",
		Confirmation: &activity.Confirmation{Timestamp: 1713182400, Height: 1400000},
		Day:          15,
		Month:        4,
		Year:         2024,
		ISODate:      "2024-04-15T12:00:00Z",
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		category activity.Category
		want     string
	}{
		{activity.CategorySent, "Sent AR"},
		{activity.CategoryReceived, "Received AR"},
		{activity.CategoryComputeSent, "Sent AO"},
		{activity.CategoryComputeReceived, "Received AO"},
		{activity.Category("other"), "Transaction"},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.want, Description(activity.Transaction{Category: tt.category}))
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		denom    string
		want     string
	}{
		{"plain", "1.5", "AR", "1.5 AR"},
		{"thousands separator", "12345.25", "AR", "12,345.25 AR"},
		{"unparseable clamps to zero", "garbage", "AR", "0 AR"},
		{"negative clamps to zero", "-3", "AR", "0 AR"},
		{"empty clamps to zero", "", "AR", "0 AR"},
		{"missing denomination", "2", "", "2 ??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := activity.Transaction{Quantity: tt.quantity, Denomination: tt.denom}
			assert.Equal(t, tt.want, Amount(txn))
		})
	}
}

func TestFiatAmountUnknownCases(t *testing.T) {
	txn := confirmedTxn(activity.CategorySent, "2.0")

	assert.Equal(t, Unknown, FiatAmount(txn, 0, "usd"))
	assert.Equal(t, Unknown, FiatAmount(txn, -1, "usd"))
	assert.Equal(t, Unknown, FiatAmount(txn, math.NaN(), "usd"))
	assert.Equal(t, Unknown, FiatAmount(txn, math.Inf(1), "usd"))

	badQty := confirmedTxn(activity.CategorySent, "not-a-number")
	assert.Equal(t, Unknown, FiatAmount(badQty, 6.5, "usd"))

	overflow := confirmedTxn(activity.CategorySent, "1e308")
	assert.Equal(t, Unknown, FiatAmount(overflow, 1e308, "usd"))
}

func TestFiatAmountKnownCurrency(t *testing.T) {
	txn := confirmedTxn(activity.CategorySent, "2.0")

	got := FiatAmount(txn, 6.5, "usd")
	assert.NotEqual(t, Unknown, got)
	assert.Contains(t, got, "13")
}

func TestFiatAmountUnrecognizedCurrencyFallsBack(t *testing.T) {
	txn := confirmedTxn(activity.CategorySent, "2.0")

	got := FiatAmount(txn, 3.0, "zzz9")
	assert.Contains(t, got, "6")
	assert.Contains(t, got, "ZZZ9")
}

func TestMonthLabel(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"4-2024", "April"},
		{"12-2023", "December"},
		{"1-2026", "January"},
		{"0-2024", ""},
		{"13-2024", ""},
		{"garbage-2024", ""},
		{"2024", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthLabel(tt.key))
		})
	}
}

func TestDateLabel(t *testing.T) {
	confirmed := confirmedTxn(activity.CategorySent, "1")
	assert.Equal(t, "April 15", DateLabel(confirmed))

	pending := activity.Transaction{ID: "tx-p", Quantity: "1", Day: 30, Month: 8, Year: 2026}
	assert.Equal(t, "Pending", DateLabel(pending))
}
