package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichConfirmedUsesBlockTimestamp(t *testing.T) {
	ts := time.Date(2024, 4, 15, 12, 30, 0, 0, time.UTC)
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	enriched := Enrich([]Transaction{
		confirmed("tx-1", CategorySent, ts.Unix()),
	}, now)

	require.Len(t, enriched, 1)
	txn := enriched[0]

	local := time.Unix(ts.Unix(), 0)
	assert.Equal(t, local.Day(), txn.Day)
	assert.Equal(t, int(local.Month()), txn.Month)
	assert.Equal(t, local.Year(), txn.Year)
	assert.Equal(t, ts.Format(time.RFC3339), txn.ISODate)
}

func TestEnrichPendingFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.Local)

	enriched := Enrich([]Transaction{pending("tx-p", CategoryReceived)}, now)

	require.Len(t, enriched, 1)
	txn := enriched[0]
	assert.Equal(t, 30, txn.Day)
	assert.Equal(t, 8, txn.Month)
	assert.Equal(t, 2026, txn.Year)
	assert.Empty(t, txn.ISODate)
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	input := []Transaction{confirmed("tx-1", CategorySent, 1700000000)}

	out := Enrich(input, time.Now())

	assert.Zero(t, input[0].Day)
	assert.Empty(t, input[0].ISODate)
	assert.NotZero(t, out[0].Day)
}

func TestEnrichPreservesOrderAndLength(t *testing.T) {
	input := []Transaction{
		pending("tx-p", CategorySent),
		confirmed("tx-new", CategoryReceived, 300),
		confirmed("tx-old", CategorySent, 100),
	}

	out := Enrich(input, time.Now())
	require.Len(t, out, 3)
	assert.Equal(t, ids(input), ids(out))
}
