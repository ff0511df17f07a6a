package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellEmptyLatest(t *testing.T) {
	var cell Cell

	_, ok := cell.Latest()
	assert.False(t, ok)
}

func TestCellCommitAndLatest(t *testing.T) {
	var cell Cell

	version := cell.Begin()
	rate := Rate{Currency: "usd", Value: 6.5, FetchedAt: time.Now()}
	require.True(t, cell.Commit(version, rate))

	got, ok := cell.Latest()
	require.True(t, ok)
	assert.Equal(t, rate, got)
}

func TestCellStaleCommitRejected(t *testing.T) {
	var cell Cell

	// A slow first refresh must not overwrite a newer one that finished first.
	first := cell.Begin()
	second := cell.Begin()

	require.True(t, cell.Commit(second, Rate{Currency: "eur", Value: 6.0}))
	assert.False(t, cell.Commit(first, Rate{Currency: "usd", Value: 5.0}))

	got, ok := cell.Latest()
	require.True(t, ok)
	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, 6.0, got.Value)
}

func TestCellCommitTwiceSameVersion(t *testing.T) {
	var cell Cell

	version := cell.Begin()
	require.True(t, cell.Commit(version, Rate{Currency: "usd", Value: 1.0}))
	// The version stays the latest until a new Begin, so a re-commit lands.
	require.True(t, cell.Commit(version, Rate{Currency: "usd", Value: 2.0}))

	got, _ := cell.Latest()
	assert.Equal(t, 2.0, got.Value)
}
