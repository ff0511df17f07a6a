package nats

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permafeed/service/activity"
)

func TestFromTransactionConfirmed(t *testing.T) {
	txn := activity.Transaction{
		ID:           "tx-1",
		Category:     activity.CategorySent,
		Counterparty: "recv-addr",
		Quantity:     "1.5",
		Denomination: "AR",
		Confirmation: &activity.Confirmation{Timestamp: 1700000000, Height: 1300000},
	}

	event := FromTransaction("wallet-addr", "cycle-1", txn)

	assert.Equal(t, "tx-1", event.ID)
	assert.Equal(t, "sent", event.Category)
	assert.Equal(t, "wallet-addr", event.Address)
	assert.Equal(t, "recv-addr", event.Counterparty)
	assert.Equal(t, "1.5", event.Quantity)
	assert.Equal(t, "AR", event.Denomination)
	assert.Equal(t, "cycle-1", event.CycleID)
	assert.False(t, event.PublishedAt.IsZero())

	require.NotNil(t, event.Timestamp)
	assert.Equal(t, int64(1700000000), *event.Timestamp)
	require.NotNil(t, event.Height)
	assert.Equal(t, int64(1300000), *event.Height)
}

func TestFromTransactionPending(t *testing.T) {
	txn := activity.Transaction{
		ID:       "tx-p",
		Category: activity.CategoryComputeReceived,
		Quantity: "100",
	}

	event := FromTransaction("wallet-addr", "cycle-2", txn)

	assert.Equal(t, "computeReceived", event.Category)
	assert.Nil(t, event.Timestamp)
	assert.Nil(t, event.Height)
}

func TestMockPublisherBatch(t *testing.T) {
	publisher := NewMockPublisher()

	txns := []activity.Transaction{
		{ID: "tx-1", Category: activity.CategorySent, Quantity: "1"},
		{ID: "tx-2", Category: activity.CategoryReceived, Quantity: "2"},
	}
	require.NoError(t, publisher.PublishActivityBatch(context.Background(), "addr-1", "cycle-1", txns))

	events := publisher.GetPublishedEventsForAddress("addr-1")
	require.Len(t, events, 2)
	assert.Equal(t, "tx-1", events[0].ID)
	assert.Equal(t, "tx-2", events[1].ID)
}

func TestMockPublisherError(t *testing.T) {
	publisher := NewMockPublisher()
	publisher.SetPublishError(fmt.Errorf("nats down"))

	err := publisher.PublishActivityBatch(context.Background(), "addr-1", "cycle-1", []activity.Transaction{
		{ID: "tx-1", Quantity: "1"},
	})
	require.Error(t, err)
	assert.Empty(t, publisher.GetPublishedEvents())
}
