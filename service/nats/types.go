package nats

import (
	"time"

	"permafeed/service/activity"
)

// ActivityEvent represents one settled activity record published to NATS.
// Events are published to the subject "activity.{address}" in JetStream.
type ActivityEvent struct {
	// Record identifiers
	ID       string `json:"id"`
	Category string `json:"category"`

	// Wallet information
	Address      string `json:"address"`
	Counterparty string `json:"counterparty,omitempty"`

	// Record details
	Quantity     string `json:"quantity"`
	Denomination string `json:"denomination,omitempty"`

	// Confirmation data; nil for pending records
	Timestamp *int64 `json:"timestamp,omitempty"`
	Height    *int64 `json:"height,omitempty"`

	// Metadata
	CycleID     string    `json:"cycle_id"`
	PublishedAt time.Time `json:"published_at"`
}

// FromTransaction converts a settled activity record to an ActivityEvent for
// publishing.
func FromTransaction(address, cycleID string, txn activity.Transaction) *ActivityEvent {
	event := &ActivityEvent{
		ID:           txn.ID,
		Category:     string(txn.Category),
		Address:      address,
		Counterparty: txn.Counterparty,
		Quantity:     txn.Quantity,
		Denomination: txn.Denomination,
		CycleID:      cycleID,
		PublishedAt:  time.Now().UTC(),
	}

	if txn.Confirmation != nil {
		ts := txn.Confirmation.Timestamp
		height := txn.Confirmation.Height
		event.Timestamp = &ts
		event.Height = &height
	}

	return event
}
