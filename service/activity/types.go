package activity

// Category tags a transaction with its source provenance. It is fixed at
// normalization time and never mutated afterwards.
type Category string

const (
	CategorySent            Category = "sent"
	CategoryReceived        Category = "received"
	CategoryComputeSent     Category = "computeSent"
	CategoryComputeReceived Category = "computeReceived"
)

// IsCompute reports whether the category belongs to the compute layer.
func (c Category) IsCompute() bool {
	return c == CategoryComputeSent || c == CategoryComputeReceived
}

// Direction returns "sent" or "received" regardless of layer.
func (c Category) Direction() string {
	switch c {
	case CategorySent, CategoryComputeSent:
		return "sent"
	default:
		return "received"
	}
}

// Confirmation carries the block inclusion data for a mined transaction.
type Confirmation struct {
	Timestamp int64 `json:"timestamp"` // unix seconds
	Height    int64 `json:"height"`
}

// Transaction is the unified record produced by normalization. One underlying
// ledger entry maps to exactly one Transaction per category; a self-transfer
// legitimately appears once as sent and once as received.
//
// Day/Month/Year/ISODate are derived by Enrich and are zero before enrichment.
// ISODate is empty exactly when the transaction is unconfirmed.
type Transaction struct {
	ID           string        `json:"id"`
	Category     Category      `json:"category"`
	Counterparty string        `json:"counterparty"`
	Quantity     string        `json:"quantity"`
	Denomination string        `json:"denomination"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`

	Day     int    `json:"day"`
	Month   int    `json:"month"` // 1-12
	Year    int    `json:"year"`
	ISODate string `json:"iso_date,omitempty"`
}

// Pending reports whether the transaction has not been confirmed yet.
func (t *Transaction) Pending() bool {
	return t.Confirmation == nil
}

// State is the observable load state of the activity service.
type State string

const (
	// StateIdle means no address has been set yet.
	StateIdle State = "idle"
	// StateLoading means a fetch cycle is in flight for the active address.
	StateLoading State = "loading"
	// StateSettled means records are available, possibly an empty set.
	// Partial or even total source failure still settles; it surfaces only
	// as a smaller (or empty) collection plus diagnostics.
	StateSettled State = "settled"
)
