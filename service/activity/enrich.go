package activity

import "time"

// Enrich derives the calendar fields for each transaction and returns a new
// slice; the input is never mutated. Confirmed transactions get their fields
// from the confirmation timestamp (unix seconds, rendered in local time) and
// an ISO-8601 date string. Unconfirmed ones fall back to the calendar date of
// now and keep ISODate empty, which lets a consumer render "Pending" while
// still grouping the record into a plausible date bucket.
func Enrich(txns []Transaction, now time.Time) []Transaction {
	enriched := make([]Transaction, len(txns))
	for i, txn := range txns {
		if txn.Confirmation != nil {
			at := time.Unix(txn.Confirmation.Timestamp, 0)
			txn.Day = at.Day()
			txn.Month = int(at.Month())
			txn.Year = at.Year()
			txn.ISODate = at.UTC().Format(time.RFC3339)
		} else {
			txn.Day = now.Day()
			txn.Month = int(now.Month())
			txn.Year = now.Year()
			txn.ISODate = ""
		}
		enriched[i] = txn
	}
	return enriched
}
