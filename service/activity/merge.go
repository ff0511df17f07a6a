package activity

import "sort"

// Merge concatenates the normalized batches and applies the total order.
// The relative order of the input batches is irrelevant; the sort alone
// determines the final sequence.
func Merge(batches ...[]Transaction) []Transaction {
	var total int
	for _, batch := range batches {
		total += len(batch)
	}

	merged := make([]Transaction, 0, total)
	for _, batch := range batches {
		merged = append(merged, batch...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return Less(&merged[i], &merged[j])
	})

	return merged
}

// Less defines the total order over merged transactions:
//
//  1. Pending transactions sort before all confirmed ones. They are the most
//     recently submitted, not-yet-settled activity, so they render as newest.
//  2. Confirmed transactions sort by confirmation timestamp, descending.
//  3. Equal timestamps (and pending pairs) break ties by lexicographic ID,
//     so identical input always produces identical output.
func Less(a, b *Transaction) bool {
	switch {
	case a.Pending() && b.Pending():
		return a.ID < b.ID
	case a.Pending():
		return true
	case b.Pending():
		return false
	case a.Confirmation.Timestamp != b.Confirmation.Timestamp:
		return a.Confirmation.Timestamp > b.Confirmation.Timestamp
	default:
		return a.ID < b.ID
	}
}
