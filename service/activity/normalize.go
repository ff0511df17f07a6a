package activity

import (
	"log/slog"

	"permafeed/service/gateway"
	"permafeed/service/metrics"
)

// Normalizer converts raw per-source outcomes into unified transactions.
type Normalizer struct {
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer. If m is nil, no metrics will be recorded.
func NewNormalizer(m *metrics.Metrics, logger *slog.Logger) *Normalizer {
	return &Normalizer{metrics: m, logger: logger}
}

// Normalize maps one source outcome to transactions tagged with the source's
// category. A failed outcome contributes an empty batch: the failure was
// already logged and counted at dispatch, and must not propagate. A malformed
// individual edge is skipped, never fatal to the batch.
func (n *Normalizer) Normalize(outcome Outcome) []Transaction {
	if outcome.Err != nil || outcome.Page == nil {
		return nil
	}

	edges := outcome.Page.Transactions.Edges
	txns := make([]Transaction, 0, len(edges))
	seen := make(map[string]struct{}, len(edges))
	for _, edge := range edges {
		txn, ok := n.normalizeEdge(edge, outcome.Source)
		if !ok {
			if n.metrics != nil {
				n.metrics.RecordMalformedEdge(outcome.Source.Name)
			}
			n.logger.Warn("skipping malformed edge",
				"source", outcome.Source.Name,
				"id", edge.Node.ID,
			)
			continue
		}
		// Duplicate ids within one source would break the merged collection's
		// per-category uniqueness; keep the first occurrence.
		if _, dup := seen[txn.ID]; dup {
			n.logger.Debug("skipping duplicate edge",
				"source", outcome.Source.Name,
				"id", txn.ID,
			)
			continue
		}
		seen[txn.ID] = struct{}{}
		txns = append(txns, txn)
	}

	return txns
}

// normalizeEdge maps one raw edge to a Transaction. The compute-layer flag on
// the source selects the alternate extraction path: compute transfers carry
// their quantity and counterparty in protocol tags rather than in the native
// quantity/recipient fields. The output shape is identical either way.
func (n *Normalizer) normalizeEdge(edge gateway.Edge, src Source) (Transaction, bool) {
	node := edge.Node
	if node.ID == "" {
		return Transaction{}, false
	}

	txn := Transaction{
		ID:       node.ID,
		Category: src.Category,
	}

	if src.ComputeLayer {
		txn.Quantity = node.TagValue(gateway.TagQuantity)
		txn.Denomination = node.TagValue(gateway.TagTicker)
		switch src.Category {
		case CategoryComputeSent:
			txn.Counterparty = node.TagValue(gateway.TagRecipient)
		default:
			txn.Counterparty = node.Owner.Address
			if sender := node.TagValue(gateway.TagSender); sender != "" {
				txn.Counterparty = sender
			}
		}
		if txn.Quantity == "" {
			return Transaction{}, false
		}
	} else {
		txn.Quantity = node.Quantity.AR
		txn.Denomination = "AR"
		switch src.Category {
		case CategorySent:
			txn.Counterparty = node.Recipient
		default:
			txn.Counterparty = node.Owner.Address
		}
		if txn.Quantity == "" {
			return Transaction{}, false
		}
	}

	// A missing block means the entry is observed but unconfirmed.
	if node.Block != nil {
		txn.Confirmation = &Confirmation{
			Timestamp: node.Block.Timestamp,
			Height:    node.Block.Height,
		}
	}

	return txn, true
}
