package gateway

// TransactionsPage is the paginated payload returned by the gateway for a
// transactions query. All four source queries share this edge/node shape.
type TransactionsPage struct {
	Transactions struct {
		Edges []Edge `json:"edges"`
	} `json:"transactions"`
}

// Edge wraps a single node in the paginated result.
type Edge struct {
	Cursor string `json:"cursor"`
	Node   Node   `json:"node"`
}

// Node is one raw ledger entry as the gateway reports it.
// Block is nil for entries that have not been included in a block yet.
type Node struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Owner     Owner  `json:"owner"`
	Quantity  Amount `json:"quantity"`
	Block     *Block `json:"block"`
	Tags      []Tag  `json:"tags"`
}

// Owner identifies the address that signed the entry.
type Owner struct {
	Address string `json:"address"`
}

// Amount is the native quantity of an entry, reported in both base and
// smallest units.
type Amount struct {
	AR      string `json:"ar"`
	Winston string `json:"winston"`
}

// Block carries the confirmation data for a mined entry.
type Block struct {
	Timestamp int64 `json:"timestamp"`
	Height    int64 `json:"height"`
}

// Tag is a name/value pair attached to an entry. Compute-layer transfers
// carry their protocol metadata (action, quantity, recipient) here.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Tag names used by compute-layer transfers.
const (
	TagDataProtocol = "Data-Protocol"
	TagAction       = "Action"
	TagQuantity     = "Quantity"
	TagRecipient    = "Recipient"
	TagSender       = "Sender"
	TagTicker       = "Ticker"
)

// TagValue returns the value of the first tag with the given name,
// or "" when the tag is absent.
func (n *Node) TagValue(name string) string {
	for _, tag := range n.Tags {
		if tag.Name == name {
			return tag.Value
		}
	}
	return ""
}
