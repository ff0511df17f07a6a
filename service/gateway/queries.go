package gateway

// The four source queries. Each takes $address and $first variables and
// returns the shared edge/node shape decoded into TransactionsPage.
//
// Native-asset transfers are matched by recipient/owner directly.
// Compute-layer transfers are messages tagged with the compute protocol's
// Data-Protocol and Action tags; their recipient/quantity live in tags.
const (
	// NativeReceivedQuery selects native transfers sent to the address.
	NativeReceivedQuery = `
query ($address: String!, $first: Int!) {
  transactions(recipients: [$address], first: $first) {
    edges {
      cursor
      node {
        id
        recipient
        owner { address }
        quantity { ar winston }
        block { timestamp height }
        tags { name value }
      }
    }
  }
}`

	// NativeSentQuery selects native transfers signed by the address.
	NativeSentQuery = `
query ($address: String!, $first: Int!) {
  transactions(owners: [$address], first: $first) {
    edges {
      cursor
      node {
        id
        recipient
        owner { address }
        quantity { ar winston }
        block { timestamp height }
        tags { name value }
      }
    }
  }
}`

	// ComputeSentQuery selects compute-layer transfer messages signed by the address.
	ComputeSentQuery = `
query ($address: String!, $first: Int!) {
  transactions(
    owners: [$address]
    tags: [
      { name: "Data-Protocol", values: ["ao"] }
      { name: "Action", values: ["Transfer"] }
    ]
    first: $first
  ) {
    edges {
      cursor
      node {
        id
        recipient
        owner { address }
        quantity { ar winston }
        block { timestamp height }
        tags { name value }
      }
    }
  }
}`

	// ComputeReceivedQuery selects compute-layer transfer messages addressed to the address.
	ComputeReceivedQuery = `
query ($address: String!, $first: Int!) {
  transactions(
    tags: [
      { name: "Data-Protocol", values: ["ao"] }
      { name: "Action", values: ["Transfer"] }
      { name: "Recipient", values: [$address] }
    ]
    first: $first
  ) {
    edges {
      cursor
      node {
        id
        recipient
        owner { address }
        quantity { ar winston }
        block { timestamp height }
        tags { name value }
      }
    }
  }
}`
)
