package activity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permafeed/service/gateway"
)

var testAddr = strings.Repeat("a", 43)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockExecutor implements gateway.Executor with per-source canned results.
// A source listed in blocked does not return until its gate channel closes.
type mockExecutor struct {
	mu      sync.Mutex
	pages   map[string]*gateway.TransactionsPage
	errs    map[string]error
	blocked map[string]chan struct{}
	calls   []string
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{
		pages:   make(map[string]*gateway.TransactionsPage),
		errs:    make(map[string]error),
		blocked: make(map[string]chan struct{}),
	}
}

func (m *mockExecutor) Execute(ctx context.Context, source, query string, variables map[string]any) (*gateway.TransactionsPage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, source)
	gate := m.blocked[source]
	page := m.pages[source]
	err := m.errs[source]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if page == nil {
		return emptyPage(), nil
	}
	return page, nil
}

func emptyPage() *gateway.TransactionsPage {
	return &gateway.TransactionsPage{}
}

func pageWithEdges(edges ...gateway.Edge) *gateway.TransactionsPage {
	page := &gateway.TransactionsPage{}
	page.Transactions.Edges = edges
	return page
}

func nativeEdge(id, owner, recipient, ar string, block *gateway.Block) gateway.Edge {
	return gateway.Edge{
		Cursor: id,
		Node: gateway.Node{
			ID:        id,
			Recipient: recipient,
			Owner:     gateway.Owner{Address: owner},
			Quantity:  gateway.Amount{AR: ar},
			Block:     block,
		},
	}
}

func computeEdge(id, owner string, tags []gateway.Tag, block *gateway.Block) gateway.Edge {
	return gateway.Edge{
		Cursor: id,
		Node: gateway.Node{
			ID:    id,
			Owner: gateway.Owner{Address: owner},
			Block: block,
			Tags:  tags,
		},
	}
}

func TestSourcesFixedOrder(t *testing.T) {
	sources := Sources()
	require.Len(t, sources, 4)

	assert.Equal(t, "native_received", sources[0].Name)
	assert.Equal(t, "native_sent", sources[1].Name)
	assert.Equal(t, "compute_sent", sources[2].Name)
	assert.Equal(t, "compute_received", sources[3].Name)

	assert.False(t, sources[0].ComputeLayer)
	assert.False(t, sources[1].ComputeLayer)
	assert.True(t, sources[2].ComputeLayer)
	assert.True(t, sources[3].ComputeLayer)
}

func TestDispatchAllSourcesSettle(t *testing.T) {
	exec := newMockExecutor()
	exec.pages["native_sent"] = pageWithEdges(
		nativeEdge("tx-sent-1", testAddr, "recipient-1", "1.5", &gateway.Block{Timestamp: 100, Height: 1}),
	)

	d := NewDispatcher(exec, 10, nil, testLogger())
	outcomes := d.Dispatch(context.Background(), testAddr)

	require.Len(t, outcomes, 4)
	for i, src := range Sources() {
		assert.Equal(t, src.Name, outcomes[i].Source.Name)
		assert.NoError(t, outcomes[i].Err)
		assert.NotNil(t, outcomes[i].Page)
	}

	assert.Len(t, outcomes[1].Page.Transactions.Edges, 1)
	assert.Len(t, exec.calls, 4)
}

func TestDispatchPartialFailureIsolated(t *testing.T) {
	exec := newMockExecutor()
	exec.pages["native_received"] = pageWithEdges(
		nativeEdge("tx-recv-1", "sender-addr", testAddr, "2.0", &gateway.Block{Timestamp: 200, Height: 2}),
	)
	exec.errs["compute_received"] = fmt.Errorf("gateway timeout")

	d := NewDispatcher(exec, 10, nil, testLogger())
	outcomes := d.Dispatch(context.Background(), testAddr)

	require.Len(t, outcomes, 4)

	// The failing source carries its error; the others are untouched.
	assert.Error(t, outcomes[3].Err)
	assert.Nil(t, outcomes[3].Page)

	assert.NoError(t, outcomes[0].Err)
	require.NotNil(t, outcomes[0].Page)
	assert.Len(t, outcomes[0].Page.Transactions.Edges, 1)
}

func TestDispatchTotalFailure(t *testing.T) {
	exec := newMockExecutor()
	for _, src := range Sources() {
		exec.errs[src.Name] = fmt.Errorf("%s down", src.Name)
	}

	d := NewDispatcher(exec, 10, nil, testLogger())
	outcomes := d.Dispatch(context.Background(), testAddr)

	require.Len(t, outcomes, 4)
	for _, outcome := range outcomes {
		assert.Error(t, outcome.Err)
	}
}
