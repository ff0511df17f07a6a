package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permafeed/service/activity"
	"permafeed/service/gateway"
	"permafeed/service/pricing"
)

var testAddr = strings.Repeat("a", 43)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubExecutor serves one canned page for every source query.
type stubExecutor struct {
	page *gateway.TransactionsPage
}

func (s *stubExecutor) Execute(ctx context.Context, source, query string, variables map[string]any) (*gateway.TransactionsPage, error) {
	if s.page == nil {
		return &gateway.TransactionsPage{}, nil
	}
	return s.page, nil
}

// stubRateSource returns a fixed rate for any currency.
type stubRateSource struct {
	rate float64
}

func (s *stubRateSource) GetRate(ctx context.Context, currencyCode string) (float64, error) {
	return s.rate, nil
}

func sentPage(id, recipient, ar string, ts int64) *gateway.TransactionsPage {
	page := &gateway.TransactionsPage{}
	page.Transactions.Edges = []gateway.Edge{
		{
			Cursor: id,
			Node: gateway.Node{
				ID:        id,
				Recipient: recipient,
				Owner:     gateway.Owner{Address: testAddr},
				Quantity:  gateway.Amount{AR: ar},
				Block:     &gateway.Block{Timestamp: ts, Height: 1},
			},
		},
	}
	return page
}

func newTestActivityService(exec gateway.Executor) *activity.Service {
	dispatcher := activity.NewDispatcher(exec, 10, nil, testLogger())
	normalizer := activity.NewNormalizer(nil, testLogger())
	return activity.NewService(dispatcher, normalizer, nil, nil, testLogger())
}

func activityMux(svc *activity.Service, rates *pricing.Service) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/wallets/{address}/activity", handleGetActivity(svc, rates, testLogger()))
	mux.Handle("GET /api/v1/wallets/{address}/activity/{id}", handleGetRecord(svc, rates, testLogger()))
	return mux
}

func settle(t *testing.T, svc *activity.Service, address string) {
	t.Helper()
	require.NoError(t, svc.SetAddress(context.Background(), address))
	require.Eventually(t, func() bool {
		state, _, _ := svc.Snapshot()
		return state == activity.StateSettled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleGetActivityInvalidAddress(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/bogus/activity", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetActivitySwitchesAddressAndReportsLoading(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "r", "1.5", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+testAddr+"/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Address string `json:"address"`
		State   string `json:"state"`
		Records []any  `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testAddr, body.Address)
	assert.Equal(t, "loading", body.State)
	assert.Empty(t, body.Records)
}

func TestHandleGetActivitySettled(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "recv-addr", "1.5", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	settle(t, svc, testAddr)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+testAddr+"/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State   string           `json:"state"`
		Records []recordResponse `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "settled", body.State)

	// Every source serves the same page, so the record appears once per
	// category: the sent/received legs plus two malformed compute skips.
	require.NotEmpty(t, body.Records)
	first := body.Records[0]
	assert.Equal(t, "tx-1", first.ID)
	assert.NotEmpty(t, first.Description)
	assert.Contains(t, first.Amount, "1.5")
	// No committed rate yet, so fiat renders as the unknown marker.
	assert.Equal(t, "??", first.FiatAmount)
	assert.NotEqual(t, "Pending", first.DateLabel)
}

func TestHandleGetActivityWithRate(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "recv-addr", "2.0", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	rates.SetCurrency(context.Background(), "usd")
	require.Eventually(t, func() bool {
		_, ok := rates.Latest()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	mux := activityMux(svc, rates)
	settle(t, svc, testAddr)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+testAddr+"/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Rate    *pricing.Rate    `json:"rate"`
		Records []recordResponse `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Rate)
	assert.Equal(t, 6.5, body.Rate.Value)

	require.NotEmpty(t, body.Records)
	assert.NotEqual(t, "??", body.Records[0].FiatAmount)
	assert.Contains(t, body.Records[0].FiatAmount, "13")
}

func TestHandleGetRecord(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "recv-addr", "1.5", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	settle(t, svc, testAddr)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+testAddr+"/activity/tx-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var record recordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "tx-1", record.ID)
	require.NotNil(t, record.Timestamp)
	assert.Equal(t, int64(1700000000), *record.Timestamp)
}

func TestHandleGetRecordNotFound(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "r", "1.5", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	settle(t, svc, testAddr)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+testAddr+"/activity/tx-missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRecordWrongAddressConflicts(t *testing.T) {
	svc := newTestActivityService(&stubExecutor{page: sentPage("tx-1", "r", "1.5", 1700000000)})
	rates := pricing.NewService(&stubRateSource{rate: 6.5}, nil, testLogger())
	mux := activityMux(svc, rates)

	settle(t, svc, testAddr)

	other := strings.Repeat("b", 43)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/wallets/"+other+"/activity/tx-1", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/v1/session", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Session-Key")
}

func TestMatchesFilter(t *testing.T) {
	compile := func(t *testing.T, expr string) *gojq.Code {
		t.Helper()
		query, err := gojq.Parse(expr)
		require.NoError(t, err)
		code, err := gojq.Compile(query)
		require.NoError(t, err)
		return code
	}

	event := []byte(`{"category": "sent", "quantity": "1.5", "address": "addr-1"}`)

	assert.True(t, matchesFilter(compile(t, `.category == "sent"`), event))
	assert.False(t, matchesFilter(compile(t, `.category == "received"`), event))
	assert.True(t, matchesFilter(compile(t, `.quantity`), event))
	assert.False(t, matchesFilter(compile(t, `.missing_field`), event))
	assert.False(t, matchesFilter(compile(t, `.quantity | tonumber > 2`), event))
	assert.True(t, matchesFilter(compile(t, `.quantity | tonumber > 1`), event))

	// Non-JSON payloads never match.
	assert.False(t, matchesFilter(compile(t, `.`), []byte("not json")))
}
