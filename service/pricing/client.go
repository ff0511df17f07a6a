package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"permafeed/service/metrics"
)

// RateSource is the interface for resolving an asset-to-fiat exchange rate.
// This allows us to mock the price API in tests.
type RateSource interface {
	GetRate(ctx context.Context, currencyCode string) (float64, error)
}

// Client resolves fiat rates from a CoinGecko-compatible price API.
type Client struct {
	baseURL    string
	assetID    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a price API client for the given asset id
// (e.g. "arweave"). If httpClient is nil a default client with a 15s timeout
// is used. If m is nil, no metrics will be recorded.
func NewClient(baseURL, assetID string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		assetID:    assetID,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// GetRate fetches the asset-to-fiat rate for the given currency code.
func (c *Client) GetRate(ctx context.Context, currencyCode string) (float64, error) {
	currency := strings.ToLower(currencyCode)

	u := fmt.Sprintf("%s/api/v3/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(c.assetID), url.QueryEscape(currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordPriceFetch(currency, status, duration)
	}

	if err != nil {
		return 0, fmt.Errorf("price request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("price API returned status %d: %s", resp.StatusCode, string(body))
	}

	// Response shape: {"<asset>": {"<currency>": 6.34}}
	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode price response: %w", err)
	}

	rate, ok := payload[c.assetID][currency]
	if !ok {
		return 0, fmt.Errorf("price response missing rate for %s/%s", c.assetID, currency)
	}

	c.logger.DebugContext(ctx, "fetched fiat rate",
		"asset", c.assetID,
		"currency", currency,
		"rate", rate,
	)

	return rate, nil
}
