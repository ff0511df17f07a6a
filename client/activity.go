package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Record is one display-ready activity record as served by the API.
type Record struct {
	ID           string `json:"id"`
	Category     string `json:"category"`
	Counterparty string `json:"counterparty,omitempty"`
	Quantity     string `json:"quantity"`
	Denomination string `json:"denomination,omitempty"`
	Timestamp    *int64 `json:"timestamp,omitempty"`
	Height       *int64 `json:"height,omitempty"`
	Day          int    `json:"day"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	ISODate      string `json:"iso_date,omitempty"`
	Description  string `json:"description"`
	Amount       string `json:"amount"`
	FiatAmount   string `json:"fiat_amount"`
	DateLabel    string `json:"date_label"`
}

// Rate is the fiat exchange rate reported alongside activity.
type Rate struct {
	Currency  string    `json:"currency"`
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ActivityPage is the aggregated activity response for one address.
type ActivityPage struct {
	Address string   `json:"address"`
	State   string   `json:"state"`
	Rate    *Rate    `json:"rate,omitempty"`
	Records []Record `json:"records"`
}

// Session is the stored session state plus the live pipeline state.
type Session struct {
	State    string `json:"state"`
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Rate     *Rate  `json:"rate,omitempty"`
}

// Client is the HTTP client for the permafeed activity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new activity service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetActivity retrieves the aggregated activity for an address. When the
// address is not the active one, the server switches to it and reports the
// loading state; poll until State is "settled".
func (c *Client) GetActivity(ctx context.Context, address string) (*ActivityPage, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/activity", c.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var page ActivityPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("activity fetched", "address", address, "state", page.State, "count", len(page.Records))
	return &page, nil
}

// WaitForActivity polls GetActivity until the collection settles or ctx is done.
func (c *Client) WaitForActivity(ctx context.Context, address string, pollInterval time.Duration) (*ActivityPage, error) {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	for {
		page, err := c.GetActivity(ctx, address)
		if err != nil {
			return nil, err
		}
		if page.State == "settled" {
			return page, nil
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// GetRecord retrieves a single settled record by id.
func (c *Client) GetRecord(ctx context.Context, address, id string) (*Record, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/activity/%s",
		c.baseURL, url.PathEscape(address), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &record, nil
}

// SetAddress switches the active session address, starting a fetch cycle.
func (c *Client) SetAddress(ctx context.Context, address string) error {
	return c.putJSON(ctx, "/api/v1/session/address", map[string]string{"address": address})
}

// SetCurrency switches the display currency, triggering a rate refresh.
func (c *Client) SetCurrency(ctx context.Context, currency string) error {
	return c.putJSON(ctx, "/api/v1/session/currency", map[string]string{"currency": currency})
}

// GetSession retrieves the current session state.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/v1/session", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &session, nil
}

// ClearSession removes the stored session preferences.
func (c *Client) ClearSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/v1/session", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	return nil
}

// putJSON sends a PUT request with a JSON body and expects a 200 response.
func (c *Client) putJSON(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
