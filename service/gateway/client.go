package gateway

import (
	"bytes"
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

// Executor is the interface for running a gateway GraphQL query.
// This allows us to mock the transport in tests without hitting real gateways.
type Executor interface {
	Execute(ctx context.Context, source, query string, variables map[string]any) (*TransactionsPage, error)
}

// Client executes GraphQL queries against a gateway endpoint over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a new gateway client for the given endpoint.
// If httpClient is nil a default client with a 30s timeout is used.
// If m is nil, no metrics will be recorded.
func NewClient(endpoint string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// graphqlRequest is the wire format for a gateway GraphQL POST.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the wire format of a gateway GraphQL response.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// Execute runs one GraphQL query and decodes the transactions page from the
// response. A response carrying GraphQL-level errors is treated as a failure.
// The source parameter is a stable identifier for metrics and logging only.
func (c *Client) Execute(ctx context.Context, source, query string, variables map[string]any) (*TransactionsPage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordGatewayQuery(source, status, c.host(), duration)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "gateway request failed",
			"source", source,
			"endpoint", c.endpoint,
			"error", err,
		)
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		msgs := make([]string, len(gqlResp.Errors))
		for i, e := range gqlResp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("gateway query failed: %s", strings.Join(msgs, "; "))
	}

	var page TransactionsPage
	if err := json.Unmarshal(gqlResp.Data, &page); err != nil {
		return nil, fmt.Errorf("failed to decode transactions page: %w", err)
	}

	if c.metrics != nil {
		c.metrics.RecordGatewayEdges(source, float64(len(page.Transactions.Edges)))
	}

	c.logger.DebugContext(ctx, "gateway query executed",
		"source", source,
		"edges", len(page.Transactions.Edges),
	)

	return &page, nil
}

// graphqlURL returns the full GraphQL endpoint URL.
func (c *Client) graphqlURL() string {
	return strings.TrimSuffix(c.endpoint, "/") + "/graphql"
}

// host extracts the endpoint hostname for metrics labeling.
func (c *Client) host() string {
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Host == "" {
		return c.endpoint
	}
	return u.Host
}
