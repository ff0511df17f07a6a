package pricing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"permafeed/service/metrics"
)

// Service owns the fiat-rate refresh timeline. It runs fully independently of
// the transaction fetch flow: a refresh is triggered solely by a currency
// change (or the periodic re-poll), and a failed or slow fetch leaves the
// cell unset so formatting degrades to the unknown marker instead of
// blocking transaction display.
type Service struct {
	source  RateSource
	cell    Cell
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	currency string
}

// NewService creates the pricing service. If m is nil, no metrics will be
// recorded.
func NewService(source RateSource, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		source:  source,
		metrics: m,
		logger:  logger,
	}
}

// SetCurrency switches the selected display currency and refreshes the rate
// for it. Selecting the current currency again is a no-op. The refresh runs
// detached from the caller's cancellation, and it never blocks or gets
// blocked by a transaction fetch cycle.
func (s *Service) SetCurrency(ctx context.Context, currencyCode string) {
	currency := strings.ToLower(currencyCode)

	s.mu.Lock()
	if currency == s.currency {
		s.mu.Unlock()
		return
	}
	s.currency = currency
	s.mu.Unlock()

	go s.refresh(context.WithoutCancel(ctx), currency)
}

// Currency returns the currently selected currency code.
func (s *Service) Currency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currency
}

// Latest returns the most recent committed rate, if one exists for the
// selected currency.
func (s *Service) Latest() (Rate, bool) {
	rate, ok := s.cell.Latest()
	if !ok {
		return Rate{}, false
	}
	if rate.Currency != s.Currency() {
		return Rate{}, false
	}
	return rate, true
}

// Refresh re-fetches the rate for the currently selected currency.
// Used by the periodic re-poll loop.
func (s *Service) Refresh(ctx context.Context) {
	currency := s.Currency()
	if currency == "" {
		return
	}
	s.refresh(ctx, currency)
}

// Run refreshes the rate on the given interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// refresh fetches the rate and commits it through the versioned cell. A rate
// fetched for a superseded refresh is discarded; a failed fetch only logs.
func (s *Service) refresh(ctx context.Context, currency string) {
	version := s.cell.Begin()

	value, err := s.source.GetRate(ctx, currency)
	if err != nil {
		s.logger.WarnContext(ctx, "rate fetch failed",
			"currency", currency,
			"error", err,
		)
		return
	}

	rate := Rate{
		Currency:  currency,
		Value:     value,
		FetchedAt: time.Now().UTC(),
	}
	if !s.cell.Commit(version, rate) {
		if s.metrics != nil {
			s.metrics.RecordStaleRateDropped()
		}
		s.logger.DebugContext(ctx, "discarded stale rate",
			"currency", currency,
			"rate", value,
		)
		return
	}

	s.logger.InfoContext(ctx, "rate refreshed",
		"currency", currency,
		"rate", value,
	)
}
