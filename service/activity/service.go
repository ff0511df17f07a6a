package activity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"permafeed/service/metrics"
)

// Valid ledger addresses: 43 base64url characters.
var validAddressRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{43}$`)

// ValidateAddress checks an address before a cycle is allowed to dispatch.
// This is the only precondition that aborts a cycle; everything past dispatch
// is absorbed.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is required")
	}
	if !validAddressRegex.MatchString(address) {
		return fmt.Errorf("invalid address format: %q", address)
	}
	return nil
}

// Notifier publishes the records of a settled cycle for downstream consumers.
// Implemented by the NATS publisher; nil disables notification.
type Notifier interface {
	PublishActivityBatch(ctx context.Context, address, cycleID string, txns []Transaction) error
}

// Service owns the fetch-cycle lifecycle for the active address: it runs
// dispatch → normalize → merge → enrich, tracks the observable load state,
// and publishes each cycle's collection atomically.
//
// A new address does not cancel an in-flight cycle. Instead publication is
// guarded last-write-wins: a cycle only publishes if the address it was
// started for is still the active one, so a late result for a superseded
// address is discarded rather than overwriting newer data.
type Service struct {
	dispatcher *Dispatcher
	normalizer *Normalizer
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger

	mu      sync.Mutex
	state   State
	address string
	records []Transaction
}

// NewService creates the activity service in the idle state.
// The notifier and metrics may be nil.
func NewService(dispatcher *Dispatcher, normalizer *Normalizer, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		dispatcher: dispatcher,
		normalizer: normalizer,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		state:      StateIdle,
	}
}

// SetAddress switches the active address and starts a fetch cycle for it.
// The idle/settled → loading transition fires exactly once per address
// change; setting the already-active address again is a no-op. The cycle
// runs detached from the caller's cancellation so a closed request cannot
// abort it mid-flight.
func (s *Service) SetAddress(ctx context.Context, address string) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}

	s.mu.Lock()
	if address == s.address && s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	s.address = address
	s.state = StateLoading
	s.mu.Unlock()

	cycleID := uuid.NewString()
	s.logger.InfoContext(ctx, "fetch cycle started",
		"address", address,
		"cycle_id", cycleID,
	)

	go s.runCycle(context.WithoutCancel(ctx), address, cycleID)
	return nil
}

// runCycle executes one full fetch cycle for the address it was started with.
// The cycle always reaches a settled collection, no matter how many sources
// failed; total failure settles as an empty set.
func (s *Service) runCycle(ctx context.Context, address, cycleID string) {
	start := time.Now()

	outcomes := s.dispatcher.Dispatch(ctx, address)

	batches := make([][]Transaction, len(outcomes))
	for i, outcome := range outcomes {
		batches[i] = s.normalizer.Normalize(outcome)
	}

	merged := Merge(batches...)
	enriched := Enrich(merged, time.Now())

	published := s.publish(address, enriched)

	outcome := "published"
	if !published {
		outcome = "superseded"
	}
	if s.metrics != nil {
		s.metrics.RecordCycle(outcome, time.Since(start).Seconds(), float64(len(enriched)))
	}
	s.logger.InfoContext(ctx, "fetch cycle finished",
		"address", address,
		"cycle_id", cycleID,
		"records", len(enriched),
		"outcome", outcome,
		"duration", time.Since(start),
	)

	if published && s.notifier != nil && len(enriched) > 0 {
		if err := s.notifier.PublishActivityBatch(ctx, address, cycleID, enriched); err != nil {
			s.logger.WarnContext(ctx, "failed to publish activity batch",
				"address", address,
				"cycle_id", cycleID,
				"error", err,
			)
		}
	}
}

// publish atomically replaces the collection with the cycle's result, unless
// the cycle's address has been superseded, in which case the result is
// dropped and the in-flight state of the newer cycle is left untouched.
func (s *Service) publish(address string, records []Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.address != address {
		if s.metrics != nil {
			s.metrics.RecordStaleCycleDropped()
		}
		return false
	}

	s.records = records
	s.state = StateSettled
	return true
}

// Snapshot returns the current load state, active address, and a copy of the
// settled collection in final sort order.
func (s *Service) Snapshot() (State, string, []Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]Transaction, len(s.records))
	copy(records, s.records)
	return s.state, s.address, records
}

// Record looks up a settled record by id, the navigation hook a consumer uses
// to route to a detail view.
func (s *Service) Record(id string) (Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txn := range s.records {
		if txn.ID == id {
			return txn, true
		}
	}
	return Transaction{}, false
}
