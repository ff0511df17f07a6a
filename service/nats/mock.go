package nats

import (
	"context"
	"sync"

	"permafeed/service/activity"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ActivityEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ActivityEvent, 0),
	}
}

// PublishActivity records the event and returns any configured error.
func (m *MockPublisher) PublishActivity(ctx context.Context, event *ActivityEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishActivityBatch records the batch and returns any configured error.
func (m *MockPublisher) PublishActivityBatch(ctx context.Context, address, cycleID string, txns []activity.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	for _, txn := range txns {
		m.publishedEvents = append(m.publishedEvents, FromTransaction(address, cycleID, txn))
	}
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*ActivityEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForAddress returns events published for a specific address.
func (m *MockPublisher) GetPublishedEventsForAddress(address string) []*ActivityEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ActivityEvent, 0)
	for _, event := range m.publishedEvents {
		if event.Address == address {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
