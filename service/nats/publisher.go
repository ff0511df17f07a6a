package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"permafeed/service/activity"
	"permafeed/service/metrics"
)

// Publisher defines the interface for publishing activity events to NATS.
type Publisher interface {
	// PublishActivity publishes a single activity event to JetStream.
	// The event is published to the subject "activity.{address}".
	PublishActivity(ctx context.Context, event *ActivityEvent) error

	// PublishActivityBatch publishes the records of one settled cycle.
	// It satisfies activity.Notifier.
	PublishActivityBatch(ctx context.Context, address, cycleID string, txns []activity.Transaction) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes activity events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

const (
	// StreamName is the name of the JetStream stream for activity events.
	StreamName = "ACTIVITY"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = "activity.*"

	// StreamRetention is how long events are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("permafeed-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Settled wallet activity events",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	_, err = p.js.CreateStream(ctx, streamConfig)
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishActivity publishes a single activity event.
func (p *JetStreamPublisher) PublishActivity(ctx context.Context, event *ActivityEvent) error {
	subject := fmt.Sprintf("activity.%s", event.Address)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)

	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(status, time.Since(start).Seconds())
	}

	if err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}

	p.logger.Debug("published activity event",
		"subject", subject,
		"id", event.ID,
		"category", event.Category,
	)

	return nil
}

// PublishActivityBatch publishes the records of one settled cycle.
func (p *JetStreamPublisher) PublishActivityBatch(ctx context.Context, address, cycleID string, txns []activity.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	for _, txn := range txns {
		event := FromTransaction(address, cycleID, txn)
		if err := p.PublishActivity(ctx, event); err != nil {
			// Log error but continue with other events
			p.logger.Error("failed to publish activity event in batch",
				"id", txn.ID,
				"address", address,
				"error", err,
			)
			continue
		}
	}

	p.logger.Debug("published activity batch",
		"address", address,
		"cycle_id", cycleID,
		"count", len(txns),
	)

	return nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
