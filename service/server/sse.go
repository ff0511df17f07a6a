package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/itchyny/gojq"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"permafeed/service/metrics"
	natspkg "permafeed/service/nats"
)

// SSEPublisher manages Server-Sent Events connections for activity streaming.
type SSEPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewSSEPublisher creates a new SSE publisher that subscribes to NATS internally.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("permafeed-sse-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	logger.Info("SSE publisher initialized", "nats_url", natsURL)

	return &SSEPublisher{
		nc:     nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamActivity handles SSE streaming of settled activity events.
// If the address path parameter is empty, streams all addresses. An optional
// "filter" query parameter takes a jq expression evaluated against each event;
// only events for which the expression yields a truthy value are forwarded.
func handleStreamActivity(publisher *SSEPublisher, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		var subject string
		var addressDesc string
		if address == "" {
			subject = "activity.*"
			addressDesc = "all"
		} else {
			subject = fmt.Sprintf("activity.%s", address)
			addressDesc = address
		}

		// Compile the optional jq filter before committing to the stream.
		var filter *gojq.Code
		if expr := r.URL.Query().Get("filter"); expr != "" {
			query, err := gojq.Parse(expr)
			if err != nil {
				writeError(w, fmt.Sprintf("invalid filter expression: %v", err), http.StatusBadRequest)
				return
			}
			filter, err = gojq.Compile(query)
			if err != nil {
				writeError(w, fmt.Sprintf("failed to compile filter expression: %v", err), http.StatusBadRequest)
				return
			}
		}

		// Set SSE headers
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		logger.DebugContext(r.Context(), "SSE client connected",
			"address", addressDesc,
			"remote_addr", r.RemoteAddr,
		)
		if m != nil {
			m.SSEConnectionOpened(addressDesc)
			defer m.SSEConnectionClosed(addressDesc)
		}

		// Create ephemeral consumer for this connection
		cons, err := publisher.js.CreateOrUpdateConsumer(r.Context(), natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverNewPolicy, // Only deliver new messages after consumer creation
			// Ephemeral - will be deleted when connection closes
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to create consumer",
				"address", addressDesc,
				"error", err,
			)
			fmt.Fprintf(w, "event: error\ndata: {\"error\": \"failed to subscribe\"}\n\n")
			return
		}

		msgChan := make(chan jetstream.Msg, 10)
		doneChan := make(chan struct{})

		go func() {
			defer close(doneChan)
			cc, err := cons.Consume(func(msg jetstream.Msg) {
				select {
				case msgChan <- msg:
				case <-r.Context().Done():
					return
				}
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start consuming messages",
					"error", err,
				)
				return
			}
			<-r.Context().Done()
			cc.Stop()
		}()

		// Send initial connection event
		fmt.Fprintf(w, "event: connected\ndata: {\"address\":\"%s\"}\n\n", addressDesc)
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		// Keepalive comments prevent intermediaries from timing out the stream
		keepalive := time.NewTicker(10 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

			case msg := <-msgChan:
				var event natspkg.ActivityEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(r.Context(), "failed to unmarshal event",
						"error", err,
					)
					msg.Ack()
					continue
				}

				if filter != nil && !matchesFilter(filter, msg.Data()) {
					msg.Ack()
					continue
				}

				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal event",
						"error", err,
					)
					msg.Ack()
					continue
				}

				fmt.Fprintf(w, "event: activity\ndata: %s\n\n", string(data))
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

				msg.Ack()

				if m != nil {
					m.RecordSSEEvent(addressDesc)
				}
				logger.DebugContext(r.Context(), "sent activity event",
					"address", addressDesc,
					"id", event.ID,
				)

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected",
					"address", addressDesc,
					"remote_addr", r.RemoteAddr,
				)
				return

			case <-doneChan:
				return
			}
		}
	})
}

// matchesFilter evaluates the compiled jq expression against the raw event
// JSON. An event matches when any emitted value is truthy (not false or null).
// Evaluation errors count as no match.
func matchesFilter(code *gojq.Code, raw []byte) bool {
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return false
	}

	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := v.(error); isErr {
			continue
		}
		if v != nil && v != false {
			return true
		}
	}
}
