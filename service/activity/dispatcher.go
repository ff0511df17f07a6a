package activity

import (
	"context"
	"log/slog"
	"sync"

	"permafeed/service/gateway"
	"permafeed/service/metrics"
)

// Source describes one of the fixed queries a fetch cycle fans out to.
type Source struct {
	Name         string
	Category     Category
	ComputeLayer bool
	Query        string
}

// Sources returns the fixed ordered list of source queries for an address.
func Sources() []Source {
	return []Source{
		{Name: "native_received", Category: CategoryReceived, Query: gateway.NativeReceivedQuery},
		{Name: "native_sent", Category: CategorySent, Query: gateway.NativeSentQuery},
		{Name: "compute_sent", Category: CategoryComputeSent, ComputeLayer: true, Query: gateway.ComputeSentQuery},
		{Name: "compute_received", Category: CategoryComputeReceived, ComputeLayer: true, Query: gateway.ComputeReceivedQuery},
	}
}

// Outcome is the settled result of a single source query: either a payload or
// a failure reason, never both. Failures are absorbed downstream by the
// normalizer; they never abort the cycle.
type Outcome struct {
	Source Source
	Page   *gateway.TransactionsPage
	Err    error
}

// Dispatcher fans a fetch cycle out to the source queries.
type Dispatcher struct {
	exec     gateway.Executor
	pageSize int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher that executes queries via exec.
// If m is nil, no metrics will be recorded.
func NewDispatcher(exec gateway.Executor, pageSize int, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	if pageSize < 1 {
		pageSize = 10
	}
	return &Dispatcher{
		exec:     exec,
		pageSize: pageSize,
		metrics:  m,
		logger:   logger,
	}
}

// Dispatch executes all source queries for the address concurrently and waits
// for every one of them to settle. The returned slice has the same length and
// order as Sources(); each element holds either that source's payload or its
// failure. No retries happen at this layer, and no source's failure cancels
// or delays the others.
func (d *Dispatcher) Dispatch(ctx context.Context, address string) []Outcome {
	sources := Sources()
	outcomes := make([]Outcome, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			variables := map[string]any{
				"address": address,
				"first":   d.pageSize,
			}
			page, err := d.exec.Execute(ctx, src.Name, src.Query, variables)
			outcomes[i] = Outcome{Source: src, Page: page, Err: err}

			if err != nil {
				if d.metrics != nil {
					d.metrics.RecordSourceFailure(src.Name)
				}
				d.logger.WarnContext(ctx, "source query failed",
					"source", src.Name,
					"address", address,
					"error", err,
				)
			}
		}(i, src)
	}
	wg.Wait()

	return outcomes
}
