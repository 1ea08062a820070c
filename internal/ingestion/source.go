package ingestion

import (
	"context"

	"PayLedger/internal/event"
)

// SliceSource replays an in-memory list of records. Used by tests, benchmarks
// and the workload generator.
type SliceSource struct {
	records []event.Transaction
}

func NewSliceSource(records []event.Transaction) *SliceSource {
	return &SliceSource{records: records}
}

// Run sends every record to out in order.
func (s *SliceSource) Run(ctx context.Context, out chan<- event.Transaction) error {
	for _, tx := range s.records {
		if err := send(ctx, out, tx); err != nil {
			return err
		}
	}
	return nil
}

// send blocks until out accepts tx or ctx is done.
func send(ctx context.Context, out chan<- event.Transaction, tx event.Transaction) error {
	select {
	case out <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
