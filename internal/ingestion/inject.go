package ingestion

import (
	"context"

	"PayLedger/internal/event"
)

// Injector feeds manually submitted records into a running engine, next to
// the NATS stream. Intended for operators, not bulk load.
type Injector struct {
	out chan<- event.Transaction
}

func NewInjector(out chan<- event.Transaction) *Injector {
	return &Injector{out: out}
}

// Inject parses a JSON record and queues it. The returned record is what
// was queued; whether the engine accepts it is only visible in later
// snapshots.
func (i *Injector) Inject(ctx context.Context, data []byte) (event.Transaction, error) {
	tx, err := ParseRecord(data)
	if err != nil {
		return nil, err
	}
	if err := send(ctx, i.out, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
