package projection

import (
	"context"
	"time"

	"PayLedger/internal/core"
	"PayLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reader supplies a consistent view of all accounts, sorted by client.
type Reader interface {
	Snapshots(ctx context.Context) ([]ledger.Snapshot, error)
}

// SinkFunc receives a full set of snapshots, e.g. the Postgres exporter or
// the NATS publisher.
type SinkFunc func(ctx context.Context, runID uuid.UUID, snapshots []ledger.Snapshot) error

type namedSink struct {
	name string
	fn   SinkFunc
}

// Worker periodically pushes account snapshots to its sinks while the live
// runner keeps applying transactions. A push is skipped when the state
// digest has not changed since the last successful one. Sink failures are
// logged and retried on the next tick; downstream copies are eventually
// consistent.
type Worker struct {
	reader   Reader
	sinks    []namedSink
	interval time.Duration
	runID    uuid.UUID
	logger   zerolog.Logger

	lastDigest [32]byte
	pushed     bool
}

func NewWorker(reader Reader, interval time.Duration, runID uuid.UUID, logger zerolog.Logger) *Worker {
	return &Worker{
		reader:   reader,
		interval: interval,
		runID:    runID,
		logger:   logger,
	}
}

// AddSink registers a sink. Not safe to call once Run has started.
func (w *Worker) AddSink(name string, fn SinkFunc) {
	w.sinks = append(w.sinks, namedSink{name: name, fn: fn})
}

// Run ticks until ctx is cancelled. It does not flush on exit; call Flush
// with a fresh context during shutdown.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.sinks) == 0 || w.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Flush(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("projection update failed")
			}
		}
	}
}

// Flush pushes the current snapshots to every sink if the state changed.
// It returns the first sink error after trying all of them.
func (w *Worker) Flush(ctx context.Context) error {
	snapshots, err := w.reader.Snapshots(ctx)
	if err != nil {
		return err
	}

	digest := core.StateDigest(snapshots)
	if w.pushed && digest == w.lastDigest {
		return nil
	}

	var firstErr error
	for _, s := range w.sinks {
		if err := s.fn(ctx, w.runID, snapshots); err != nil {
			w.logger.Warn().Err(err).Str("sink", s.name).Msg("sink failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.logger.Debug().Str("sink", s.name).Int("accounts", len(snapshots)).Msg("snapshots pushed")
	}

	if firstErr == nil {
		w.lastDigest = digest
		w.pushed = true
	}
	return firstErr
}
