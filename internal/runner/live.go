package runner

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"

	"PayLedger/internal/core"
	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
)

// Live owns one engine in a single goroutine for serve mode. Records arrive
// on Input; snapshot queries are answered between records, so a reader
// never sees a half-applied transaction.
type Live struct {
	engine  *core.Engine
	opts    Options
	input   chan event.Transaction
	queries chan chan []ledger.Snapshot
	done    chan struct{}

	// Written by the loop, read by status endpoints
	applied  atomic.Int64
	rejected atomic.Int64

	stats Stats
}

func NewLive(opts Options) *Live {
	return &Live{
		engine:  core.NewEngine(ledger.NewStore(), opts.Metrics),
		opts:    opts,
		input:   make(chan event.Transaction, opts.channelSize()),
		queries: make(chan chan []ledger.Snapshot),
		done:    make(chan struct{}),
		stats:   newStats(),
	}
}

// Input is where sources and the injector send records.
func (l *Live) Input() chan<- event.Transaction {
	return l.input
}

// Run applies records until ctx is cancelled. Records still queued at that
// point are not applied; stop the sources first for a clean drain.
func (l *Live) Run(ctx context.Context) error {
	defer close(l.done)
	n := 0

	for {
		select {
		case <-ctx.Done():
			recordLedgerGauges(l.opts.Metrics, l.engine.Store())
			return nil

		case tx := <-l.input:
			l.applyOne(tx)

			n++
			if n%channelSampleEvery == 0 {
				l.sample()
			}

		case reply := <-l.queries:
			reply <- l.engine.Store().Snapshots()
			l.sample()
		}
	}
}

// Drain applies whatever is queued on Input without blocking. Call after
// the sources have stopped and Run has returned.
func (l *Live) Drain() {
	for {
		select {
		case tx := <-l.input:
			l.applyOne(tx)
		default:
			recordLedgerGauges(l.opts.Metrics, l.engine.Store())
			return
		}
	}
}

func (l *Live) applyOne(tx event.Transaction) {
	before := l.stats.Applied
	apply(l.engine, tx, &l.stats, l.opts.Logger)
	if l.stats.Applied > before {
		l.applied.Add(1)
	} else {
		l.rejected.Add(1)
	}
}

func (l *Live) sample() {
	if l.opts.Metrics == nil {
		return
	}
	l.opts.Metrics.SetChannelMetrics("live", len(l.input), cap(l.input))
	recordLedgerGauges(l.opts.Metrics, l.engine.Store())
}

// Snapshots returns all accounts sorted by client. After Run has returned
// the store is read directly.
func (l *Live) Snapshots(ctx context.Context) ([]ledger.Snapshot, error) {
	reply := make(chan []ledger.Snapshot, 1)

	select {
	case l.queries <- reply:
	case <-l.done:
		return l.engine.Store().Snapshots(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case snaps := <-reply:
		return snaps, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Account returns one client's snapshot.
func (l *Live) Account(ctx context.Context, client event.ClientID) (ledger.Snapshot, bool, error) {
	snaps, err := l.Snapshots(ctx)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	i, found := slices.BinarySearchFunc(snaps, client, func(s ledger.Snapshot, c event.ClientID) int {
		return cmp.Compare(s.Client, c)
	})
	if !found {
		return ledger.Snapshot{}, false, nil
	}
	return snaps[i], true, nil
}

// Counts returns applied and rejected totals so far. Safe from any goroutine.
func (l *Live) Counts() (applied, rejected int64) {
	return l.applied.Load(), l.rejected.Load()
}

// Stats returns the run statistics. Only valid after Run has returned.
func (l *Live) Stats() Stats {
	return l.stats
}
