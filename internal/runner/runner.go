// Package runner drives the transaction engine from a Source: sequentially,
// partitioned by client id across workers, or live for serve mode.
package runner

import (
	"context"
	"fmt"

	"PayLedger/internal/core"
	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultChannelSize bounds the queue between a source and the engine.
const DefaultChannelSize = 1024

// channelSampleEvery controls how often channel utilization is recorded.
const channelSampleEvery = 1024

// Source produces transaction records in order. Run returns when the input
// is exhausted, ctx is cancelled, or the input is malformed; it never closes
// out.
type Source interface {
	Run(ctx context.Context, out chan<- event.Transaction) error
}

// Options are shared by all runners.
type Options struct {
	ChannelSize int
	Logger      zerolog.Logger
	Metrics     *observability.Metrics // may be nil
}

func (o Options) channelSize() int {
	if o.ChannelSize <= 0 {
		return DefaultChannelSize
	}
	return o.ChannelSize
}

// Stats counts engine outcomes for one run.
type Stats struct {
	Applied  int
	Rejected map[string]int // by core.RejectReason
}

func newStats() Stats {
	return Stats{Rejected: make(map[string]int)}
}

// TotalRejected sums rejections over all reasons.
func (s Stats) TotalRejected() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

func (s *Stats) merge(o Stats) {
	s.Applied += o.Applied
	for reason, c := range o.Rejected {
		s.Rejected[reason] += c
	}
}

// apply runs one record through the engine and records the outcome.
// Rejections are expected and only logged at debug.
func apply(e *core.Engine, tx event.Transaction, stats *Stats, logger zerolog.Logger) {
	err := e.Apply(tx)
	if err == nil {
		stats.Applied++
		return
	}

	reason := core.RejectReason(err)
	stats.Rejected[reason]++
	logger.Debug().
		Err(err).
		Str("kind", tx.Kind().String()).
		Uint16("client", uint16(tx.Client())).
		Uint32("tx", uint32(tx.TxID())).
		Str("reason", reason).
		Msg("transaction rejected")
}

// Runner applies records to a single engine in arrival order.
type Runner struct {
	opts Options
}

func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run streams src through a bounded channel into one engine. A source error
// cancels the run and is returned; rejections are only counted.
func (r *Runner) Run(ctx context.Context, src Source) (*ledger.Store, Stats, error) {
	store := ledger.NewStore()
	engine := core.NewEngine(store, r.opts.Metrics)
	stats := newStats()

	records := make(chan event.Transaction, r.opts.channelSize())
	g, gctx := errgroup.WithContext(ctx)

	// Reader
	g.Go(func() error {
		defer close(records)
		return src.Run(gctx, records)
	})

	// Processor
	g.Go(func() error {
		n := 0
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case tx, ok := <-records:
				if !ok {
					return nil
				}
				apply(engine, tx, &stats, r.opts.Logger)

				n++
				if r.opts.Metrics != nil && n%channelSampleEvery == 0 {
					r.opts.Metrics.SetChannelMetrics("records", len(records), cap(records))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	recordLedgerGauges(r.opts.Metrics, store)
	return store, stats, nil
}

// Partitioned applies records with one engine per shard, shard = client % N.
// A single dispatcher keeps each client's records in arrival order; shards
// share one processed set so transaction ids stay globally unique, and an
// idGate orders reuse of an id across shards.
type Partitioned struct {
	workers int
	opts    Options
}

func NewPartitioned(workers int, opts Options) *Partitioned {
	if workers < 1 {
		workers = 1
	}
	return &Partitioned{workers: workers, opts: opts}
}

// Run returns the merged snapshots of all shards, sorted by client.
//
// Records for different clients may be applied in a different relative
// order than they arrived, but the result equals a sequential run: the
// only state shards share is the processed set, and idGate serializes
// competing uses of one transaction id in arrival order.
func (p *Partitioned) Run(ctx context.Context, src Source) ([]ledger.Snapshot, Stats, error) {
	processed := ledger.NewSharedProcessedSet()
	gate := newIDGate(p.workers)
	size := p.opts.channelSize()

	records := make(chan event.Transaction, size)
	shards := make([]chan event.Transaction, p.workers)
	engines := make([]*core.Engine, p.workers)
	shardStats := make([]Stats, p.workers)
	for i := range shards {
		shards[i] = make(chan event.Transaction, size)
		engines[i] = core.NewEngine(ledger.NewStoreWithProcessed(processed), p.opts.Metrics)
		shardStats[i] = newStats()
	}

	g, gctx := errgroup.WithContext(ctx)

	// Reader
	g.Go(func() error {
		defer close(records)
		return src.Run(gctx, records)
	})

	// Dispatcher
	g.Go(func() error {
		defer func() {
			for _, ch := range shards {
				close(ch)
			}
		}()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case tx, ok := <-records:
				if !ok {
					return nil
				}
				k := int(tx.Client()) % p.workers
				if err := gate.admit(gctx, tx, k); err != nil {
					return err
				}
				select {
				case shards[k] <- tx:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	// Shard workers
	for i := range shards {
		logger := p.opts.Logger.With().Int("shard", i).Logger()
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case tx, ok := <-shards[i]:
					if !ok {
						return nil
					}
					apply(engines[i], tx, &shardStats[i], logger)
					gate.applied(i)
				}
			}
		})
	}

	stats := newStats()
	if err := g.Wait(); err != nil {
		for _, s := range shardStats {
			stats.merge(s)
		}
		return nil, stats, err
	}

	parts := make([][]ledger.Snapshot, len(engines))
	accounts, locked, deposits := 0, 0, 0
	for i, e := range engines {
		stats.merge(shardStats[i])
		parts[i] = e.Store().Snapshots()
		accounts += e.Store().Len()
		locked += e.Store().LockedCount()
		deposits += e.Store().DepositCount()
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.SetLedgerGauges(accounts, locked, deposits)
	}

	return ledger.MergeSnapshots(parts...), stats, nil
}

// Execute runs src with the sequential runner when workers <= 1 and the
// partitioned one otherwise.
func Execute(ctx context.Context, workers int, opts Options, src Source) ([]ledger.Snapshot, Stats, error) {
	if workers <= 1 {
		store, stats, err := New(opts).Run(ctx, src)
		if err != nil {
			return nil, stats, err
		}
		return store.Snapshots(), stats, nil
	}
	return NewPartitioned(workers, opts).Run(ctx, src)
}

func recordLedgerGauges(m *observability.Metrics, s *ledger.Store) {
	if m == nil {
		return
	}
	m.SetLedgerGauges(s.Len(), s.LockedCount(), s.DepositCount())
}

// LogSummary writes the end-of-run line with the state digest.
func LogSummary(logger zerolog.Logger, snapshots []ledger.Snapshot, stats Stats) {
	digest := core.StateDigest(snapshots)
	ev := logger.Info().
		Int("accounts", len(snapshots)).
		Int("applied", stats.Applied).
		Int("rejected", stats.TotalRejected()).
		Str("digest", fmt.Sprintf("%x", digest[:8]))

	if len(stats.Rejected) > 0 {
		d := zerolog.Dict()
		for reason, c := range stats.Rejected {
			d.Int(reason, c)
		}
		ev = ev.Dict("rejections", d)
	}
	ev.Msg("run complete")
}
