package runner

import (
	"context"
	"sync/atomic"
	"time"

	"PayLedger/internal/event"
)

const (
	gateBackoff  = 20 * time.Microsecond
	gateMinPrune = 1 << 16
)

// idGate makes cross-shard uses of one transaction id resolve in arrival
// order. Deposits and withdrawals claim their id in the shared processed
// set; a rejected record leaves the id free for a later one. So before the
// dispatcher hands a record to shard k, every earlier record with the same
// id on another shard must have been applied. Records of one shard already
// apply in order and never wait.
//
// The dispatcher owns pending and sent; shard workers only bump done.
type idGate struct {
	pending map[event.TransactionID]idClaim
	sent    []uint64
	done    []atomic.Uint64
	pruneAt int
}

// idClaim is the last record that used an id: its shard and its position
// in that shard's queue (1-based).
type idClaim struct {
	shard int
	seq   uint64
}

func newIDGate(shards int) *idGate {
	return &idGate{
		pending: make(map[event.TransactionID]idClaim),
		sent:    make([]uint64, shards),
		done:    make([]atomic.Uint64, shards),
		pruneAt: gateMinPrune,
	}
}

// admit blocks until tx may be queued on shard, then records it as queued.
func (g *idGate) admit(ctx context.Context, tx event.Transaction, shard int) error {
	g.sent[shard]++

	switch tx.(type) {
	case *event.Deposit, *event.Withdrawal:
	default:
		return nil
	}

	id := tx.TxID()
	if prev, ok := g.pending[id]; ok && prev.shard != shard {
		for g.done[prev.shard].Load() < prev.seq {
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(gateBackoff)
		}
	}
	g.pending[id] = idClaim{shard: shard, seq: g.sent[shard]}

	if len(g.pending) >= g.pruneAt {
		g.prune()
	}
	return nil
}

// applied is called by shard after each record it applies.
func (g *idGate) applied(shard int) {
	g.done[shard].Add(1)
}

// prune drops claims whose record has been applied; nothing can wait on
// them any more.
func (g *idGate) prune() {
	for id, c := range g.pending {
		if g.done[c.shard].Load() >= c.seq {
			delete(g.pending, id)
		}
	}
	g.pruneAt = max(2*len(g.pending), gateMinPrune)
}
