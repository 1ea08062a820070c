package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PayLedger/internal/core"
	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamPublisher is the part of jetstream.JetStream the publisher needs.
type StreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// SnapshotPublisher publishes account snapshots for downstream consumers.
// Subjects follow <base>.<client>. The message id
// <runID>:<digest>:<client>, digest being the first 8 bytes of the state
// digest in hex, lets JetStream drop a republished identical state while
// every changed state gets through.
type SnapshotPublisher struct {
	js      StreamPublisher
	base    string
	metrics *observability.Metrics
}

func NewSnapshotPublisher(js StreamPublisher, base string, metrics *observability.Metrics) *SnapshotPublisher {
	return &SnapshotPublisher{
		js:      js,
		base:    base,
		metrics: metrics,
	}
}

// Publish sends one message per snapshot and stops at the first failure.
func (p *SnapshotPublisher) Publish(ctx context.Context, runID uuid.UUID, snapshots []ledger.Snapshot) error {
	digest := core.StateDigest(snapshots)
	for _, s := range snapshots {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal snapshot client=%d: %w", s.Client, err)
		}

		subject := fmt.Sprintf("%s.%d", p.base, s.Client)
		msg := nats.NewMsg(subject)
		msg.Data = data
		msg.Header.Set(nats.MsgIdHdr, SnapshotMsgID(runID, digest, s.Client))

		if _, err := p.js.PublishMsg(ctx, msg); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}

		if p.metrics != nil {
			p.metrics.SnapshotsPublished.Inc()
		}
	}
	return nil
}

// SnapshotMsgID is the JetStream dedup id for one account of one published
// state.
func SnapshotMsgID(runID uuid.UUID, digest [32]byte, client event.ClientID) string {
	return fmt.Sprintf("%s:%x:%d", runID, digest[:8], client)
}

// EnsureSnapshotStream creates the stream that receives published
// snapshots. Only the latest few states per account are worth keeping.
func EnsureSnapshotStream(ctx context.Context, js jetstream.JetStream, name, base string) error {
	return ensureStream(ctx, js, jetstream.StreamConfig{
		Name:              name,
		Subjects:          []string{base + ".>"},
		Storage:           jetstream.FileStorage,
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            72 * time.Hour,
		MaxMsgsPerSubject: 16,
		Replicas:          1,
	})
}
