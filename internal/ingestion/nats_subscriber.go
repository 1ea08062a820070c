package ingestion

import (
	"context"
	"fmt"
	"time"

	"PayLedger/internal/event"
	"PayLedger/internal/observability"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSource consumes JSON transaction records from a JetStream stream.
//
// The ledger lives only in memory, so every start replays the stream from
// its first message through an ordered consumer: records are delivered in
// stream order, nothing is acked and no consumer state survives the
// process. A restarted engine therefore rebuilds exactly the state it had.
// Malformed messages are logged, counted and skipped.
type NATSSource struct {
	js      jetstream.JetStream
	stream  string
	subject string
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewNATSSource(
	js jetstream.JetStream,
	stream, subject string,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *NATSSource {
	return &NATSSource{
		js:      js,
		stream:  stream,
		subject: subject,
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes until ctx is cancelled. The handler blocks while the runner
// channel is full, which pushes back on the pull consumer.
func (s *NATSSource) Run(ctx context.Context, out chan<- event.Transaction) error {
	consumer, err := s.js.OrderedConsumer(ctx, s.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{s.subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer on %s: %w", s.stream, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		tx, err := ParseRecord(msg.Data())
		if err != nil {
			s.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("drop malformed record")
			if s.metrics != nil {
				s.metrics.IngestErrors.WithLabelValues("nats").Inc()
			}
			return
		}

		select {
		case out <- tx:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.stream, err)
	}
	s.logger.Info().Str("stream", s.stream).Str("subject", s.subject).Msg("replaying stream from the start")

	<-ctx.Done()
	consumeCtx.Stop()
	s.logger.Info().Msg("NATS consumer stopped")
	return nil
}

// EnsureStream creates or updates the file-backed transaction stream.
// It has no age or size limit: the stream is the only durable copy of the
// ledger's input and every start replays it in full.
func EnsureStream(ctx context.Context, js jetstream.JetStream, name string, subjects ...string) error {
	return ensureStream(ctx, js, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		Replicas:  1,
	})
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg jetstream.StreamConfig) error {
	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}
	return nil
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}

// ConnCheck reports a closed or disconnected connection, for readiness.
func ConnCheck(nc *nats.Conn) func() error {
	return func() error {
		if !nc.IsConnected() {
			return fmt.Errorf("nats status %s", nc.Status())
		}
		return nil
	}
}
