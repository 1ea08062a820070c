package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PayLedger/internal/ingestion"
	"PayLedger/internal/observability"
	"PayLedger/internal/projection"
	"PayLedger/internal/query"
	"PayLedger/internal/runner"
	"PayLedger/internal/server"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume transactions from NATS JetStream and serve account queries",
		Long: `serve applies records from the configured JetStream subject to a live
ledger, serves GET /v1/accounts and POST /v1/transactions over HTTP, the
gRPC health service, /metrics, /healthz and /readyz. With --export-pg or
--publish, snapshots are pushed every --snapshot-interval and once more on
shutdown.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, flags, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "snapshot-interval", 10*time.Second, "how often changed snapshots are exported/published")
	return cmd
}

func serve(cmd *cobra.Command, flags *globalFlags, interval time.Duration) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	runID := uuid.New()
	componentLogger := func(component string) zerolog.Logger {
		return newLogger(cfg, component).With().Str("run_id", runID.String()).Logger()
	}
	logger := componentLogger("serve")

	ctx, stop := signalContext()
	defer stop()

	// --- Observability ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	health := observability.NewHealthChecker()

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, logger)
	if err != nil {
		return err
	}
	defer nc.Close()
	health.AddCheck("nats", ingestion.ConnCheck(nc))

	if err := ingestion.EnsureStream(ctx, js, cfg.NATSStream, cfg.NATSSubject); err != nil {
		return err
	}
	logger.Info().Str("url", cfg.NATSURL).Str("stream", cfg.NATSStream).Msg("NATS connected")

	// --- Engine ---
	live := runner.NewLive(runner.Options{
		ChannelSize: cfg.ChannelSize,
		Logger:      logger,
		Metrics:     metrics,
	})
	source := ingestion.NewNATSSource(js, cfg.NATSStream, cfg.NATSSubject, logger, metrics)

	// --- Snapshot sinks ---
	worker := projection.NewWorker(live, interval, runID, componentLogger("projection"))
	if flags.exportPG {
		exp, db, err := openExporter(ctx, cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer db.Close()
		health.AddCheck("postgres", db.Ping)
		worker.AddSink("postgres", exp.Export)
	}
	if flags.publish {
		if err := ingestion.EnsureSnapshotStream(ctx, js, snapshotStreamName, cfg.SnapshotSubject); err != nil {
			return err
		}
		worker.AddSink("nats", ingestion.NewSnapshotPublisher(js, cfg.SnapshotSubject, metrics).Publish)
	}

	// --- Servers ---
	srv, err := server.New(server.Addrs{
		GRPC:    cfg.GRPCAddr,
		HTTP:    cfg.HTTPAddr,
		Metrics: cfg.MetricsAddr,
	}, server.Deps{
		Query:    query.NewService(live, runID, metrics),
		Injector: ingestion.NewInjector(live.Input()),
		Health:   health,
		Gatherer: reg,
		Logger:   componentLogger("server"),
	})
	if err != nil {
		return err
	}

	// The engine outlives the sources so that records already queued when
	// shutdown starts can still be drained.
	liveCtx, stopLive := context.WithCancel(context.Background())
	defer stopLive()
	liveDone := make(chan error, 1)
	go func() { liveDone <- live.Run(liveCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := source.Run(gctx, live.Input()); err != nil {
			return fmt.Errorf("nats source: %w", err)
		}
		return nil
	})
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return worker.Run(gctx) })

	srv.SetServing(true)
	logger.Info().
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("PayLedger ready")

	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if runErr != nil {
		logger.Error().Err(runErr).Msg("component failed, shutting down")
	} else {
		logger.Info().Msg("shutting down")
	}

	// --- Graceful shutdown ---
	srv.SetServing(false)
	stopLive()
	if err := <-liveDone; err != nil && runErr == nil {
		runErr = err
	}
	live.Drain()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	snaps, err := live.Snapshots(shutdownCtx)
	if err != nil {
		return errors.Join(runErr, err)
	}
	if err := worker.Flush(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("final snapshot flush failed")
		runErr = errors.Join(runErr, err)
	}
	runner.LogSummary(logger, snaps, live.Stats())

	return runErr
}
