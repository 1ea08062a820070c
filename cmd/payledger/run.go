package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"PayLedger/internal/config"
	"PayLedger/internal/ingestion"
	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"
	"PayLedger/internal/projection"
	"PayLedger/internal/runner"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const snapshotStreamName = "PAYLEDGER_ACCOUNTS"

func runFile(cmd *cobra.Command, flags *globalFlags, path, format string) error {
	if format != "csv" && format != "json" {
		return fmt.Errorf("unknown format %q (use csv or json)", format)
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, "runner")
	runID := uuid.New()
	logger = logger.With().Str("run_id", runID.String()).Logger()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	ctx, stop := signalContext()
	defer stop()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	src := ingestion.NewCSVSource(bufio.NewReaderSize(f, 1<<16), path, metrics)
	opts := runner.Options{
		ChannelSize: cfg.ChannelSize,
		Logger:      logger,
		Metrics:     metrics,
	}

	logger.Info().Str("input", path).Int("workers", cfg.Workers).Msg("run starting")
	snaps, stats, err := runner.Execute(ctx, cfg.Workers, opts, src)
	if err != nil {
		return err
	}
	runner.LogSummary(logger, snaps, stats)

	out := bufio.NewWriter(cmd.OutOrStdout())
	if format == "json" {
		err = projection.WriteJSON(out, snaps)
	} else {
		err = projection.WriteCSV(out, snaps)
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return exportRun(ctx, flags, cfg, runID, snaps, metrics, logger)
}

// exportRun sends final snapshots to the configured downstream stores.
func exportRun(
	ctx context.Context,
	flags *globalFlags,
	cfg config.Config,
	runID uuid.UUID,
	snaps []ledger.Snapshot,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) error {
	if flags.exportPG {
		exp, db, err := openExporter(ctx, cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := exp.Export(ctx, runID, snaps); err != nil {
			return fmt.Errorf("export to postgres: %w", err)
		}
		logger.Info().Int("rows", len(snaps)).Msg("exported snapshots to Postgres")
	}

	if flags.publish {
		nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		if err := ingestion.EnsureSnapshotStream(ctx, js, snapshotStreamName, cfg.SnapshotSubject); err != nil {
			return err
		}
		pub := ingestion.NewSnapshotPublisher(js, cfg.SnapshotSubject, metrics)
		if err := pub.Publish(ctx, runID, snaps); err != nil {
			return fmt.Errorf("publish snapshots: %w", err)
		}
		logger.Info().Int("messages", len(snaps)).Msg("published snapshots to NATS")
	}
	return nil
}
