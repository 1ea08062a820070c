package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PayLedger/internal/config"
	"PayLedger/internal/observability"
	"PayLedger/internal/persistence"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	workers    int
	exportPG   bool
	publish    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	var format string

	root := &cobra.Command{
		Use:   "payledger <transactions.csv>",
		Short: "Process deposit, withdrawal and dispute records into client balances",
		Long: `payledger reads a CSV of transactions (type,client,tx,amount), applies
them to per-client accounts and writes the final balances as CSV to stdout.
Logs go to stderr.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, flags, args[0], format)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "TOML config file")
	pf.IntVar(&flags.workers, "workers", 1, "worker count: 0 or 1 sequential, >1 partitioned by client")
	pf.BoolVar(&flags.exportPG, "export-pg", false, "export final snapshots to Postgres")
	pf.BoolVar(&flags.publish, "publish", false, "publish final snapshots to NATS JetStream")
	root.Flags().StringVar(&format, "format", "csv", "output format: csv or json")

	root.AddCommand(newGenCmd(), newServeCmd(flags))
	return root
}

// loadConfig resolves env, then the TOML file, then explicit flags.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = flags.workers
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config, component string) zerolog.Logger {
	return observability.NewLoggerWithLevel(os.Stderr, component, observability.ParseLogLevel(cfg.LogLevel))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// openExporter connects to Postgres, applies migrations and returns an
// exporter. The caller closes the db.
func openExporter(ctx context.Context, cfg config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*persistence.AccountExporter, *sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}

	n, err := persistence.NewMigrator(db, cfg.MigrationsDir, logger).Up(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Int("applied", n).Msg("Postgres ready")

	return persistence.NewAccountExporter(db, persistence.DefaultExportBatch, metrics), db, nil
}
