package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"

	"github.com/google/uuid"
)

// DefaultExportBatch keeps each INSERT well under Postgres' 65535
// bind-parameter limit.
const DefaultExportBatch = 1000

const exportColumns = 6

// AccountExporter upserts final account snapshots into
// payledger.account_snapshots, keyed by (run_id, client).
// Amounts are stored as NUMERIC(20,4) from their 4 dp string form.
type AccountExporter struct {
	db        *sql.DB
	batchSize int
	metrics   *observability.Metrics
}

func NewAccountExporter(db *sql.DB, batchSize int, metrics *observability.Metrics) *AccountExporter {
	if batchSize <= 0 {
		batchSize = DefaultExportBatch
	}
	return &AccountExporter{
		db:        db,
		batchSize: batchSize,
		metrics:   metrics,
	}
}

// Export writes snaps for runID. Re-exporting the same run overwrites the
// earlier rows. All batches commit together or not at all.
func (e *AccountExporter) Export(ctx context.Context, runID uuid.UUID, snaps []ledger.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}

	for start := 0; start < len(snaps); start += e.batchSize {
		end := min(start+e.batchSize, len(snaps))
		query, args := upsertQuery(runID, snaps[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("export rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}

	if e.metrics != nil {
		e.metrics.ExportRows.Add(float64(len(snaps)))
	}
	return nil
}

// Load reads back the rows exported for runID, sorted by client.
func (e *AccountExporter) Load(ctx context.Context, runID uuid.UUID) ([]ExportedRow, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT client, available::TEXT, held::TEXT, total::TEXT, locked
		FROM payledger.account_snapshots
		WHERE run_id = $1
		ORDER BY client`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []ExportedRow
	for rows.Next() {
		var r ExportedRow
		if err := rows.Scan(&r.Client, &r.Available, &r.Held, &r.Total, &r.Locked); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ExportedRow is one stored snapshot with amounts as Postgres renders them.
type ExportedRow struct {
	Client    int
	Available string
	Held      string
	Total     string
	Locked    bool
}

func upsertQuery(runID uuid.UUID, snaps []ledger.Snapshot) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`INSERT INTO payledger.account_snapshots
		(run_id, client, available, held, total, locked)
		VALUES `)

	args := make([]interface{}, 0, len(snaps)*exportColumns)
	for i, s := range snaps {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * exportColumns
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args,
			runID, int(s.Client),
			s.Available.String(), s.Held.String(), s.Total.String(),
			s.Locked,
		)
	}

	b.WriteString(` ON CONFLICT (run_id, client) DO UPDATE SET
		available   = EXCLUDED.available,
		held        = EXCLUDED.held,
		total       = EXCLUDED.total,
		locked      = EXCLUDED.locked,
		exported_at = NOW()`)
	return b.String(), args
}
