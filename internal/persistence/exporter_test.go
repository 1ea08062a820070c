package persistence

import (
	"context"
	"strings"
	"testing"

	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/money"
	"PayLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func snap(client uint16, available, held string, locked bool) ledger.Snapshot {
	a := ledger.Account{
		Available: money.MustParse(available),
		Held:      money.MustParse(held),
		Locked:    locked,
	}
	return a.Snapshot(event.ClientID(client))
}

// ============================================================================
// Query building
// ============================================================================

func TestUpsertQuery_Placeholders(t *testing.T) {
	runID := uuid.New()
	snaps := []ledger.Snapshot{
		snap(1, "1.5", "0", false),
		snap(2, "-3", "0.25", true),
	}

	query, args := upsertQuery(runID, snaps)

	if !strings.Contains(query, "($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12)") {
		t.Errorf("unexpected VALUES list:\n%s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (run_id, client) DO UPDATE") {
		t.Errorf("missing upsert clause:\n%s", query)
	}
	if len(args) != 12 {
		t.Fatalf("expected 12 args, got %d", len(args))
	}
	if args[0] != runID || args[1] != 1 || args[2] != "1.5000" || args[5] != false {
		t.Errorf("first row args: %v", args[:6])
	}
	if args[8] != "0.2500" || args[9] != "-2.7500" || args[11] != true {
		t.Errorf("second row args: %v", args[6:])
	}
}

func TestExtractVersion(t *testing.T) {
	if got := extractVersion("0001_account_snapshots.up.sql"); got != "0001" {
		t.Errorf("got %q", got)
	}
	if got := extractVersion("noversion.sql"); got != "noversion.sql" {
		t.Errorf("got %q", got)
	}
}

// ============================================================================
// Postgres integration
// ============================================================================

func TestExporter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := NewMigrator(db, testutil.MigrationsDir(t), zerolog.Nop()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// Small batch size forces several INSERTs in one transaction
	exp := NewAccountExporter(db, 2, nil)
	runID := uuid.New()
	snaps := []ledger.Snapshot{
		snap(1, "1.5", "0", false),
		snap(2, "-3", "0.25", true),
		snap(9, "0.0001", "0", false),
	}
	if err := exp.Export(ctx, runID, snaps); err != nil {
		t.Fatalf("export: %v", err)
	}

	// Re-export overwrites
	snaps[0] = snap(1, "7", "0", false)
	if err := exp.Export(ctx, runID, snaps); err != nil {
		t.Fatalf("re-export: %v", err)
	}

	rows, err := exp.Load(ctx, runID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Available != "7.0000" || rows[0].Total != "7.0000" {
		t.Errorf("client 1 not overwritten: %+v", rows[0])
	}
	if rows[1].Total != "-2.7500" || !rows[1].Locked {
		t.Errorf("client 2: %+v", rows[1])
	}
	if rows[2].Client != 9 || rows[2].Available != "0.0001" {
		t.Errorf("client 9: %+v", rows[2])
	}

	other, err := exp.Load(ctx, uuid.New())
	if err != nil {
		t.Fatalf("load other run: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no rows for an unknown run, got %d", len(other))
	}
}

func TestMigrator_UpDown_Integration(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	m := NewMigrator(db, testutil.MigrationsDir(t), zerolog.Nop())

	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("up: %v", err)
	}
	// Second Up is a no-op
	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("second up: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no pending migrations, applied %d", n)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if len(applied) == 0 || applied[0] != "0001" {
		t.Errorf("unexpected applied versions: %v", applied)
	}

	for {
		rolled, err := m.Down(ctx)
		if err != nil {
			t.Fatalf("down: %v", err)
		}
		if !rolled {
			break
		}
	}

	// Leave the schema in place for other tests
	if n, err := m.Up(ctx); err != nil || n != len(applied) {
		t.Fatalf("re-apply: applied %d, err %v", n, err)
	}
}
