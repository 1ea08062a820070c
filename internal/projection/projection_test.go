package projection_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"PayLedger/internal/ledger"
	"PayLedger/internal/money"
	"PayLedger/internal/projection"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func sampleSnapshots() []ledger.Snapshot {
	return []ledger.Snapshot{
		ledger.Account{Available: money.MustParse("1.5")}.Snapshot(1),
		ledger.Account{Available: money.MustParse("-50"), Locked: true}.Snapshot(2),
		ledger.Account{Available: money.MustParse("0.1234"), Held: money.MustParse("3")}.Snapshot(3),
	}
}

// ============================================================================
// Test: Output rendering
// ============================================================================

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := projection.WriteCSV(&buf, sampleSnapshots()); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := "client,available,held,total,locked\n" +
		"1,1.5000,0.0000,1.5000,false\n" +
		"2,-50.0000,0.0000,-50.0000,true\n" +
		"3,0.1234,3.0000,3.1234,false\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := projection.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "client,available,held,total,locked\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := projection.WriteJSON(&buf, sampleSnapshots()[:1]); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0]["available"] != "1.5000" || got[0]["client"] != float64(1) || got[0]["locked"] != false {
		t.Errorf("unexpected entry: %v", got[0])
	}

	buf.Reset()
	projection.WriteJSON(&buf, nil)
	if buf.String() != "[]\n" {
		t.Errorf("empty list should render as [], got %q", buf.String())
	}
}

// ============================================================================
// Test: Worker
// ============================================================================

type staticReader struct {
	snaps []ledger.Snapshot
	err   error
}

func (r *staticReader) Snapshots(context.Context) ([]ledger.Snapshot, error) {
	return r.snaps, r.err
}

func TestWorker_FlushSkipsUnchangedState(t *testing.T) {
	reader := &staticReader{snaps: sampleSnapshots()}
	w := projection.NewWorker(reader, 0, uuid.New(), zerolog.Nop())

	calls := 0
	w.AddSink("count", func(context.Context, uuid.UUID, []ledger.Snapshot) error {
		calls++
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := w.Flush(ctx); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("unchanged state should be pushed once, got %d", calls)
	}

	reader.snaps = sampleSnapshots()[:2]
	w.Flush(ctx)
	if calls != 2 {
		t.Errorf("changed state should be pushed, got %d calls", calls)
	}
}

func TestWorker_FailedSinkRetried(t *testing.T) {
	reader := &staticReader{snaps: sampleSnapshots()}
	w := projection.NewWorker(reader, 0, uuid.New(), zerolog.Nop())

	fail := true
	okCalls := 0
	w.AddSink("flaky", func(context.Context, uuid.UUID, []ledger.Snapshot) error {
		if fail {
			return errors.New("postgres down")
		}
		return nil
	})
	w.AddSink("ok", func(context.Context, uuid.UUID, []ledger.Snapshot) error {
		okCalls++
		return nil
	})

	if err := w.Flush(context.Background()); err == nil {
		t.Fatal("expected sink error")
	}
	if okCalls != 1 {
		t.Errorf("other sinks should still run, got %d", okCalls)
	}

	fail = false
	if err := w.Flush(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if okCalls != 2 {
		t.Errorf("state should be pushed again after a failure, got %d", okCalls)
	}
}

func TestWorker_ReaderError(t *testing.T) {
	w := projection.NewWorker(&staticReader{err: context.Canceled}, 0, uuid.New(), zerolog.Nop())
	w.AddSink("never", func(context.Context, uuid.UUID, []ledger.Snapshot) error {
		t.Error("sink must not run when the reader fails")
		return nil
	})
	if err := w.Flush(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected reader error, got %v", err)
	}
}

func TestWorker_RunWithoutSinksWaits(t *testing.T) {
	w := projection.NewWorker(&staticReader{}, 0, uuid.New(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("expected clean exit, got %v", err)
	}
}
