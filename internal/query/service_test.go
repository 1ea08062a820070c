package query_test

import (
	"context"
	"errors"
	"testing"

	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/money"
	"PayLedger/internal/query"

	"github.com/google/uuid"
)

// storeReader serves snapshots straight from a store.
type storeReader struct {
	store *ledger.Store
	err   error
}

func (r *storeReader) Snapshots(context.Context) ([]ledger.Snapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.store.Snapshots(), nil
}

func (r *storeReader) Account(_ context.Context, client event.ClientID) (ledger.Snapshot, bool, error) {
	if r.err != nil {
		return ledger.Snapshot{}, false, r.err
	}
	acc, ok := r.store.ExistingAccount(client)
	if !ok {
		return ledger.Snapshot{}, false, nil
	}
	return acc.Snapshot(client), true, nil
}

func (r *storeReader) Counts() (int64, int64) {
	return 5, 2
}

func newReader() *storeReader {
	s := ledger.NewStore()
	s.AccountFor(2).Available = money.MustParse("20")
	s.AccountFor(1).Available = money.MustParse("10")
	locked := s.AccountFor(3)
	locked.Available = money.MustParse("-1")
	locked.Locked = true
	return &storeReader{store: s}
}

func TestListAccounts(t *testing.T) {
	svc := query.NewService(newReader(), uuid.New(), nil)

	resp, err := svc.ListAccounts(context.Background(), query.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Count != 3 || resp.Accounts[0].Client != 1 || resp.Accounts[2].Client != 3 {
		t.Errorf("unexpected accounts: %+v", resp.Accounts)
	}
	if len(resp.Digest) != 64 {
		t.Errorf("digest should be 32 bytes hex, got %q", resp.Digest)
	}
}

func TestListAccounts_LockedOnly(t *testing.T) {
	svc := query.NewService(newReader(), uuid.New(), nil)

	resp, err := svc.ListAccounts(context.Background(), query.ListFilter{LockedOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Count != 1 || resp.Accounts[0].Client != 3 {
		t.Errorf("expected only client 3, got %+v", resp.Accounts)
	}
}

func TestListAccounts_EmptyIsNotNil(t *testing.T) {
	svc := query.NewService(&storeReader{store: ledger.NewStore()}, uuid.New(), nil)

	resp, err := svc.ListAccounts(context.Background(), query.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Accounts == nil || resp.Count != 0 {
		t.Errorf("expected empty non-nil list, got %+v", resp)
	}
}

func TestGetAccount(t *testing.T) {
	svc := query.NewService(newReader(), uuid.New(), nil)

	snap, err := svc.GetAccount(context.Background(), 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Total != money.MustParse("20") {
		t.Errorf("total: got %s", snap.Total)
	}

	if _, err := svc.GetAccount(context.Background(), 99); !errors.Is(err, query.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	runID := uuid.New()
	svc := query.NewService(newReader(), runID, nil)

	resp, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.RunID != runID || resp.Accounts != 3 || resp.Locked != 1 {
		t.Errorf("unexpected status: %+v", resp)
	}
	if resp.Applied != 5 || resp.Rejected != 2 {
		t.Errorf("counts: got %d/%d", resp.Applied, resp.Rejected)
	}
}

func TestReaderError(t *testing.T) {
	boom := errors.New("closed")
	svc := query.NewService(&storeReader{err: boom}, uuid.New(), nil)

	if _, err := svc.ListAccounts(context.Background(), query.ListFilter{}); !errors.Is(err, boom) {
		t.Errorf("list: expected wrapped reader error, got %v", err)
	}
	if _, err := svc.GetAccount(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("get: expected wrapped reader error, got %v", err)
	}
}
