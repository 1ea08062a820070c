package query

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"PayLedger/internal/core"
	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/observability"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned for a client with no account.
var ErrAccountNotFound = errors.New("account not found")

// SnapshotReader gives a consistent read of the ledger. runner.Live
// implements it.
type SnapshotReader interface {
	Snapshots(ctx context.Context) ([]ledger.Snapshot, error)
	Account(ctx context.Context, client event.ClientID) (ledger.Snapshot, bool, error)
}

// CountReader exposes applied/rejected totals, optional for Status.
type CountReader interface {
	Counts() (applied, rejected int64)
}

// Service provides read-only access to account state.
// Responses are computed from one snapshot read each, so every field in a
// response describes the same ledger state.
type Service struct {
	reader  SnapshotReader
	runID   uuid.UUID
	metrics *observability.Metrics
}

func NewService(reader SnapshotReader, runID uuid.UUID, metrics *observability.Metrics) *Service {
	return &Service{
		reader:  reader,
		runID:   runID,
		metrics: metrics,
	}
}

// ListFilter narrows ListAccounts.
type ListFilter struct {
	LockedOnly bool
}

// ListAccounts returns all accounts matching filter, sorted by client.
func (s *Service) ListAccounts(ctx context.Context, filter ListFilter) (resp *AccountsResponse, err error) {
	defer s.observe("list_accounts", time.Now(), &err)

	snaps, err := s.reader.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	if filter.LockedOnly {
		locked := make([]ledger.Snapshot, 0)
		for _, sn := range snaps {
			if sn.Locked {
				locked = append(locked, sn)
			}
		}
		snaps = locked
	}
	if snaps == nil {
		snaps = []ledger.Snapshot{}
	}

	return &AccountsResponse{
		Accounts: snaps,
		Count:    len(snaps),
		Digest:   digestHex(snaps),
	}, nil
}

// GetAccount returns one client's account or ErrAccountNotFound.
func (s *Service) GetAccount(ctx context.Context, client event.ClientID) (snap *ledger.Snapshot, err error) {
	defer s.observe("get_account", time.Now(), &err)

	sn, ok, err := s.reader.Account(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("read account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: client %d", ErrAccountNotFound, client)
	}
	return &sn, nil
}

// Status reports run id, counters and the current state digest.
func (s *Service) Status(ctx context.Context) (resp *StatusResponse, err error) {
	defer s.observe("status", time.Now(), &err)

	snaps, err := s.reader.Snapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}

	resp = &StatusResponse{
		RunID:    s.runID,
		Accounts: len(snaps),
		Digest:   digestHex(snaps),
	}
	for _, sn := range snaps {
		if sn.Locked {
			resp.Locked++
		}
	}
	if c, ok := s.reader.(CountReader); ok {
		resp.Applied, resp.Rejected = c.Counts()
	}
	return resp, nil
}

func (s *Service) observe(endpoint string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case *err == nil:
	case errors.Is(*err, ErrAccountNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func digestHex(snaps []ledger.Snapshot) string {
	d := core.StateDigest(snaps)
	return hex.EncodeToString(d[:])
}
