package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PayLedger/internal/event"
	"PayLedger/internal/ingestion"
	"PayLedger/internal/ledger"
	"PayLedger/internal/money"
	"PayLedger/internal/observability"
	"PayLedger/internal/query"
	"PayLedger/internal/server"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type storeReader struct {
	store *ledger.Store
}

func (r storeReader) Snapshots(context.Context) ([]ledger.Snapshot, error) {
	return r.store.Snapshots(), nil
}

func (r storeReader) Account(_ context.Context, client event.ClientID) (ledger.Snapshot, bool, error) {
	acc, ok := r.store.ExistingAccount(client)
	if !ok {
		return ledger.Snapshot{}, false, nil
	}
	return acc.Snapshot(client), true, nil
}

type fixture struct {
	srv     *server.Server
	health  *observability.HealthChecker
	input   chan event.Transaction
	reg     *prometheus.Registry
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := ledger.NewStore()
	a := store.AccountFor(1)
	a.Available = money.MustParse("1.5")
	b := store.AccountFor(7)
	b.Available = money.MustParse("-2")
	b.Held = money.MustParse("0.25")
	b.Locked = true

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	input := make(chan event.Transaction, 4)
	health := observability.NewHealthChecker()

	srv, err := server.New(server.Addrs{}, server.Deps{
		Query:    query.NewService(storeReader{store}, uuid.New(), metrics),
		Injector: ingestion.NewInjector(input),
		Health:   health,
		Gatherer: reg,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	return &fixture{srv: srv, health: health, input: input, reg: reg, metrics: metrics}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Query routes
// ============================================================================

func TestListAccounts(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Accounts []map[string]interface{} `json:"accounts"`
		Count    int                      `json:"count"`
		Digest   string                   `json:"digest"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Len(t, resp.Digest, 64)

	first := resp.Accounts[0]
	require.EqualValues(t, 1, first["client"])
	require.Equal(t, "1.5000", first["available"])
	require.Equal(t, "0.0000", first["held"])
	require.Equal(t, "1.5000", first["total"])
	require.Equal(t, false, first["locked"])
}

func TestListAccounts_LockedFilter(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts?locked=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"client":7`)
	require.NotContains(t, rec.Body.String(), `"client":1,`)

	rec = do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts?locked=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t,
		`{"client":7,"available":"-2.0000","held":"0.2500","total":"-1.7500","locked":true}`,
		rec.Body.String())
}

func TestGetAccount_Errors(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts/2", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts/70000", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusRoute(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"accounts":2`)
	require.Contains(t, rec.Body.String(), `"locked":1`)
}

// ============================================================================
// Injection
// ============================================================================

func TestInjectTransaction(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodPost, "/v1/transactions",
		`{"type":"deposit","client":3,"tx":11,"amount":"2.5"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, f.input, 1)
	tx := <-f.input
	require.Equal(t, event.KindDeposit, tx.Kind())
	require.Equal(t, event.ClientID(3), tx.Client())
	require.Equal(t, event.TransactionID(11), tx.TxID())
}

func TestInjectTransaction_Malformed(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodPost, "/v1/transactions", `{"type":"refund","client":3,"tx":11}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.input)
}

// ============================================================================
// Health and metrics
// ============================================================================

func TestReadiness(t *testing.T) {
	f := newFixture(t)

	rec := do(t, f.srv.Handler(), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f.srv.SetServing(true)
	rec = do(t, f.srv.Handler(), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, f.srv.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	// Generate a query observation so the vector has a series
	do(t, f.srv.Handler(), http.MethodGet, "/v1/accounts/1", "")

	rec := do(t, f.srv.MetricsHandler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `payledger_query_requests_total{endpoint="get_account",status="ok"} 1`)
}

func TestNew_RequiresQuery(t *testing.T) {
	_, err := server.New(server.Addrs{}, server.Deps{})
	require.Error(t, err)
}
