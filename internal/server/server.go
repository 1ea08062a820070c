package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"PayLedger/internal/event"
	"PayLedger/internal/ingestion"
	"PayLedger/internal/observability"
	"PayLedger/internal/query"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	shutdownTimeout = 5 * time.Second
	maxInjectBody   = 64 << 10
)

// Server runs the gRPC listener (health + reflection), the HTTP/JSON query
// gateway and the metrics endpoint.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	httpHandler  http.Handler
	metricsMux   *http.ServeMux

	grpcAddr    string
	httpAddr    string
	metricsAddr string

	health *observability.HealthChecker
	logger zerolog.Logger
}

// Deps holds everything the routes need. Injector and Gatherer are optional.
type Deps struct {
	Query    *query.Service
	Injector *ingestion.Injector
	Health   *observability.HealthChecker
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Addrs are the listen addresses. An empty address disables that listener.
type Addrs struct {
	GRPC    string
	HTTP    string
	Metrics string
}

func New(addrs Addrs, deps Deps) (*Server, error) {
	if deps.Query == nil {
		return nil, errors.New("server: query service is required")
	}
	if deps.Health == nil {
		deps.Health = observability.NewHealthChecker()
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	reflection.Register(grpcServer)

	s := &Server{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		grpcAddr:     addrs.GRPC,
		httpAddr:     addrs.HTTP,
		metricsAddr:  addrs.Metrics,
		health:       deps.Health,
		logger:       deps.Logger,
	}

	handler, err := newGateway(deps)
	if err != nil {
		return nil, err
	}
	s.httpHandler = handler

	s.metricsMux = http.NewServeMux()
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.metricsMux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return s, nil
}

// Handler returns the HTTP/JSON gateway, including /healthz and /readyz.
func (s *Server) Handler() http.Handler {
	return s.httpHandler
}

// MetricsHandler returns the /metrics mux.
func (s *Server) MetricsHandler() http.Handler {
	return s.metricsMux
}

// SetServing flips readiness on both the HTTP readiness route and the gRPC health
// service.
func (s *Server) SetServing(serving bool) {
	s.health.SetReady(serving)
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
}

// Run serves every configured listener until ctx is cancelled, then shuts
// them down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.grpcAddr != "" {
		g.Go(func() error { return s.runGRPC(ctx) })
	}
	if s.httpAddr != "" {
		g.Go(func() error { return s.runHTTP(ctx, "http", s.httpAddr, s.httpHandler) })
	}
	if s.metricsAddr != "" {
		g.Go(func() error { return s.runHTTP(ctx, "metrics", s.metricsAddr, s.metricsMux) })
	}
	return g.Wait()
}

func (s *Server) runGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func (s *Server) runHTTP(ctx context.Context, name, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info().Str("listener", name).Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("listener", name).Str("addr", addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s serve: %w", name, err)
	}
	return nil
}

// ============================================================================
// HTTP/JSON routes
// ============================================================================

type gateway struct {
	query    *query.Service
	injector *ingestion.Injector
	logger   zerolog.Logger
}

func newGateway(deps Deps) (http.Handler, error) {
	gw := &gateway{
		query:    deps.Query,
		injector: deps.Injector,
		logger:   deps.Logger,
	}

	mux := runtime.NewServeMux()
	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodGet, "/v1/accounts", gw.listAccounts},
		{http.MethodGet, "/v1/accounts/{client}", gw.getAccount},
		{http.MethodGet, "/v1/status", gw.status},
	}
	if gw.injector != nil {
		routes = append(routes, struct {
			method, path string
			h            runtime.HandlerFunc
		}{http.MethodPost, "/v1/transactions", gw.injectTransaction})
	}
	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.path, r.h); err != nil {
			return nil, fmt.Errorf("register %s %s: %w", r.method, r.path, err)
		}
	}

	httpMux := http.NewServeMux()
	httpMux.HandleFunc("/healthz", deps.Health.LivenessHandler)
	httpMux.HandleFunc("/readyz", deps.Health.ReadinessHandler)
	httpMux.Handle("/", mux)
	return httpMux, nil
}

func (gw *gateway) listAccounts(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	filter := query.ListFilter{}
	if v := r.URL.Query().Get("locked"); v != "" {
		locked, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid locked filter: "+v)
			return
		}
		filter.LockedOnly = locked
	}

	resp, err := gw.query.ListAccounts(r.Context(), filter)
	if err != nil {
		gw.internalError(w, "list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (gw *gateway) getAccount(w http.ResponseWriter, r *http.Request, params map[string]string) {
	raw := params["client"]
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid client id: "+raw)
		return
	}

	snap, err := gw.query.GetAccount(r.Context(), event.ClientID(client))
	if errors.Is(err, query.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		gw.internalError(w, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (gw *gateway) status(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	resp, err := gw.query.Status(r.Context())
	if err != nil {
		gw.internalError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (gw *gateway) injectTransaction(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInjectBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	tx, err := gw.injector.Inject(r.Context(), body)
	if err != nil {
		if r.Context().Err() != nil {
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gw.logger.Info().
		Str("type", tx.Kind().String()).
		Uint16("client", uint16(tx.Client())).
		Uint32("tx", uint32(tx.TxID())).
		Msg("transaction injected")

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
		"type":     tx.Kind().String(),
		"client":   tx.Client(),
		"tx":       tx.TxID(),
	})
}

func (gw *gateway) internalError(w http.ResponseWriter, op string, err error) {
	gw.logger.Error().Err(err).Str("op", op).Msg("query failed")
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
