// Package server exposes a registry over HTTP: store status, execute and
// reload by name, the invalidation graph, journaled flows, Prometheus
// metrics and the websocket feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/fintrack/internal/bus"
	"github.com/roach88/fintrack/internal/catalog"
	"github.com/roach88/fintrack/internal/feed"
	"github.com/roach88/fintrack/internal/ir"
	"github.com/roach88/fintrack/internal/journal"
	"github.com/roach88/fintrack/internal/ledger"
	"github.com/roach88/fintrack/internal/state"
)

// FlowHeader lets a caller group its executes under one flow token.
const FlowHeader = "X-Flow-Token"

const (
	// DefaultShutdownTimeout bounds graceful shutdown in Serve.
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultFlowLimit is the /flows page size.
	DefaultFlowLimit = 20
)

// Server serves a registry.
type Server struct {
	registry *ledger.Registry
	journal  *journal.Journal
	gatherer prometheus.Gatherer
	feed     *feed.Server
	logger   *slog.Logger
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithJournal enables the /flows routes.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// WithGatherer enables /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithFeed enables /feed.
func WithFeed(f *feed.Server) Option {
	return func(s *Server) {
		s.feed = f
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New builds the router.
func New(reg *ledger.Registry, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/stores", func(r chi.Router) {
		r.Get("/", s.listStores)
		r.Get("/{name}", s.getStore)
		r.Post("/{name}/execute", s.execute)
		r.Post("/{name}/reload", s.reload)
	})
	r.Get("/graph", s.graph)

	if s.journal != nil {
		r.Get("/flows", s.listFlows)
		r.Get("/flows/{token}", s.getFlow)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.feed != nil {
		r.Handle("/feed", s.feed)
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if s.feed != nil {
		s.feed.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.registry.Wait()
	s.logger.Info("server stopped")
	return <-errCh
}

func (s *Server) listStores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

func (s *Server) getStore(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Status())
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, state.Handle.Execute)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	s.run(w, r, state.Handle.Reload)
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, op func(state.Handle, context.Context, state.Params) state.Status) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var params state.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
		return
	}

	ctx := r.Context()
	if flow := r.Header.Get(FlowHeader); flow != "" {
		ctx = bus.WithFlow(ctx, flow)
	}
	writeJSON(w, http.StatusOK, op(h, ctx, params))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (state.Handle, bool) {
	h, err := s.registry.Lookup(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownEndpoint) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return h, true
}

type graphResponse struct {
	Edges  []ir.Edge          `json:"edges"`
	Cycles []bus.CycleWarning `json:"cycles"`
}

func (s *Server) graph(w http.ResponseWriter, _ *http.Request) {
	edges := s.registry.Graph()
	if edges == nil {
		edges = []ir.Edge{}
	}
	writeJSON(w, http.StatusOK, graphResponse{
		Edges:  edges,
		Cycles: bus.AnalyzeCycles(edges),
	})
}

func (s *Server) listFlows(w http.ResponseWriter, r *http.Request) {
	limit := DefaultFlowLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	flows, err := s.journal.Flows(r.Context(), limit)
	if err != nil {
		s.logger.Error("list flows failed", "error", err)
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	writeJSON(w, http.StatusOK, flows)
}

func (s *Server) getFlow(w http.ResponseWriter, r *http.Request) {
	trace, err := s.journal.ReadFlow(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.logger.Error("read flow failed", "error", err)
		writeError(w, http.StatusInternalServerError, "journal unavailable")
		return
	}
	if len(trace.Executions) == 0 {
		writeError(w, http.StatusNotFound, "unknown flow")
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
