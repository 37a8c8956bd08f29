// Package server exposes the published snapshot over HTTP for the
// dashboard frontend.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
	"github.com/biscayne-labs/resilience-cli/internal/store"
)

// Options configures the API server.
type Options struct {
	Port           int
	AllowedOrigins []string
	SnapshotKeep   int
}

// Server serves snapshot layers, statistics, and styles. It never blocks
// reads on a refresh: handlers read whatever snapshot is current.
type Server struct {
	engine  *pipeline.Engine
	store   store.Store // may be nil when persistence is disabled
	metrics *Metrics
	opts    Options
	router  chi.Router

	refreshing atomic.Bool
}

// New builds a Server around an engine and an optional store.
func New(engine *pipeline.Engine, st store.Store, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	s := &Server{
		engine:  engine,
		store:   st,
		metrics: NewMetrics(),
		opts:    opts,
	}
	s.setupRouter()
	return s
}

// Router returns the HTTP handler, for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.corsHandler())
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/snapshots", s.handleSnapshots)

	r.Route("/layers", func(r chi.Router) {
		r.Get("/", s.handleLayers)
		r.Get("/{layer}/features", s.handleFeatures)
		r.Get("/{layer}/stats", s.handleStats)
		r.Get("/{layer}/style", s.handleStyle)
	})

	s.router = r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	origins := s.opts.AllowedOrigins
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.Handler(opts)
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", s.opts.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server: shutdown")
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Current()
	resp := map[string]any{"status": "ok"}
	if snap != nil {
		resp["generation"] = snap.Generation
		resp["run_id"] = snap.RunID
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type layerInfo struct {
	Name         string `json:"name"`
	Source       string `json:"source"`
	FeatureCount int    `json:"feature_count"`
}

func (s *Server) handleLayers(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Current()

	var infos []layerInfo
	for name, cfg := range s.engine.Layers() {
		info := layerInfo{Name: name, Source: cfg.Source}
		if snap != nil {
			if lr := snap.Layers[name]; lr != nil && lr.Stats != nil {
				info.FeatureCount = lr.Stats.Total
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	s.writeJSON(w, http.StatusOK, infos)
}

// layerResult resolves the named layer in the current snapshot, writing the
// error response itself when unavailable.
func (s *Server) layerResult(w http.ResponseWriter, r *http.Request) *pipeline.LayerResult {
	name := chi.URLParam(r, "layer")
	if _, ok := s.engine.Layers()[name]; !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown layer %q", name))
		return nil
	}

	snap := s.engine.Current()
	if snap == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return nil
	}
	lr := snap.Layers[name]
	if lr == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return nil
	}
	return lr
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lr := s.layerResult(w, r)
	if lr == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, lr.Collection)
	s.metrics.ObserveRequest("features", time.Since(start))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lr := s.layerResult(w, r)
	if lr == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, lr.Stats)
	s.metrics.ObserveRequest("stats", time.Since(start))
}

func (s *Server) handleStyle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	lr := s.layerResult(w, r)
	if lr == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, lr.Style)
	s.metrics.ObserveRequest("style", time.Since(start))
}

// handleRefresh starts an asynchronous refresh. A second refresh request
// while one is in flight gets 409; the generation counter would discard the
// loser anyway, so there is no point fetching twice.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.writeError(w, http.StatusConflict, "refresh already in progress")
		return
	}

	go func() {
		defer s.refreshing.Store(false)
		s.runRefresh(context.Background())
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh started"})
}

// RefreshNow runs one refresh synchronously, honoring the in-flight guard.
func (s *Server) RefreshNow(ctx context.Context) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer s.refreshing.Store(false)
	s.runRefresh(ctx)
}

// runRefresh executes one refresh, persists the snapshot, and records metrics.
func (s *Server) runRefresh(ctx context.Context) {
	start := time.Now()
	s.metrics.RefreshTotal.Inc()

	snap, err := s.engine.Refresh(ctx)
	s.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.RefreshFailures.Inc()
		zap.L().Error("server: refresh failed", zap.Error(err))
		return
	}
	s.metrics.ObserveSnapshot(snap)

	if s.store == nil {
		return
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		zap.L().Error("server: persist snapshot", zap.Error(err))
		return
	}
	if keep := s.opts.SnapshotKeep; keep > 0 {
		if _, err := s.store.PruneSnapshots(ctx, keep); err != nil {
			zap.L().Warn("server: prune snapshots", zap.Error(err))
		}
	}
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "snapshot persistence disabled")
		return
	}
	metas, err := s.store.ListSnapshots(r.Context(), 50)
	if err != nil {
		zap.L().Error("server: list snapshots", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "list snapshots failed")
		return
	}
	if metas == nil {
		metas = []store.SnapshotMeta{}
	}
	s.writeJSON(w, http.StatusOK, metas)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
