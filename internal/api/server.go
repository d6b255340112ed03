// Package api exposes the operational HTTP interface: probes, Prometheus
// metrics, and a small operator surface for triggering watch cycles.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediawatch/headlinewatch/internal/metrics"
	"github.com/mediawatch/headlinewatch/internal/orchestrator"
	"github.com/mediawatch/headlinewatch/internal/watch"
)

// ReadinessCheck reports whether downstream dependencies are reachable.
type ReadinessCheck func(ctx context.Context) error

// Server wires the ops routes to the orchestrator and stores.
type Server struct {
	router chi.Router
	sites  watch.SiteStore
	queue  watch.Queue
	orch   *orchestrator.Orchestrator
	ready  ReadinessCheck
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil readiness
// check reports ready unconditionally.
func NewServer(sites watch.SiteStore, queue watch.Queue, orch *orchestrator.Orchestrator, ready ReadinessCheck, logger *zap.Logger) *Server {
	s := &Server{
		sites:  sites,
		queue:  queue,
		orch:   orch,
		ready:  ready,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/sites", s.listSites)
		r.Post("/cycle", s.runCycle)
		r.Post("/sites/{site_id}/crawl", s.crawlSite)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type siteResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	ListingURL        string `json:"listing_url"`
	ArticleURLPattern string `json:"article_url_pattern"`
	TitleSelector     string `json:"title_selector"`
	HasWebhook        bool   `json:"has_webhook"`
}

func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.sites.ListSites(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]siteResponse, 0, len(sites))
	for _, site := range sites {
		resp = append(resp, siteResponse{
			ID:                site.ID,
			Name:              site.Name,
			ListingURL:        site.ListingURL,
			ArticleURLPattern: site.ArticleURLPattern,
			TitleSelector:     site.TitleSelector,
			HasWebhook:        site.HasCredentials(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// runCycle schedules a full cycle. The jobs run on the worker pool; the
// request returns once everything is enqueued.
func (s *Server) runCycle(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.RunCycle(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func (s *Server) crawlSite(w http.ResponseWriter, r *http.Request) {
	siteID, err := strconv.ParseInt(chi.URLParam(r, "site_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid site id")
		return
	}
	if _, err := s.sites.GetSite(r.Context(), siteID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := s.queue.Enqueue(r.Context(), watch.LaneFast, watch.NewFrontpageCrawlJob(siteID)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}
