// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the resolver over HTTP for a planning component that
// drives resolution from outside the process. Requests and responses are
// JSON; citation output may also be BibTeX.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pdiddy/paperfinder/internal/resolver"
	"github.com/pdiddy/paperfinder/pkg/types"
)

// DefaultRequestLimit bounds a request when the config leaves it unset.
const DefaultRequestLimit = 60 * time.Second

// Service is the pipeline the API serves. *resolver.Resolver implements it.
type Service interface {
	Resolve(ctx context.Context, text string) (resolver.Result, error)
	Refine(ctx context.Context, p types.Paper) (types.Paper, []types.Event)
	RefineAll(ctx context.Context, papers []types.Paper) ([]types.Paper, []types.Event)
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc Service, cfg types.ServerConfig, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.RequestLimit
	if limit <= 0 {
		limit = DefaultRequestLimit
	}
	h := &handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(limit))

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", h.resolve)
		r.Post("/refine", h.refine)
		r.Post("/cite", h.cite)
	})
	return r
}

// statusWriter captures the response status for logging.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Int64("bytes", sw.written),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
