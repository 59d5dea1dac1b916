// Package server exposes the e-filing orchestration pipeline over HTTP:
// the streaming bot-run endpoint, the handoff preparation endpoint, and
// the usual health/version/metrics surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Botopia-SAS/ezmig-efiling/internal/config"
	apperrors "github.com/Botopia-SAS/ezmig-efiling/internal/errors"
	"github.com/Botopia-SAS/ezmig-efiling/internal/observability"
	"github.com/Botopia-SAS/ezmig-efiling/internal/runreg"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/bot"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/handoff"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/reconcile"
)

// Deps are the collaborators the server wires together. All fields are
// required except Metrics and Logger, which default to fresh/no-op
// instances.
type Deps struct {
	Config *config.Config

	// NewDriver builds one portal driver per run.
	NewDriver func() bot.Driver

	// Minter issues handoff credentials. May be nil when no signing
	// secret is configured; the handoff endpoint then responds 503.
	Minter *handoff.Minter

	// CaseForms resolves baseline snapshots; Autosaves lists field
	// edits. Both belong to the case-management collaborator.
	CaseForms filing.CaseFormSource
	Autosaves reconcile.Source

	Registry *runreg.Registry
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Server is the HTTP surface of the e-filing service.
type Server struct {
	host    string
	port    int
	deps    Deps
	version string

	runSlots *semaphore.Weighted
	router   chi.Router
	httpSrv  *http.Server
}

// New assembles the server and its routes.
func New(host string, port int, deps Deps, version string) *Server {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = runreg.New()
	}

	s := &Server{
		host:     host,
		port:     port,
		deps:     deps,
		version:  version,
		runSlots: semaphore.NewWeighted(deps.Config.MaxConcurrentRuns),
	}
	s.router = s.buildRouter()
	return s
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.Write(w, http.StatusNotFound, apperrors.CodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apperrors.Write(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/v1/filings", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Post("/handoff", s.handleHandoff)
		r.Get("/runs", s.handleListRuns)
	})

	return r
}

// requestLogger logs one structured line per request. The streaming run
// endpoint is logged at start, not completion, since it holds the
// response open for the whole job.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.deps.Logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)))
	})
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully. In-flight bot runs are not bounded by the HTTP lifecycle,
// but open streams are given shutdownGrace to drain.
func (s *Server) ListenAndServe(ctx context.Context) error {
	const shutdownGrace = 10 * time.Second

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}
