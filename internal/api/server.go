// Package api wires the HTTP presentation boundary: job commands,
// progress observation, settings, and daemon status.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tiMaxal/pairs3d/internal/api/handlers"
	"github.com/tiMaxal/pairs3d/internal/config"
	"github.com/tiMaxal/pairs3d/internal/job"
	"github.com/tiMaxal/pairs3d/internal/scheduler"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr string
	srv  *http.Server
}

// New wires all routes and returns a Server ready to Run.
func New(
	addr string,
	db *sql.DB,
	cfg *config.Config,
	mgr *job.Manager,
	sched *scheduler.Scheduler,
	version string,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{DB: db, Manager: mgr, Sched: sched, Version: version}
	jobsH := &handlers.JobsHandler{DB: db, Manager: mgr, Cfg: cfg}
	settingsH := &handlers.SettingsHandler{DB: db, Cfg: cfg}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/jobs", jobsH.Create)
		r.Get("/jobs", jobsH.List)
		r.Get("/jobs/current", jobsH.Current)
		r.Post("/jobs/current/pause", jobsH.Pause)
		r.Post("/jobs/current/resume", jobsH.Resume)
		r.Delete("/jobs/current", jobsH.Cancel)
		r.Get("/jobs/{id}", jobsH.Get)

		r.Get("/settings", settingsH.Get)
		r.Patch("/settings", settingsH.Update)
	})

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: r},
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
