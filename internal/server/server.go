// Package server assembles the portal: database, queue, mailer, worker
// and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/secsim/phishportal/internal/audit"
	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/handlers"
	"github.com/secsim/phishportal/internal/importer"
	"github.com/secsim/phishportal/internal/mailer"
	"github.com/secsim/phishportal/internal/metrics"
	"github.com/secsim/phishportal/internal/middleware"
	"github.com/secsim/phishportal/internal/models"
	"github.com/secsim/phishportal/internal/queue"
	"github.com/secsim/phishportal/internal/repository"
	"github.com/secsim/phishportal/internal/upload"
	"github.com/secsim/phishportal/internal/worker"
)

// Server is the assembled portal
type Server struct {
	cfg    config.Config
	logger *slog.Logger

	db     *db.DB
	queue  *queue.Storage
	worker *worker.Worker
	http   *http.Server
}

// New opens the database and queue, runs migrations and wires every
// component together.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	q, err := queue.Open(cfg.Queue.Path)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}

	m, err := mailer.New(cfg.Mailer, logger)
	if err != nil {
		q.Close()
		database.Close()
		return nil, err
	}

	repos := handlers.Repos{
		Users:      repository.NewUserRepository(database.DB),
		Templates:  repository.NewTemplateRepository(database.DB),
		Campaigns:  repository.NewCampaignRepository(database.DB),
		Recipients: repository.NewRecipientRepository(database.DB),
		Events:     repository.NewEventRepository(database.DB),
		Emails:     repository.NewEmailRepository(database.DB),
		Notes:      repository.NewNoteRepository(database.DB),
		Audit:      repository.NewAuditRepository(database.DB),
	}

	auditor := audit.New(repos.Audit, logger)
	mx := metrics.New()

	imp := importer.New(database.DB, repos.Recipients, auditor.Record, importer.Config{
		MaxRecipients:    cfg.Import.MaxRecipients,
		AnomalyThreshold: cfg.Import.AnomalyThreshold,
	}, logger)

	gk := upload.NewGatekeeper(cfg.Import.MaxFileSize)

	wrk := worker.New(cfg, worker.Repos{
		Campaigns:  repos.Campaigns,
		Templates:  repos.Templates,
		Recipients: repos.Recipients,
		Emails:     repos.Emails,
	}, q, m, mx, logger)

	h := handlers.New(cfg, repos, imp, gk, auditor, wrk, mx, logger)

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		db:     database,
		queue:  q,
		worker: wrk,
	}
	srv.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      srv.router(h, repos.Users, auditor, mx),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv, nil
}

func (s *Server) router(h *handlers.Handler, users *repository.UserRepository, auditor *audit.Logger, mx *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(mx))

	// unauthenticated surface
	r.Get("/health", h.Health)
	r.Handle("/metrics", mx.Handler())
	r.Post("/api/login", h.Login)

	// tracking endpoints are hit from recipient mailboxes, no session
	r.Route("/t/{trackingID}", func(r chi.Router) {
		r.Get("/open.gif", h.TrackOpen)
		r.Get("/click", h.TrackClick)
		r.Post("/report", h.TrackReport)
		r.Get("/report", h.TrackReport)
	})

	staff := middleware.RequireRole(auditor, models.RoleAdmin, models.RoleInstructor)
	admin := middleware.RequireRole(auditor, models.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(users))
		r.Use(middleware.RequireAuth)

		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Get("/dashboard", h.Dashboard)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Get("/{id}", h.GetTemplate)
			r.With(staff).Post("/", h.CreateTemplate)
			r.With(staff).Put("/{id}", h.UpdateTemplate)
			r.With(staff).Delete("/{id}", h.DeleteTemplate)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Get("/{id}", h.GetCampaign)
			r.With(staff).Post("/", h.CreateCampaign)
			r.With(staff).Put("/{id}", h.UpdateCampaign)
			r.With(staff).Post("/{id}/send", h.SendCampaign)
			r.With(staff).Post("/{id}/cancel", h.CancelCampaign)
			r.With(admin).Delete("/{id}", h.DeleteCampaign)

			r.Get("/{id}/recipients", h.ListRecipients)
			r.Get("/{id}/recipients/export", h.ExportRecipients)
			r.With(staff).Post("/{id}/recipients/import", h.ImportRecipients)
			r.With(staff).Delete("/{id}/recipients/{recipientID}", h.RemoveRecipient)
		})

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", h.Inbox)
			r.Get("/{id}", h.InboxMessage)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Put("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})

		r.With(admin).Get("/audit", h.AuditLog)
	})

	return r
}

// Run starts the worker and HTTP server and blocks until ctx is
// cancelled, then shuts both down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.worker.Start()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Server.ListenAddr)
		var err error
		if s.cfg.Server.TLS.Enabled {
			err = s.http.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown failed", "error", err)
	}

	s.shutdown()
	return nil
}

func (s *Server) shutdown() {
	s.worker.Stop()
	if err := s.queue.Close(); err != nil {
		s.logger.Error("failed to close queue", "error", err)
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database", "error", err)
	}
}
