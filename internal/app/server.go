package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/jobmatch/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/jobmatch/internal/api/middlewares"
	"github.com/markdave123-py/jobmatch/internal/logger"
	"github.com/markdave123-py/jobmatch/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(ctx context.Context, a *App) *Server {
	cfg := a.Config
	auth := appMiddleware.NewAuth(cfg.Server.JWTSecret, 24*time.Hour)

	authHandler := handlers.NewAuthHandler(services.NewUserService(a.DBClient), auth)
	resumeHandler := handlers.NewResumeHandler(
		services.NewResumeService(a.DBClient, a.ObjectClient, a.Orchestrator, cfg.AWS.MaxUploadBytes))
	matchHandler := handlers.NewMatchHandler(a.Matcher)
	adminHandler := handlers.NewAdminHandler(a.Orchestrator)
	if cfg.Server.AdminToken == "" {
		logger.FromContext(ctx).Warn("ADMIN_TOKEN not set, admin routes are disabled")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(appMiddleware.RequestLogger(logger.FromContext(ctx)))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appMiddleware.AdminTokenHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(auth.JWTMiddleware)

			protected.Post("/resumes/upload-url", resumeHandler.CreateUploadURL)
			protected.Get("/resumes", resumeHandler.List)
			protected.Get("/resumes/{id}", resumeHandler.Get)
			protected.Patch("/resumes/{id}/status", resumeHandler.UpdateStatus)
			protected.Get("/resumes/{id}/download-url", resumeHandler.DownloadURL)
			protected.Delete("/resumes/{id}", resumeHandler.Delete)

			protected.Get("/matches", matchHandler.Latest)
			protected.Post("/matches/{id}/viewed", matchHandler.MarkViewed)

			protected.Group(func(admin chi.Router) {
				admin.Use(appMiddleware.AdminToken(cfg.Server.AdminToken))
				admin.Post("/admin/daily", adminHandler.RunDaily)
				admin.Post("/admin/ingest", adminHandler.RunIngest)
			})
		})
	})

	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	logger.FromContext(ctx).WithField("addr", s.httpServer.Addr).Info("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.FromContext(ctx).Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
