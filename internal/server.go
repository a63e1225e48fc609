package internal

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"surety-registry-api/internal/auth"
	"surety-registry-api/internal/config"
	"surety-registry-api/internal/handlers"
	"surety-registry-api/internal/logging"
	"surety-registry-api/pkg/importer"
)

type Server struct {
	DB         *sql.DB
	Pool       *pgxpool.Pool
	Router     *chi.Mux
	JWTManager *auth.JWTManager
	Metrics    *Metrics
	Config     *config.Config
	Logger     *zap.Logger
	Imports    *handlers.ImportsHandler
}

// NewServer wires the router. pool may be nil, in which case /dbping uses db.
func NewServer(cfg *config.Config, db *sql.DB, pool *pgxpool.Pool, logger *zap.Logger) (*Server, error) {
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("JWT configuration validation failed: %w", err)
	}

	mapping, err := importer.LoadMapping(cfg.ImportMapping)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		DB:         db,
		Pool:       pool,
		Router:     chi.NewRouter(),
		JWTManager: jwtManager,
		Metrics:    NewMetrics(),
		Config:     cfg,
		Logger:     logger,
		Imports:    handlers.NewImportsHandler(db, mapping, cfg.MaxUploadBytes),
	}
	s.Imports.Recorder = s.Metrics
	if pool != nil {
		s.Metrics.RegisterPool(pool)
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(logging.Middleware(logger))
	s.Router.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	s.Router.Get("/dbping", s.dbPing)
	s.Router.Post("/api/auth/login", s.loginUser)

	s.Router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(s.JWTManager))
		s.mountProtectedRoutes(r)
	})

	return s, nil
}

// Close releases the database handles.
func (s *Server) Close(ctx context.Context) error {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var err error
	if s.Pool != nil {
		err = s.Pool.Ping(ctx)
	} else {
		err = s.DB.PingContext(ctx)
	}
	if err != nil {
		writeMsg(w, http.StatusServiceUnavailable, "db: "+err.Error())
		return
	}
	w.Write([]byte("db: ok"))
}

// mountProtectedRoutes mounts all routes that require authentication
func (s *Server) mountProtectedRoutes(r chi.Router) {
	r.Get("/api/user/me", s.getMe)
	r.Put("/api/user/me", s.updateProfile)
	r.Put("/api/user/me/password", s.changePassword)
	r.Get("/api/stations", s.listStations)
	r.Get("/api/user/allsureties", s.listAllSureties)

	r.Group(func(r chi.Router) {
		r.Use(auth.MustRole(auth.RoleUser, auth.RoleAdmin))

		r.Route("/api/user/sureties", func(r chi.Router) {
			r.Post("/", s.createSurety)
			r.Get("/", s.listMySureties)
			r.Get("/export", s.exportMySureties)
		})

		r.Route("/api/user/hardware", func(r chi.Router) {
			r.Post("/", s.createHardware)
			r.Get("/", s.listHardware)
			r.Get("/mine", s.listMyHardware)
			r.Get("/export", s.exportHardware)
			r.Post("/import", s.Imports.ImportHardwareJSON)
			r.Post("/import/excel", s.Imports.ImportHardwareExcel)
			r.Put("/{id}", s.updateHardware)
			r.Delete("/{id}", s.deleteHardware)
			r.Delete("/{parentId}/{itemId}", s.deleteHardwareItem)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.MustRole(auth.RoleAdmin))

		r.Route("/api/admin/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/export", s.exportUsers)
			r.Post("/import", s.Imports.ImportUsersExcel)
			r.Put("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})

		r.Route("/api/admin/sureties", func(r chi.Router) {
			r.Get("/", s.listAllSureties)
			r.Post("/", s.createSurety)
			r.Get("/export", s.exportAllSureties)
			r.Post("/import", s.Imports.ImportSuretiesExcel)
			r.Put("/{id}", s.updateSurety)
			r.Delete("/{id}", s.deleteSurety)
		})
	})
}
