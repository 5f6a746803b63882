// Package httpapi exposes the vault over HTTP/JSON: registration and login,
// folder and entry CRUD, file upload/download and Prometheus metrics.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dsmirnov/vaultkeeper/internal/logging"
	"github.com/dsmirnov/vaultkeeper/internal/server/config"
	"github.com/dsmirnov/vaultkeeper/internal/server/models"
	"github.com/dsmirnov/vaultkeeper/internal/server/repositories/entries"
	"github.com/dsmirnov/vaultkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// TokenVerifier resolves an access token to a user id.
type TokenVerifier interface {
	VerifyAccessToken(accessToken string) (string, error)
}

// UserDirectory is the interface the server needs from the user service.
type UserDirectory interface {
	TokenVerifier
	Register(ctx context.Context, email string, password string) (*models.User, error)
	Login(ctx context.Context, email string, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	CurrentUser(ctx context.Context, accessToken string) (*models.User, error)
}

// Vault is the interface the server needs from the vault service.
type Vault interface {
	CreateFolder(ctx context.Context, userID string, folderName string) (*models.Folder, error)
	ListFolders(ctx context.Context, userID string) ([]*models.Folder, error)
	DeleteFolder(ctx context.Context, userID string, folderID string) error

	ListEntries(ctx context.Context, userID string, folderID *string) ([]*models.VaultEntry, error)
	GetEntry(ctx context.Context, userID string, id string) (*models.VaultEntry, error)
	CreateNote(ctx context.Context, userID string, params services.NoteParams) (*models.VaultEntry, error)
	UpdateEntry(ctx context.Context, userID string, id string, upd entries.Update) (*models.VaultEntry, error)
	DeleteEntry(ctx context.Context, userID string, id string) error

	UploadFile(ctx context.Context, userID string, up services.FileUpload) (*models.VaultEntry, error)
	DeleteFile(ctx context.Context, userID string, storagePath string, entryID string) error
	FileURL(ctx context.Context, userID string, storagePath string) (string, error)
}

// Server is the HTTP API server.
type Server struct {
	users   UserDirectory
	vault   Vault
	logger  logging.Logger
	cfg     *config.Config
	httpSrv *http.Server
}

// NewServer creates a Server over the given services.
func NewServer(users UserDirectory, vault Vault, logger logging.Logger, cfg *config.Config) *Server {
	return &Server{
		users:  users,
		vault:  vault,
		logger: logger,
		cfg:    cfg,
	}
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	r.Use(s.loggingMiddleware)

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/v1/sys/health", s.HealthHandler)
		r.Post("/v1/auth/register", s.RegisterHandler)
		r.Post("/v1/auth/login", s.LoginHandler)
		r.Post("/v1/auth/refresh", s.RefreshHandler)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.users))

		r.Get("/v1/auth/me", s.MeHandler)

		r.Get("/v1/folders", s.FolderListHandler)
		r.Post("/v1/folders", s.FolderCreateHandler)
		r.Delete("/v1/folders/{id}", s.FolderDeleteHandler)

		r.Get("/v1/entries", s.EntryListHandler)
		r.Post("/v1/entries", s.EntryCreateHandler)
		r.Get("/v1/entries/{id}", s.EntryGetHandler)
		r.Patch("/v1/entries/{id}", s.EntryUpdateHandler)
		r.Delete("/v1/entries/{id}", s.EntryDeleteHandler)

		r.Post("/v1/files", s.FileUploadHandler)
		r.Delete("/v1/files/{id}", s.FileDeleteHandler)
		r.Get("/v1/files/{id}/url", s.FileURLHandler)
	})

	return r
}

// Start begins listening on the configured address and blocks until the
// server stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.EndpointAddr,
		Handler:      s.BuildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info(context.Background(), "starting HTTP server", "addr", s.cfg.EndpointAddr)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
