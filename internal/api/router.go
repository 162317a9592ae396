package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/zaloga/internal/backend/local"
)

// Config holds the router's dependencies.
type Config struct {
	DB             *sql.DB
	Service        *local.Service
	Sessions       *Sessions
	JWTSecret      string
	TokenTTL       time.Duration
	MaxUploadBytes int64
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(cfg Config) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{
		DB:        cfg.DB,
		Sessions:  cfg.Sessions,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenTTL,
	}
	eventsHandler := &EventsHandler{
		Sessions:       cfg.Sessions,
		Auth:           authHandler,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	viewHandler := &ViewHandler{Sessions: cfg.Sessions}
	blobsHandler := &BlobsHandler{Service: cfg.Service}

	authMW := AuthMiddleware(cfg.JWTSecret, cfg.DB)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	mux.Handle("GET /api/view", authMW(http.HandlerFunc(viewHandler.Get)))
	mux.Handle("GET /api/stream", authMW(http.HandlerFunc(viewHandler.Stream)))
	mux.Handle("POST /api/events/{name}", authMW(http.HandlerFunc(eventsHandler.Dispatch)))

	mux.Handle("GET /blobs/{key...}", authMW(http.HandlerFunc(blobsHandler.Get)))

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return mux
}
