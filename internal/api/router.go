package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/sydlexius/artbrowser/internal/api/middleware"
	"github.com/sydlexius/artbrowser/internal/auth"
	"github.com/sydlexius/artbrowser/internal/browser"
	"github.com/sydlexius/artbrowser/internal/connection"
	"github.com/sydlexius/artbrowser/internal/logging"
)

// PreviewClientResolver returns a client able to authorize preview fetches
// against a media server.
type PreviewClientResolver interface {
	ClientFor(ctx context.Context, serverID string) (connection.MediaClient, error)
}

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	AuthService       *auth.Service
	OIDC              *auth.OIDCProvider
	AuthDisabled      bool
	ConnectionService *connection.Service
	Clients           PreviewClientResolver
	Browser           *browser.Manager
	Busy              *browser.BusyCounter
	Translator        browser.Translator
	LogManager        *logging.Manager
	DB                *sql.DB
	Logger            *slog.Logger
	BasePath          string
	StaticDir         string
	DefaultLayout     string
	PreviewMaxWidth   int
	PreviewMaxHeight  int
	HTTPClient        *http.Client
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authService       *auth.Service
	oidc              *auth.OIDCProvider
	authDisabled      bool
	connectionService *connection.Service
	clients           PreviewClientResolver
	browser           *browser.Manager
	busy              *browser.BusyCounter
	translator        browser.Translator
	logManager        *logging.Manager
	db                *sql.DB
	logger            *slog.Logger
	basePath          string
	staticAssets      *StaticAssets
	csrf              *middleware.CSRF
	defaultLayout     string
	previewMaxWidth   int
	previewMaxHeight  int
	httpClient        *http.Client
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: previewTimeout}
	}
	return &Router{
		authService:       deps.AuthService,
		oidc:              deps.OIDC,
		authDisabled:      deps.AuthDisabled,
		connectionService: deps.ConnectionService,
		clients:           deps.Clients,
		browser:           deps.Browser,
		busy:              deps.Busy,
		translator:        deps.Translator,
		logManager:        deps.LogManager,
		db:                deps.DB,
		logger:            deps.Logger,
		basePath:          deps.BasePath,
		staticAssets:      NewStaticAssets(deps.StaticDir, deps.BasePath, deps.Logger),
		csrf:              middleware.NewCSRF(),
		defaultLayout:     deps.DefaultLayout,
		previewMaxWidth:   deps.PreviewMaxWidth,
		previewMaxHeight:  deps.PreviewMaxHeight,
		httpClient:        httpClient,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
// ctx bounds background work such as the login limiter sweep.
func (r *Router) Handler(ctx context.Context) http.Handler {
	authMw := middleware.Auth(r.authService)
	optionalAuth := middleware.OptionalAuth(r.authService)
	if r.authDisabled {
		authMw = middleware.NoAuth
		optionalAuth = middleware.NoAuth
	}
	loginLimiter := middleware.NewLoginRateLimiter(ctx)
	// A dialog page loads at most a few dozen previews at once.
	previewLimiter := middleware.NewIPRateLimiter(ctx, 50*time.Millisecond, 60)
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes (no auth)
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.Handle("POST "+bp+"/api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(r.handleLogin)))
	mux.Handle("POST "+bp+"/api/v1/auth/setup", loginLimiter.Middleware(http.HandlerFunc(r.handleSetup)))
	mux.Handle("GET "+bp+"/auth/oidc/login", loginLimiter.Middleware(http.HandlerFunc(r.handleOIDCLogin)))
	mux.HandleFunc("GET "+bp+"/auth/oidc/callback", r.handleOIDCCallback)
	mux.Handle("GET "+bp+"/static/", r.staticAssets.Handler())
	mux.Handle("GET "+bp+"/{$}", optionalAuth(http.HandlerFunc(r.handleIndex)))

	// Protected routes (auth required)
	mux.HandleFunc("POST "+bp+"/api/v1/auth/logout", wrapAuth(r.handleLogout, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/auth/me", wrapAuth(r.handleMe, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/status", wrapAuth(r.handleStatus, authMw))

	// Browse session routes
	mux.HandleFunc("POST "+bp+"/api/v1/browse", wrapAuth(r.handleBrowseOpen, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/browse/{id}", wrapAuth(r.handleBrowseGet, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/browse/{id}/filters", wrapAuth(r.handleBrowseFilters, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/browse/{id}/page/{dir}", wrapAuth(r.handleBrowsePage, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/browse/{id}/retry", wrapAuth(r.handleBrowseRetry, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/browse/{id}/download", wrapAuth(r.handleBrowseDownload, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/browse/{id}/close", wrapAuth(r.handleBrowseClose, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/browse/{id}/wait", wrapAuth(r.handleBrowseWait, authMw))
	mux.Handle("GET "+bp+"/api/v1/browse/{id}/preview", previewLimiter.Middleware(wrapAuth(r.handleBrowsePreview, authMw)))

	// Connection routes
	mux.HandleFunc("GET "+bp+"/api/v1/connections", wrapAuth(r.handleListConnections, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/connections", wrapAuth(r.handleCreateConnection, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/connections/{id}", wrapAuth(r.handleGetConnection, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/connections/{id}", wrapAuth(r.handleUpdateConnection, authMw))
	mux.HandleFunc("DELETE "+bp+"/api/v1/connections/{id}", wrapAuth(r.handleDeleteConnection, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/connections/{id}/test", wrapAuth(r.handleTestConnection, authMw))

	// Settings routes
	mux.HandleFunc("GET "+bp+"/api/v1/settings/logging", wrapAuth(r.handleGetLogging, authMw))
	mux.HandleFunc("PUT "+bp+"/api/v1/settings/logging", wrapAuth(r.handleUpdateLogging, authMw))

	// Web routes (auth checked in handlers)
	mux.Handle("GET "+bp+"/items/{itemId}/images/browse", optionalAuth(http.HandlerFunc(r.handleBrowsePageView)))

	var h http.Handler = mux
	h = r.csrf.Middleware(h)
	h = middleware.SecurityHeaders(h)
	return middleware.Logging(r.logger)(h)
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(fn http.HandlerFunc, authMw func(http.Handler) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authMw(fn).ServeHTTP(w, r)
	}
}

// RescanStatic rehashes static assets so new cache-busting paths take effect.
func (r *Router) RescanStatic(context.Context) error {
	r.staticAssets.Rescan()
	return nil
}
