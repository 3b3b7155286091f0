package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/sydlexius/artbrowser/internal/api"
	"github.com/sydlexius/artbrowser/internal/auth"
	"github.com/sydlexius/artbrowser/internal/browser"
	"github.com/sydlexius/artbrowser/internal/config"
	"github.com/sydlexius/artbrowser/internal/connection"
	"github.com/sydlexius/artbrowser/internal/database"
	"github.com/sydlexius/artbrowser/internal/encryption"
	"github.com/sydlexius/artbrowser/internal/event"
	"github.com/sydlexius/artbrowser/internal/i18n"
	"github.com/sydlexius/artbrowser/internal/logging"
	"github.com/sydlexius/artbrowser/internal/maintenance"
	"github.com/sydlexius/artbrowser/internal/remoteimage"
	"github.com/sydlexius/artbrowser/internal/version"
	"github.com/sydlexius/artbrowser/internal/watcher"
	"github.com/sydlexius/artbrowser/internal/webhook"
)

const (
	reaperInterval       = time.Minute
	sessionCleanupPeriod = time.Hour
	shutdownTimeout      = 10 * time.Second
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Example: `  # Serve with the default config file
  artbrowser serve

  # Serve with a local config
  artbrowser serve --config ./config.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.Logging)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	logger.Info("database ready", slog.String("path", cfg.Database.Path))

	if cfg.Database.MaintenanceInterval > 0 {
		maint := maintenance.NewService(db, cfg.Database.BackupPath(), cfg.Database.BackupRetention, logger)
		go maint.Start(ctx, cfg.Database.MaintenanceInterval)
	}

	// Settings saved from the UI win over the config file.
	logManager.Reconfigure(database.LoggingOverrides(ctx, db, cfg.Logging))

	encryptor, err := newEncryptor(cfg, logger)
	if err != nil {
		return err
	}

	catalog, err := i18n.New(cfg.I18n.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading string catalog: %w", err)
	}

	eventBus := event.NewBus(logger, 256)
	audit := logger.With(slog.String("component", "audit"))
	eventBus.SubscribeAll(func(e event.Event) {
		audit.Info("event", slog.String("type", string(e.Type)), slog.Any("data", e.Data))
	})
	if len(cfg.Webhooks) > 0 {
		hooks := webhook.NewDispatcher(cfg.Webhooks, nil, logger)
		eventBus.SubscribeAll(hooks.HandleEvent)
		defer hooks.Wait()
		logger.Info("webhooks enabled", slog.Int("count", len(cfg.Webhooks)))
	}
	go eventBus.Start()
	defer eventBus.Stop()

	authService := auth.NewService(db)
	connectionService := connection.NewService(db, encryptor)
	limiters := connection.NewRateLimiterMap(cfg.Upstream.RequestsPerSecond)
	resolver := connection.NewResolver(connectionService, limiters, logger)

	busy := &browser.BusyCounter{}
	manager := browser.NewManager(
		browser.ResolverFunc(func(ctx context.Context, serverID string) (remoteimage.Client, error) {
			return resolver.ClientFor(ctx, serverID)
		}),
		busy,
		eventBus,
		logger,
		browser.Options{
			PageSize:     cfg.Browser.PageSize,
			SlowPageSize: cfg.Browser.SlowPageSize,
			SessionTTL:   cfg.Browser.SessionTTL,
		},
	)
	defer manager.CloseAll()
	go manager.StartReaper(ctx, reaperInterval)

	var oidcProvider *auth.OIDCProvider
	if cfg.Auth.OIDC.Enabled() {
		oidcProvider, err = auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			Issuer:       cfg.Auth.OIDC.Issuer,
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.Auth.OIDC.RedirectURL,
			Scopes:       cfg.Auth.OIDC.Scopes,
		})
		if err != nil {
			return err
		}
		logger.Info("oidc login enabled", slog.String("issuer", cfg.Auth.OIDC.Issuer))
	}
	if cfg.Auth.Disabled {
		logger.Warn("authentication is disabled; only run this on a trusted network")
	}

	logger.Info("starting artbrowser",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
	)

	router := api.NewRouter(api.RouterDeps{
		AuthService:       authService,
		OIDC:              oidcProvider,
		AuthDisabled:      cfg.Auth.Disabled,
		ConnectionService: connectionService,
		Clients:           resolver,
		Browser:           manager,
		Busy:              busy,
		Translator:        catalog,
		LogManager:        logManager,
		DB:                db,
		Logger:            logger,
		BasePath:          cfg.Server.BasePath,
		StaticDir:         cfg.Server.StaticDir,
		DefaultLayout:     cfg.Browser.DefaultLayout,
		PreviewMaxWidth:   cfg.Browser.PreviewMaxWidth,
		PreviewMaxHeight:  cfg.Browser.PreviewMaxHeight,
	})

	go cleanSessions(ctx, authService, logger)

	reloadConfig := func(ctx context.Context) error {
		next, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logManager.Reconfigure(database.LoggingOverrides(ctx, db, next.Logging))
		return nil
	}
	reloadCatalog := func(context.Context) error { return catalog.Reload() }
	targets := []watcher.Target{
		{Name: "config", Path: configPath, Reload: reloadConfig},
		{Name: "catalog", Path: catalog.OverridePath(), Reload: reloadCatalog},
	}
	if cfg.Server.StaticDir != "" {
		targets = append(targets,
			watcher.Target{Name: "styles", Path: filepath.Join(cfg.Server.StaticDir, "css", "styles.css"), Reload: router.RescanStatic},
			watcher.Target{Name: "app-script", Path: filepath.Join(cfg.Server.StaticDir, "js", "app.js"), Reload: router.RescanStatic},
		)
	}
	go watcher.NewService(targets, eventBus, logger).Start(ctx)

	return serveHTTP(ctx, cfg.Server, router.Handler(ctx), logger)
}

// serveHTTP runs the server until ctx ends. Without TLS, HTTP/2 is offered
// over cleartext (h2c). With TLS and http3 enabled, a QUIC listener runs on
// the same port and is advertised through Alt-Svc.
func serveHTTP(ctx context.Context, sc config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	addr := fmt.Sprintf(":%d", sc.Port)

	var h3 *http3.Server
	if sc.TLSEnabled() && sc.HTTP3 {
		h3 = &http3.Server{
			Addr:      addr,
			Handler:   handler,
			TLSConfig: &tls.Config{MinVersion: tls.VersionTLS13},
		}
		next := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h3.SetQUICHeaders(w.Header()); err != nil {
				logger.Debug("setting alt-svc header", "error", err)
			}
			next.ServeHTTP(w, r)
		})
	}
	if !sc.TLSEnabled() {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Long-poll waits hold responses open for minutes.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Bool("tls", sc.TLSEnabled()),
			slog.String("base_path", sc.BasePath))
		var err error
		if sc.TLSEnabled() {
			err = srv.ListenAndServeTLS(sc.TLSCert, sc.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if h3 != nil {
		go func() {
			logger.Info("http/3 listener starting", slog.String("addr", addr))
			if err := h3.ListenAndServeTLS(sc.TLSCert, sc.TLSKey); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http/3: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if h3 != nil {
		if err := h3.Close(); err != nil {
			logger.Warn("closing http/3 listener", "error", err)
		}
	}
	return srv.Shutdown(shutdownCtx)
}

func cleanSessions(ctx context.Context, authService *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(sessionCleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := authService.CleanExpiredSessions(ctx); err != nil {
				logger.Error("session cleanup failed", "error", err)
			}
		}
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// newEncryptor resolves the key: configured key first, then the key file,
// which is created on first start.
func newEncryptor(cfg *config.Config, logger *slog.Logger) (*encryption.Encryptor, error) {
	key := cfg.Encryption.Key
	if key == "" {
		keyFile := cfg.Encryption.KeyFile
		if keyFile == "" {
			keyFile = filepath.Join(filepath.Dir(cfg.Database.Path), "encryption.key")
		}
		var created bool
		var err error
		key, created, err = encryption.LoadOrCreateKeyFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("resolving encryption key: %w", err)
		}
		if created {
			logger.Warn("generated new encryption key -- back up this file", slog.String("path", keyFile))
		}
	}
	enc, _, err := encryption.NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	return enc, nil
}
