package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/damacus/iron-studio/internal/config"
	"github.com/damacus/iron-studio/internal/handlers"
	"github.com/damacus/iron-studio/internal/logger"
	"github.com/damacus/iron-studio/internal/metrics"
	customMiddleware "github.com/damacus/iron-studio/internal/middleware"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/renderer"
	"github.com/damacus/iron-studio/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.DefaultConfig())
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stdout})
	if cfg.SessionKey == "" {
		log.Warn().Msg("IRON_SESSION_KEY not set, sessions will not survive a restart")
	}
	if cfg.AdminToken == "" {
		log.Warn().Str("addr", cfg.ListenAddr).Msg("IRON_ADMIN_TOKEN not set, only loopback clients are served")
	}

	store, err := profiles.Open(cfg.ProfilesFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProfilesFile).Msg("cannot open profiles file")
	}

	srv := newServer(cfg, log, store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Int("profiles", len(store.List())).Msg("iron-studio listening")
		if err := srv.echo.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := srv.sessions.CloseAll(); err != nil {
		log.Error().Err(err).Msg("closing sessions")
	}
}

type server struct {
	echo     *echo.Echo
	sessions *services.SessionManager
}

func newServer(cfg *config.Config, log zerolog.Logger, store *profiles.Store) *server {
	return newServerWithFactory(cfg, log, store, &services.RealStoreFactory{LocalRoot: cfg.LocalStorageRoot})
}

func newServerWithFactory(cfg *config.Config, log zerolog.Logger, store *profiles.Store, factory services.StoreFactory) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Services
	authService := services.NewAuthService([]byte(cfg.SessionKey))
	sessions := services.NewSessionManager(factory, log)
	ops := services.NewFileOperations(log)
	usage := services.NewUsageService(factory)

	loginHandler := handlers.NewLoginHandler(cfg.AdminToken, authService, customMiddleware.OperatorTTL)
	sessionHandler := handlers.NewSessionHandler(authService, sessions, store)
	profilesHandler := handlers.NewProfilesHandler(store, factory, cfg.DefaultEndpoint)
	filesHandler := handlers.NewFilesHandler(ops, cfg.MaxUploadSize, cfg.ShareLinkMaxTTL)
	dashboardHandler := handlers.NewDashboardHandler(usage)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(customMiddleware.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(customMiddleware.SecurityHeaders())
	e.Use(customMiddleware.CSRF())
	// Everything but health and metrics belongs to the operator
	e.Use(customMiddleware.OperatorGate(cfg.AdminToken, authService))
	// Applied globally, public routes are skipped inside
	e.Use(customMiddleware.SessionMiddleware(authService, sessions))

	e.Renderer = renderer.New()

	// Routes without a session
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}
	e.GET(customMiddleware.LoginPath, loginHandler.Page)
	e.POST(customMiddleware.LoginPath, loginHandler.Submit)
	e.GET("/logout", sessionHandler.Logout)

	// Profiles
	e.GET("/profiles", profilesHandler.List)
	e.POST("/profiles", profilesHandler.Create)
	e.GET("/profiles/export", profilesHandler.Export)
	e.POST("/profiles/import", profilesHandler.Import)
	e.POST("/profiles/:id", profilesHandler.Update)
	e.POST("/profiles/:id/delete", profilesHandler.Delete)
	e.POST("/profiles/:id/test", profilesHandler.Test)
	e.POST("/profiles/:id/connect", sessionHandler.Connect)

	// Routes needing a session
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusSeeOther, "/browse")
	})
	e.GET("/browse", filesHandler.Browse)
	e.GET("/api/listing", filesHandler.Listing)
	e.GET("/api/storage/widget", dashboardHandler.GetStorageWidget)
	e.GET("/api/server/widget", dashboardHandler.GetServerWidget)

	// File operations
	e.POST("/files/upload", filesHandler.Upload)
	e.GET("/files/folder", filesHandler.CreateFolderModal)
	e.POST("/files/folder", filesHandler.CreateFolder)
	e.POST("/files/delete", filesHandler.Delete)
	e.GET("/files/rename", filesHandler.RenameModal)
	e.POST("/files/rename", filesHandler.Rename)
	e.GET("/files/download", filesHandler.Download)
	e.GET("/files/zip", filesHandler.DownloadZip)
	e.GET("/files/preview", filesHandler.Preview)
	e.GET("/files/info", filesHandler.Info)
	e.POST("/files/share", filesHandler.Share)
	e.GET("/files/uri", filesHandler.CopyURI)

	return &server{echo: e, sessions: sessions}
}
