package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleanops/cleanops/internal/app"
	"github.com/cleanops/cleanops/internal/auth"
	"github.com/cleanops/cleanops/internal/dashboard"
	"github.com/cleanops/cleanops/internal/gate"
	"github.com/cleanops/cleanops/internal/identity"
	"github.com/cleanops/cleanops/internal/nav"
	"github.com/cleanops/cleanops/internal/observability"
	"github.com/cleanops/cleanops/internal/platform/cache"
	"github.com/cleanops/cleanops/internal/platform/db"
	"github.com/cleanops/cleanops/internal/rbac"
	"github.com/cleanops/cleanops/internal/shared"
	"github.com/cleanops/cleanops/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	evaluator, err := rbac.Load(cfg.PolicyPath, cfg.CatalogPath)
	if err != nil {
		logger.Error("load access policy", slog.Any("error", err))
		os.Exit(1)
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.SecureCookies())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	broker := identity.NewBroker()
	defer broker.Close()

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, broker).WithAuditor(auditLogger)
	identitySource := identity.NewSessionSource(authService, logger)

	accessGate := gate.New(evaluator, metrics)
	renderer, err := gate.NewRenderer(accessGate, logger)
	if err != nil {
		logger.Error("parse gate templates", slog.Any("error", err))
		os.Exit(1)
	}
	pages := dashboard.NewPages(logger, templates, csrfManager, nav.NewFilter(evaluator))
	access := gate.Middleware{
		Gate:     accessGate,
		Renderer: renderer,
		Pages:    pages,
		Audit:    auditLogger,
		Logger:   logger,
	}
	stream := dashboard.NewStream(logger, accessGate, broker, metrics)
	dashboardHandler := dashboard.NewHandler(logger, pages, templates, accessGate, renderer, access, stream)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Identity:         identitySource,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Int("roles", len(rbac.Roles())))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
