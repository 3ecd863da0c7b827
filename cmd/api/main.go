package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"filevault/docs"
	"filevault/internal/config"
	"filevault/internal/database"
	"filevault/internal/database/migration"
	handlers "filevault/internal/http/handler"
	"filevault/internal/http/middleware"
	"filevault/internal/logger"
	"filevault/internal/metrics"
	"filevault/internal/otel"
	"filevault/internal/repository/memory"
	"filevault/internal/repository/postgres"
	"filevault/internal/service"
	"filevault/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title FileVault API
// @version 1.0
// @description Multi-tenant file storage with folder permissions, trash lifecycle and share links.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	shutdownTracing, err := otel.Init(ctx, lg)
	if err != nil {
		lg.Fatal("failed to initialize tracing", zap.Error(err))
	}

	db, repos, err := openStore(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to initialize metadata store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	blobs, err := openBlobs(cfg)
	if err != nil {
		lg.Fatal("failed to initialize object storage", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		lg.Fatal("failed to register metrics", zap.Error(err))
	}
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		lg.Fatal("failed to register http metrics", zap.Error(err))
	}

	deps := service.Deps{
		Repos:   repos,
		Blobs:   blobs,
		Policy:  service.NewAdminPolicy(cfg.Access.AdminRoles),
		Logger:  lg,
		Metrics: m,
		Options: service.Options{
			MaxTreeDepth: cfg.Lifecycle.MaxTreeDepth,
			NameScope:    service.NameScope(cfg.Access.FolderNameScope),
			BcryptCost:   cfg.Share.BcryptCost,
		},
	}
	deps.Activity = service.NewActivityRecorder(repos.Activity, deps.Policy, lg, m)

	lifecycle := service.NewLifecycleService(deps)
	svc := handlers.Services{
		Folders:     service.NewFolderService(deps),
		Files:       service.NewFileService(deps),
		Lifecycle:   lifecycle,
		Permissions: service.NewPermissionService(deps),
		Shares:      service.NewShareService(deps),
		Activity:    deps.Activity,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.ClientIP())
	app.Use(promMiddleware.Handler())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(lg))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	handlers.RegisterRoutes(app, db, svc, middleware.Identity(cfg.Auth.JWTSecret, handlers.Unauthenticated()))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	if cfg.Lifecycle.PurgeInterval > 0 {
		go lifecycle.RunPurgeScheduler(ctx, cfg.Lifecycle.PurgeInterval, cfg.Lifecycle.TrashRetention())
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Error("http shutdown failed", zap.Error(err))
		}
	}()

	addr := ":" + cfg.Port
	lg.Info("server starting",
		zap.String("addr", addr),
		zap.String("store_driver", cfg.Storage.StoreDriver),
		zap.String("blob_driver", cfg.Storage.BlobDriver),
	)
	if err := app.Listen(addr); err != nil {
		lg.Error("server stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		lg.Error("tracing shutdown failed", zap.Error(err))
	}
}

// openStore connects the metadata store selected by STORE_DRIVER. The returned db is nil
// for the in-memory store.
func openStore(ctx context.Context, cfg *config.AppConfig, lg *zap.Logger) (*sql.DB, service.Repositories, error) {
	switch cfg.Storage.StoreDriver {
	case "memory":
		st := memory.NewStore()
		lg.Warn("using in-memory metadata store; data is lost on restart")
		return nil, service.Repositories{
			Tx:          st,
			Folders:     st.Folders(),
			Files:       st.Files(),
			Versions:    st.Versions(),
			Permissions: st.Permissions(),
			ShareLinks:  st.ShareLinks(),
			Activity:    st.Activity(),
		}, nil
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.Database, lg)
		if err != nil {
			return nil, service.Repositories{}, err
		}
		if err := migration.EnsureMigrated(ctx, db, lg); err != nil {
			db.Close()
			return nil, service.Repositories{}, err
		}
		return db, service.Repositories{
			Tx:          postgres.NewTxManager(db),
			Folders:     postgres.NewFolderPostgres(db),
			Files:       postgres.NewFilePostgres(db),
			Versions:    postgres.NewVersionPostgres(db),
			Permissions: postgres.NewPermissionPostgres(db),
			ShareLinks:  postgres.NewShareLinkPostgres(db),
			Activity:    postgres.NewActivityPostgres(db),
		}, nil
	}
	return nil, service.Repositories{}, errors.New("unknown store driver " + cfg.Storage.StoreDriver)
}

func openBlobs(cfg *config.AppConfig) (storage.Storage, error) {
	if cfg.Storage.BlobDriver == "memory" {
		return storage.NewMemory(), nil
	}
	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	return storage.NewMinIO(cfg.MinIO)
}
