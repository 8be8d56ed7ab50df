package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"folio/internal/auth"
	rediscache "folio/internal/cache/redis"
	"folio/internal/catalog"
	"folio/internal/config"
	"folio/internal/extract"
	"folio/internal/handler"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/oracle"
	"folio/internal/oracle/providers"
	"folio/internal/port"
	"folio/internal/repository/postgres"
	"folio/internal/router"
	"folio/internal/service"
	"folio/internal/storage/local"
	s3storage "folio/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync(log)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := service.SettingsFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid layout config: %w", err)
	}

	// Caption oracle chain
	providers.Register()
	captionOracle, err := oracle.NewChain(&cfg.Oracle, log)
	if err != nil {
		return fmt.Errorf("failed to initialize caption oracle: %w", err)
	}

	health := map[string]handler.Pinger{}

	// Page cache
	var cache port.PageCache
	if cfg.Redis.Enabled {
		pc := rediscache.NewPageCache(&cfg.Redis, log)
		defer pc.Close()
		if err := pc.Ping(ctx); err != nil {
			log.Warn("page cache not reachable", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cache = pc
		health["cache"] = pc
	}

	// Catalog repository
	var repo port.CatalogRepository
	if cfg.DB.Enabled {
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		repo = postgres.NewCatalogRepo(db)
		health["database"] = repo
	}

	// Catalog sink
	var sinks port.CatalogSinkFactory
	switch cfg.Catalog.Sink {
	case "s3":
		s3Client, err := s3storage.NewS3Client(ctx, &cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		sinks = s3storage.NewSinkFactory(s3Client, cfg.S3.Bucket, cfg.S3.Prefix)
	case "local", "":
		sinks = local.NewSinkFactory(cfg.Catalog.OutputDir)
	default:
		return fmt.Errorf("unknown catalog sink %q", cfg.Catalog.Sink)
	}

	// Extractors
	var text port.TextExtractor
	var table port.TableExtractor
	if cfg.Catalog.HOCRDir != "" {
		h := extract.NewHOCRExtractor(cfg.Catalog.HOCRDir, cfg.Catalog.HOCRDPI)
		text, table = h, h
	}
	dispatcher := extract.NewDispatcher(text, table, extract.FigureCropper{}, log)

	// Services
	layoutSvc := service.NewLayoutService(settings, captionOracle, cache, log)
	writer := catalog.NewWriter(catalog.Options{
		Thumbnails:    cfg.Catalog.Thumbnails,
		ThumbnailSize: cfg.Catalog.ThumbnailSize,
	}, log)
	catalogSvc := service.NewCatalogService(layoutSvc, dispatcher, sinks, repo, writer, service.CatalogWorkers{
		PageConcurrency: cfg.Workers.PageConcurrency,
		PageTimeout:     cfg.Workers.PageTimeout,
	}, settings.DetectionDPI, log)

	// Auth is off without a secret.
	var validator middleware.TokenValidator
	if cfg.JWT.Secret != "" {
		validator = auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	} else {
		log.Warn("jwt secret not set; API is unauthenticated")
	}

	r := router.Setup(
		log,
		cfg.CORS.AllowedOrigins,
		validator,
		handler.NewRefineHandler(layoutSvc, log),
		handler.NewDocumentHandler(catalogSvc, log),
		handler.NewHealthHandler(health),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
