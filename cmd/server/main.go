package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediavault/internal/server/api"
	"mediavault/internal/server/auth"
	"mediavault/internal/server/config"
	"mediavault/internal/server/database"
	"mediavault/internal/server/database/memory"
	"mediavault/internal/server/service"
	"mediavault/internal/server/storage"

	"github.com/joho/godotenv"
)

// repository is everything the server needs from a persistence backend.
type repository interface {
	service.AccountStore
	service.ContentStore
	service.DownloadStore
	service.SocialStore
	service.ModerationStore
	storage.DownloadPruner
	api.HealthChecker
}

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// A missing .env file is fine; the environment may already be set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"in_memory", cfg.InMemory(),
		"max_upload_size", cfg.MaxUploadSize,
	)

	ctx := context.Background()

	// Connect to database
	var repo repository
	if cfg.InMemory() {
		repo = memory.New()
		slog.Warn("using in-memory repository, data is lost on restart")
	} else {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrations complete")
		repo = database.NewRepository(db)
	}

	// Initialize storage
	var (
		store storage.Store
		links api.LinkOpener
	)
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			PresignDuration: cfg.S3.PresignDuration,
			CreateBucket:    cfg.S3.CreateBucket,
		})
		if err != nil {
			slog.Error("failed to create s3 store", "error", err)
			os.Exit(1)
		}
		store = s3Store
	default:
		fsStore := storage.NewFileSystemStore(cfg.StoragePath, cfg.BaseURL, []byte(cfg.JWTSecret), cfg.LinkTTL)
		store = fsStore
		links = fsStore
	}
	if err := store.EnsureDir(ctx); err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "backend", cfg.StorageBackend)

	// Initialize services
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	svc := api.Services{
		Accounts:   service.NewAccountService(repo, store, tokens),
		Content:    service.NewContentService(repo, store, cfg.MaxUploadSize),
		Downloads:  service.NewDownloadService(repo, store),
		Social:     service.NewSocialService(repo),
		Moderation: service.NewModerationService(repo),
	}

	if cfg.AdminUsername != "" {
		if err := svc.Accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			slog.Error("failed to ensure admin account", "error", err)
			os.Exit(1)
		}
	}

	// Start retention service
	retentionCtx, retentionCancel := context.WithCancel(context.Background())
	retention := storage.NewRetentionService(repo, cfg.DownloadRetentionDays, cfg.RetentionInterval)
	retention.Start(retentionCtx)

	// Setup HTTP router
	handler := api.NewHandler(svc, repo, links)
	e := api.SetupRouter(handler, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop retention service
	retentionCancel()
	retention.Wait()

	slog.Info("server exited cleanly")
}
