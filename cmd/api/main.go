package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/app"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/archive"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/config"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/docstore"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/events"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/export"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/search"
	"github.com/angelvanegas1006/Vistral-Rentals-mvp-sub003/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.ArchiveDir, 0o755); err != nil {
		log.Fatalf("failed to create archive dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	archiveService := archive.New(cfg.ArchiveDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	var publisher events.Publisher = events.NopPublisher{}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisPublisher, err := events.NewRedisPublisher(cfg.RedisURL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, review events disabled: %v", err)
		} else {
			defer redisPublisher.Close()
			publisher = redisPublisher
		}
	}

	var service *app.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		docs, err := docstore.New(docstore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		if err := docs.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: document bucket check failed: %v", err)
		}
		service = app.New(cfg, dataStore, archiveService, searchService, publisher, docs)
	} else {
		service = app.New(cfg, dataStore, archiveService, searchService, publisher, nil)
	}

	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	searchService.ReindexAllFromPG(ctx)

	exportService := export.NewService(app.NewExportStore(dataStore))

	httpServer := app.NewHTTPServer(service, exportService, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Vistral API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	service.FlushAll(shutdownCtx)
}
