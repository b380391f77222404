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

	"justicebid/api/internal/app"
	"justicebid/api/internal/archive"
	"justicebid/api/internal/config"
	"justicebid/api/internal/docstore"
	"justicebid/api/internal/email"
	"justicebid/api/internal/generator"
	"justicebid/api/internal/messaging"
	"justicebid/api/internal/search"
	"justicebid/api/internal/store"
	"justicebid/api/internal/templatecache"
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

	var cache templatecache.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := templatecache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCache.Close()
		cache = redisCache
		log.Printf("Using Redis for template caching")
	} else {
		cache = templatecache.NewMemoryCache()
		log.Printf("Using in-process template caching")
	}

	gen := generator.NewService(dataStore, cache, cfg.TemplatesDir).
		WithArchive(archive.New(cfg.ArchiveDir))

	minioCfg := docstore.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	}
	if minioCfg.Configured() {
		artifacts, err := docstore.New(ctx, minioCfg)
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
		gen = gen.WithArtifactStore(artifacts)
		log.Printf("Document artifacts stored in bucket %s", cfg.MinioBucket)
	}

	messages := messaging.NewService(dataStore)

	service := app.New(cfg, dataStore, gen, messages)

	mail := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mail.IsConfigured() {
		service = service.WithNotifier(mail)
		log.Printf("Negotiation email notifications enabled")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	service = service.WithSearch(searchService)

	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Justice Bid API listening on %s", cfg.Addr)
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
}
