package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log.Println("[Storefront] ========================================")
	log.Println("[Storefront] Storefront sync agent")
	log.Println("[Storefront] ========================================")
	log.Printf("[Storefront] Backend: %s", cfg.APIBaseURL)
	log.Printf("[Storefront] Device:  %s", cfg.DeviceID)
	log.Printf("[Storefront] Mirror:  %s", cfg.MirrorBackend)

	// Cart mirror
	blobs, mirrorKey, closeMirror := openMirror(ctx, cfg)
	defer closeMirror()
	fallback := cart.NewFallback(blobs, mirrorKey)

	// Session
	session := auth.NewSession(auth.NewFileTokenStore(cfg.TokenFile, cfg.TokenPassphrase))
	if err := session.Restore(); err != nil {
		log.Printf("[Storefront] No session restored: %v", err)
	}
	if session.Authenticated() {
		log.Printf("[Storefront] Restored session for user %s", session.UserID())
	}

	backend := apiclient.New(cfg.APIBaseURL, cfg.HTTPTimeout, session)

	// Catalog
	catalog := product.NewService(backend)
	if cfg.RedisAddr != "" {
		redisClient := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer redisClient.Close()
		catalog.WithCache(store.NewRedisCache(redisClient, "storefront:"), cfg.CatalogTTL)
		log.Printf("[Storefront] Catalog cache: redis %s", cfg.RedisAddr)
	} else {
		catalog.WithCache(store.NewMemoryCache(), cfg.CatalogTTL)
		log.Println("[Storefront] Catalog cache: in-memory")
	}

	// Cart
	var publisher store.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		log.Printf("[Storefront] Kafka: %v", cfg.KafkaBrokers)
		log.Printf("[Storefront] Topic: %s", cfg.KafkaTopic)
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}
	carts := cart.NewService(backend, session, fallback).WithPublisher(publisher, cfg.DeviceID)

	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		// Each device reads every event, so the group is per device
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "storefront-"+cfg.DeviceID)
		defer consumer.Close()
		handler := notification.NewHandler(carts, session)

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("[Storefront] Starting cart event consumer...")
			if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
				log.Printf("[Storefront] Consumer error: %v", err)
			}
		}()
	}

	// Initial load
	if _, err := carts.Fetch(ctx); err != nil {
		log.Printf("[Storefront] Initial cart load failed: %v", err)
	}
	if _, err := catalog.Fetch(ctx, product.Query{Page: 1}); err != nil {
		log.Printf("[Storefront] Initial catalog load failed: %v", err)
	}

	handlers := api.NewHandlers(catalog, carts, backend)
	sessions := api.NewSessionHandlers(session, backend, carts)
	router := api.NewRouter(handlers, sessions, cfg.LocalAPIKey)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[Storefront] Local API listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Storefront] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[Storefront] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Storefront] Shutdown error: %v", err)
	}

	wg.Wait()
}

// openMirror returns the blob store backing the cart mirror and the key the
// cart is stored under. Postgres falls back to the file mirror when it cannot
// be reached.
func openMirror(ctx context.Context, cfg *config.Config) (store.BlobStore, string, func()) {
	fileStore := store.NewFileBlobStore(filepath.Dir(cfg.CartFile))
	fileKey := filepath.Base(cfg.CartFile)

	if cfg.MirrorBackend != "postgres" {
		return fileStore, fileKey, func() {}
	}
	if cfg.DatabaseURL == "" {
		log.Println("[Storefront] CART_MIRROR=postgres without DATABASE_URL, using file mirror")
		return fileStore, fileKey, func() {}
	}

	db, err := store.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Printf("[Storefront] Failed to connect to PostgreSQL, using file mirror: %v", err)
		return fileStore, fileKey, func() {}
	}
	pg := store.NewPostgresBlobStore(db, cfg.DeviceID)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Printf("[Storefront] Failed to prepare mirror table, using file mirror: %v", err)
		db.Close()
		return fileStore, fileKey, func() {}
	}
	log.Println("[Storefront] Connected to PostgreSQL")
	return pg, cart.DefaultMirrorKey, func() { db.Close() }
}
