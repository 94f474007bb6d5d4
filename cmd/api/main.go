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

	"github.com/trossachsgroup/site-backend/internal/api"
	"github.com/trossachsgroup/site-backend/internal/config"
	"github.com/trossachsgroup/site-backend/internal/log"
	"github.com/trossachsgroup/site-backend/internal/metrics"
	"github.com/trossachsgroup/site-backend/internal/posts"
	"github.com/trossachsgroup/site-backend/internal/site"
	"github.com/trossachsgroup/site-backend/internal/storage"
	"github.com/trossachsgroup/site-backend/internal/store"
	"github.com/trossachsgroup/site-backend/internal/ws"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting site API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"store", cfg.Store.Backend,
		"admin_gated", cfg.AdminGated(),
	)

	// Setup metrics
	metricsObj, metricsHandler, err := metrics.Setup("site-api")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	// Redis when reachable, in-memory otherwise
	cache, err := store.NewCache(cfg.Cache.RedisAddr, logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		logger.Fatalw("Cache ping failed", "error", err)
	}
	logger.Infow("Cache ready", "in_memory", cache.IsInMemoryMode())

	// Post storage
	st, err := storage.Open(ctx, cfg.Store, cache, logger)
	if err != nil {
		logger.Fatalw("Failed to open post store", "error", err)
	}
	defer st.Close()

	if cfg.Posts.Seed {
		seed, err := storage.LoadSeed(cfg.Posts.SeedFile)
		if err != nil {
			logger.Fatalw("Failed to load seed", "error", err)
		}
		if err := st.Seed(ctx, seed); err != nil {
			logger.Fatalw("Failed to seed posts", "error", err)
		}
	}

	// Services
	postSvc := posts.NewService(st.Posts, cache, logger, metricsObj, cfg.Posts.CacheTTL)
	// A list cached in Redis by an earlier process may not match this store
	if err := postSvc.InvalidateList(ctx); err != nil {
		logger.Fatalw("Failed to clear cached post list", "error", err)
	}
	inbox := site.NewInbox(cache, logger, metricsObj, cfg.Contact.InboxLimit, cfg.Contact.Retention)

	// Setup WebSocket hub and SSE handler
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	wsHub := ws.NewHub(cache, logger, metricsObj, cfg.AllowedOrigins())
	if err := wsHub.Start(hubCtx); err != nil {
		logger.Fatalw("Failed to start websocket hub", "error", err)
	}
	sseHandler := ws.NewSSEHandler(cache, logger, metricsObj)

	// Setup API handler and middleware
	handler := api.NewHandler(
		postSvc,
		site.DefaultCatalog(),
		inbox,
		wsHub,
		sseHandler,
		map[string]api.Pinger{"cache": cache, "store": st},
		logger,
	)
	middleware := api.NewMiddleware(logger, metricsObj, cfg.Security.AdminPasswordHash)

	router := handler.Routes(middleware, api.RouteOptions{
		CORSOrigins:       cfg.AllowedOrigins(),
		RateLimitRPM:      cfg.Security.RateLimitRPM,
		TrustProxyHeaders: cfg.Security.TrustProxyHeaders,
	})

	logger.Infow("CORS configured", "allowed_origins", cfg.AllowedOrigins())

	// Add metrics endpoint
	router.Handle("/metrics", metricsHandler)

	// WriteTimeout stays zero so SSE and websocket streams are not cut;
	// the router bounds ordinary requests itself.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("Server startup failed", "error", err)
		}
	case sig := <-shutdown:
		logger.Infow("Shutdown signal received", "signal", sig.String())

		// Stop live streams first so Shutdown is not held open by them
		hubCancel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}

		logger.Infow("Server stopped")
	}
}
