package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-alert-workflow/internal/api"
	"github.com/mr1hm/go-alert-workflow/internal/config"
	"github.com/mr1hm/go-alert-workflow/internal/logging"
	"github.com/mr1hm/go-alert-workflow/internal/notify"
	"github.com/mr1hm/go-alert-workflow/internal/registry"
	"github.com/mr1hm/go-alert-workflow/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	store, err := repository.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Notification fan-out: registry → dispatcher pool → subscribers
	broadcaster := notify.NewBroadcaster()
	dispatcher := notify.NewDispatcher(broadcaster, cfg.Notify.Workers, cfg.Notify.BufferSize)
	dispatcher.Start()

	reg := registry.NewRegistry(store, dispatcher)
	if err := reg.Load(context.Background()); err != nil {
		logging.Fatalf("Failed to hydrate registry: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Actor-Role"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	handler := api.NewHandler(reg)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	dispatcher.Stop() // drains pending notifications, closes subscriber streams

	slog.Info("shutdown complete")
}
