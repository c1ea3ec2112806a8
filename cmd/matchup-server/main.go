/*
Package main is the entry point of the reference matchUp backend.

It loads configuration, initializes the global logger, opens the account store (PostgreSQL
when DATABASE_URL is set, process memory otherwise), starts the chat relay and serves the
HTTP API until SIGINT or SIGTERM triggers a graceful shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"matchup/internal/app/backend"
	"matchup/internal/app/chat"
	"matchup/internal/app/db"
	"matchup/internal/configs"
	"matchup/internal/handler"
	"matchup/internal/pkg/logx"
	"matchup/internal/pkg/metrics"
)

func main() {
	// Load configuration from environment variables and the optional YAML file
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("postgres", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var repo backend.Repository
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to database")
		}
		defer pool.Close()
		repo = db.NewRepository(pool)
	} else {
		logx.Warn("DATABASE_URL is not set. Accounts are kept in memory and lost on restart.")
		repo = backend.NewMemoryRepository()
	}

	service := backend.NewService(repo)
	if cfg.SeedLocations {
		if err := service.Seed(ctx, backend.DefaultLocations); err != nil {
			logx.Fatal(err, "Failed to seed locations")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// Initialize the chat relay
	manager := chat.NewManager(0, collector)

	router := handler.Router(&handler.AppDeps{
		Config:   cfg,
		Service:  service,
		Manager:  manager,
		Metrics:  collector,
		Registry: registry,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info("matchUp backend starting", "addr", "http://localhost"+serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	logx.Info("Server gracefully stopped.")
}
