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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bicepspshop/newcoach/internal/bot"
	"github.com/bicepspshop/newcoach/internal/config"
	"github.com/bicepspshop/newcoach/internal/handlers"
	"github.com/bicepspshop/newcoach/internal/metrics"
	"github.com/bicepspshop/newcoach/internal/middleware"
	"github.com/bicepspshop/newcoach/internal/refresh"
	"github.com/bicepspshop/newcoach/internal/resolver"
	"github.com/bicepspshop/newcoach/internal/session"
	"github.com/bicepspshop/newcoach/internal/snapshot"
	"github.com/bicepspshop/newcoach/internal/store"
	"github.com/bicepspshop/newcoach/internal/supabase"
)

func main() {
	_ = godotenv.Load() // SUPABASE_URL etc.

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting newcoach server",
		"host", cfg.Host,
		"port", cfg.Port,
		"store", cfg.SupabaseURL,
		"log_level", cfg.LogLevel)

	// Offline snapshot store
	snapshots, err := snapshot.Open(cfg.SnapshotPath)
	if err != nil {
		logger.Error("Failed to open snapshot database", "error", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	// Remote store, resolver, sessions
	storeClient := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)
	st := store.New(storeClient, logger)
	res := resolver.New(st, logger)
	sessions := session.NewManager(res, logger)
	defer sessions.Close()

	api := handlers.NewAPI(cfg, st, res, sessions, snapshots, logger)

	// Set up HTTP routes
	mux := http.NewServeMux()

	mux.Handle("GET /api/state", middleware.Instrument(metrics.EndpointState, logger, api.HandleState))
	mux.Handle("POST /api/clients", middleware.Instrument(metrics.EndpointClients, logger, api.HandleCreateClient))
	mux.Handle("DELETE /api/clients/{id}", middleware.Instrument(metrics.EndpointClients, logger, api.HandleDeleteClient))
	mux.Handle("POST /api/workouts", middleware.Instrument(metrics.EndpointWorkouts, logger, api.HandleCreateWorkout))
	mux.Handle("PATCH /api/workouts/{id}", middleware.Instrument(metrics.EndpointWorkouts, logger, api.HandleUpdateWorkout))
	mux.Handle("POST /api/workouts/{id}/complete", middleware.Instrument(metrics.EndpointWorkoutStatus, logger, api.HandleCompleteWorkout))
	mux.Handle("POST /api/workouts/{id}/cancel", middleware.Instrument(metrics.EndpointWorkoutStatus, logger, api.HandleCancelWorkout))
	mux.Handle("GET /api/theme", middleware.Instrument(metrics.EndpointTheme, logger, api.HandleTheme))

	// Health check endpoint
	mux.Handle("GET /health", middleware.Instrument(metrics.EndpointHealth, logger, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	// Mini-App static assets
	if _, err := os.Stat(cfg.StaticDir); err == nil {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  35 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	defer backgroundCancel()

	// Start background refresher
	refresher := refresh.New(sessions, snapshots, cfg.RefreshInterval, logger)
	go func() {
		logger.Info("Starting background refresher", "interval", cfg.RefreshInterval)
		if err := refresher.Start(backgroundCtx); err != nil && err != context.Canceled {
			logger.Error("Background refresher failed", "error", err)
		}
	}()

	// Start bot surface if configured
	if cfg.BotToken != "" {
		coachBot, err := bot.New(cfg.BotToken, st, res, sessions, cfg.WebAppURL, logger)
		if err != nil {
			logger.Error("Failed to create bot", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := coachBot.Start(backgroundCtx); err != nil && err != context.Canceled {
				logger.Error("Bot failed", "error", err)
			}
		}()
	}

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start HTTP server in background
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	backgroundCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
}
