// Package main provides the entrypoint for the Reelhaven background worker.
// It runs the expired-vote sweeper and badge reconciliation on schedules,
// optionally triggered early through Pub/Sub.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/badge"
	"github.com/reelhaven/reelhaven/internal/database"
	"github.com/reelhaven/reelhaven/internal/deletion"
	"github.com/reelhaven/reelhaven/internal/mediaserver"
	"github.com/reelhaven/reelhaven/internal/settings"
	"github.com/reelhaven/reelhaven/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "reelhaven-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Reelhaven worker")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize settings service
	settingsService := settings.NewService(settings.ServiceConfig{
		Repository: settings.NewPostgresRepository(pool),
		Logger:     log,
	})

	// Initialize media server client (may be nil if not configured)
	var mediaClient mediaserver.Deleter
	if baseURL := os.Getenv("MEDIA_SERVER_URL"); baseURL != "" {
		mediaClient = mediaserver.NewClient(mediaserver.ClientConfig{
			BaseURL: baseURL,
			APIKey:  os.Getenv("MEDIA_SERVER_API_KEY"),
			Logger:  log,
		})
	} else {
		log.Warn().Msg("media server not configured - approved deletions require manual execution")
	}

	// Initialize deletion service. The worker only resolves requests, so no
	// permission checks apply here.
	deletionRepo := deletion.NewPostgresRepository(pool)
	deletionService := deletion.NewService(deletion.ServiceConfig{
		Repository: deletionRepo,
		Settings:   settingsService,
		Logger:     log,
		Media:      mediaClient,
	})

	// Initialize the expired-vote sweeper
	sweepInterval := 5 * time.Minute
	if v := os.Getenv("SWEEP_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			sweepInterval = time.Duration(secs) * time.Second
		}
	}
	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Repository: deletionRepo,
		Resolver:   deletionService,
		Settings:   settingsService,
		Logger:     log,
		Interval:   sweepInterval,
	})
	go sweeper.Start(ctx)

	// Initialize the badge reconciler on an hourly schedule
	reconciler := badge.NewReconciler(badge.ReconcilerConfig{
		Repository: badge.NewPostgresRepository(pool),
		Logger:     log,
	})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reconciler.ReconcileTopReviewers(ctx); err != nil {
					log.Error().Err(err).Msg("badge reconciliation failed")
				}
			}
		}
	}()

	// Optionally process Pub/Sub job triggers
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if projectID != "" && subscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Sweeper:          sweeper,
			Reconciler:       reconciler,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running on timers only")
	}

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
