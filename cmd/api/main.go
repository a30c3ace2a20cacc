// Package main provides the entrypoint for the Reelhaven API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelhaven/reelhaven/internal/api"
	"github.com/reelhaven/reelhaven/internal/api/middleware"
	"github.com/reelhaven/reelhaven/internal/auth"
	"github.com/reelhaven/reelhaven/internal/database"
	"github.com/reelhaven/reelhaven/internal/deletion"
	"github.com/reelhaven/reelhaven/internal/mediaserver"
	"github.com/reelhaven/reelhaven/internal/settings"
	"github.com/reelhaven/reelhaven/internal/telemetry"
	"github.com/reelhaven/reelhaven/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "reelhaven-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Reelhaven API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize JWT service (get signing key from environment)
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: jwtSigningKey,
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	})

	// Initialize settings service
	settingsService := settings.NewService(settings.ServiceConfig{
		Repository: settings.NewPostgresRepository(pool),
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("settings service initialized")

	// Initialize media server client (may be nil if not configured)
	var mediaClient mediaserver.Deleter
	if baseURL := os.Getenv("MEDIA_SERVER_URL"); baseURL != "" {
		mediaClient = mediaserver.NewClient(mediaserver.ClientConfig{
			BaseURL: baseURL,
			APIKey:  os.Getenv("MEDIA_SERVER_API_KEY"),
			Logger:  log,
		})
		log.Info().Str("base_url", baseURL).Msg("media server client initialized")
	} else {
		log.Warn().Msg("media server not configured - approved deletions require manual execution")
	}

	// Initialize deletion repository and service
	eligibleVoters, _ := strconv.Atoi(os.Getenv("ELIGIBLE_VOTERS"))
	deletionRepo := deletion.NewPostgresRepository(pool)
	deletionService := deletion.NewService(deletion.ServiceConfig{
		Repository:     deletionRepo,
		Settings:       settingsService,
		Permissions:    middleware.ClaimsChecker{},
		Logger:         log,
		Media:          mediaClient,
		EligibleVoters: eligibleVoters,
	})
	log.Info().Msg("deletion service initialized")

	// Sweeper exposed via the admin endpoints; the scheduled loop runs in
	// the worker binary.
	sweeper := worker.NewSweeper(worker.SweeperConfig{
		Repository: deletionRepo,
		Resolver:   deletionService,
		Settings:   settingsService,
		Logger:     log,
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		JWTService:      jwtService,
		DeletionService: deletionService,
		SettingsService: settingsService,
		Sweeper:         sweeper,
		ReadyCheck:      pool.Ping,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
