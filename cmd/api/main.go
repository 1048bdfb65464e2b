// Package main provides the entrypoint for the soil advisor API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soiladvisor/soiladvisor/internal/api"
	"github.com/soiladvisor/soiladvisor/internal/api/middleware"
	"github.com/soiladvisor/soiladvisor/internal/app"
	"github.com/soiladvisor/soiladvisor/internal/config"
	"github.com/soiladvisor/soiladvisor/internal/soil/isda"
	"github.com/soiladvisor/soiladvisor/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "soiladvisor-api"

	envFile := flag.String("env-file", "", "dotenv file to load (default .env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// No logger yet; config decides the format.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := config.NewLogger(cfg, os.Stdout, serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Environment).
		Msg("starting soil advisor API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		Enabled:        cfg.OTelEnabled,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		SampleRatio:    cfg.OTelSampleRatio,
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

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// The API can serve classifications without a model; recommendations
	// then answer 503.
	components, err := app.Build(ctx, cfg, log, false)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	log.Info().
		Str("soil_provider", components.Soil.Name()).
		Str("generator", components.GeneratorName()).
		Strs("circuits", components.Registry.GetProviderNames()).
		Bool("lazy_auth", cfg.ISDALazyAuth).
		Msg("advisor initialized")

	routerCfg := api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         metrics,
		ProviderMetrics: providerMetrics,
		Advisor:         components.Advisor,
		Registry:        components.Registry,
		SoilProvider:    isda.ProviderName,
		Generator:       components.GeneratorName(),
		RequireTLS:      cfg.RequireTLS,
	}

	if jwtService := app.NewJWTService(cfg); jwtService != nil {
		routerCfg.TokenValidator = jwtService
		log.Info().Msg("API bearer authentication enabled")
	} else {
		if cfg.IsProduction() {
			log.Error().Msg("API_JWT_SIGNING_KEY is required in production")
			os.Exit(1)
		}
		log.Warn().Msg("API_JWT_SIGNING_KEY not set - soil endpoints are unauthenticated")
	}

	router := api.NewRouter(routerCfg)

	// Recommendation requests wait on the soil provider and the model.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ISDATimeout*4 + cfg.LLMTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
