// Command server runs the cooler-backend HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and the typed configuration.
//  2. Configure zerolog global level and Gin mode.
//  3. Open SQLite, migrate the schema, seed the campus coolers.
//  4. Install the OTel trace provider (no-op unless OTEL_ENABLED).
//  5. Build the oracle client + image store and register all routes.
//  6. Serve until SIGINT/SIGTERM, then drain with a bounded shutdown.
//
// @title        Cooler Backend API
// @version      1.0
// @description  Verification-and-record lifecycle service for campus water coolers.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-cooler-backend/docs"
	"github.com/tbourn/go-cooler-backend/internal/config"
	httpapi "github.com/tbourn/go-cooler-backend/internal/http"
	"github.com/tbourn/go-cooler-backend/internal/observability"
	"github.com/tbourn/go-cooler-backend/internal/oracle"
	"github.com/tbourn/go-cooler-backend/internal/repo"
	"github.com/tbourn/go-cooler-backend/internal/sysutil"
)

// version is stamped by the build (-ldflags "-X main.version=...").
var version = "dev"

func main() {
	// Local development convenience; production injects real env.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	ctx := context.Background()
	if err := repo.SeedCoolers(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("seed coolers")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup otel")
	}

	oc := oracle.NewHTTPClient(oracle.HTTPClientOptions{
		Endpoint: cfg.Oracle.Endpoint,
		APIKey:   cfg.Oracle.APIKey,
		Model:    cfg.Oracle.Model,
		Timeout:  cfg.Oracle.Timeout,
	})
	images := &oracle.FSStore{Root: cfg.ImageDir}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, oc, images, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Block until a termination signal, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("bye")
}
