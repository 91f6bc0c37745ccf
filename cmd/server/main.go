// Command server runs the ezmenu ordering and stock HTTP API.
//
//go:generate swag init -g cmd/server/main.go -d ../../ -o ../../internal/docs --parseInternal
//
// @title       ezmenu ordering and stock API
// @version     1.0
// @description Table sessions, shared carts with the rodízio round limit, kitchen workflow, ingredient ledger and consumption analytics.
// @BasePath    /api/v1
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

	"github.com/Fredcx/ezmenu/internal/config"
	_ "github.com/Fredcx/ezmenu/internal/docs"
	httpapi "github.com/Fredcx/ezmenu/internal/http"
	"github.com/Fredcx/ezmenu/internal/observability"
	"github.com/Fredcx/ezmenu/internal/realtime"
	"github.com/Fredcx/ezmenu/internal/repo"
	"github.com/Fredcx/ezmenu/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}
	cfg := config.MustLoad()

	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.Open(cfg.DBDriver, cfg.DBPath, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.MenuCatalogPath != "" {
		if err := seedCatalog(ctx, db, cfg.MenuCatalogPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.MenuCatalogPath).Msg("load menu catalog")
		}
	}

	hub := realtime.NewHub(cfg.CORS.AllowedOrigins)
	go hub.Run(ctx)

	svc := httpapi.NewServices(db, hub, cfg)
	go runDeductionRetry(ctx, svc.Deductions, cfg.DeductionRetryInterval)
	go runIdempotencyPurge(ctx, db, time.Hour)

	r := gin.New()
	httpapi.RegisterRoutes(r, db, hub, svc, cfg)

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
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
