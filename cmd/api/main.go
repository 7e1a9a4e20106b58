package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/merchant-promotion-system/db"
	"github.com/fairyhunter13/merchant-promotion-system/internal/cache"
	"github.com/fairyhunter13/merchant-promotion-system/internal/config"
	"github.com/fairyhunter13/merchant-promotion-system/internal/handler"
	"github.com/fairyhunter13/merchant-promotion-system/internal/repository"
	"github.com/fairyhunter13/merchant-promotion-system/internal/service"
	"github.com/fairyhunter13/merchant-promotion-system/internal/validator"
	"github.com/fairyhunter13/merchant-promotion-system/pkg/database"
)

func main() {
	// Load configuration first
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	ctx := context.Background()

	if err := database.RunMigrations(cfg.DB.MigrationDSN(), db.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	// Initialize database pool with retry
	pool, err := database.NewPool(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// The cache is optional. Nil interfaces keep the service and health check on the database alone.
	var (
		redisClient *redis.Client
		appCache    service.ApplicationCacheInterface
		cachePinger handler.Pinger
	)
	if cfg.Cache.Enabled {
		redisClient = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		c := cache.NewApplicationCache(redisClient, cfg.Cache.TTLDuration())
		if err := c.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("cache unreachable at startup, continuing without warm cache")
		}
		appCache = c
		cachePinger = c
	}

	app := fiber.New(fiber.Config{
		AppName:      "Merchant Promotion System",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	validate := validator.New()

	applicationRepo := repository.NewApplicationRepository(pool)
	applicationService := service.NewApplicationService(pool, applicationRepo, appCache)
	applicationHandler := handler.NewApplicationHandler(applicationService, validate)

	healthHandler := handler.NewHealthHandler(pool, cachePinger)
	app.Get("/health", healthHandler.Check)

	applicationHandler.Register(app.Group("/api/applications"))

	go func() {
		log.Info().Str("port", cfg.Server.Port).Bool("cache_enabled", cfg.Cache.Enabled).Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	log.Info().Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	// Waits for in-flight requests
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// Close backing stores AFTER server shutdown (even if shutdown timed out)
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}
	log.Info().Msg("closing database connections...")
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		// Human-readable output for development
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
