package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/comtower/sms-relay/internal/config"
	"github.com/comtower/sms-relay/internal/database"
	"github.com/comtower/sms-relay/internal/handler"
	"github.com/comtower/sms-relay/internal/jobs"
	"github.com/comtower/sms-relay/internal/middleware"
	"github.com/comtower/sms-relay/internal/redis"
	"github.com/comtower/sms-relay/internal/repository"
	"github.com/comtower/sms-relay/internal/service"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	mappingRepo := repository.NewMappingRepository(db.DB)
	linkRepo := repository.NewLinkRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	configRepo := repository.NewConfigRepository(db.DB)

	settingsService := service.NewSettingsService(configRepo)
	tokenGenerator := service.NewTokenGenerator(cfg.TokenTimeZone())
	linkService := service.NewLinkService(
		db, mappingRepo, linkRepo, messageRepo, configRepo,
		settingsService, tokenGenerator, cfg.PublicBaseURL,
	)
	poolService := service.NewPoolService(db, mappingRepo, linkRepo)
	ingestService := service.NewIngestService(messageRepo)
	adminService := service.NewAdminService(
		db, redisClient, mappingRepo, linkRepo, messageRepo, configRepo,
		cfg.AdminSecretKey, config.AdminSessionTTL,
	)

	adminSessionMiddleware := middleware.NewAdminSessionMiddleware(adminService, cfg.AdminSecretKey != "")
	resolveRateLimit := middleware.NewResolveRateLimitMiddleware(redisClient.Client, config.ResolveRateLimitPerMin)

	adminHandler := handler.NewAdminHandler(adminService, poolService, linkService, adminSessionMiddleware.Handler)
	linkHandler := handler.NewLinkHandler(linkService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/link", func(r chi.Router) {
		r.Use(resolveRateLimit.Handler)
		r.Mount("/", linkHandler.Routes())
	})

	r.Route("/admin", func(r chi.Router) {
		r.Mount("/", adminHandler.Routes())
	})

	monitorJob := jobs.NewMonitorJob(
		ingestService, settingsService, cfg.ScrapeInterval(), config.ScrapeFetchTimeout,
	)
	monitorJob.Start()
	defer monitorJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
