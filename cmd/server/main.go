package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/marketlens/marketlens/internal/api"
	"github.com/marketlens/marketlens/internal/cache"
	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/database"
	"github.com/marketlens/marketlens/internal/kafka"
	"github.com/marketlens/marketlens/internal/services"
	"github.com/marketlens/marketlens/internal/upstream"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisCache, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisCache.Close()

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.Upstream.RequestsPerSec, log)

	tasks := services.NewTaskRunner(1024, 8, log)
	defer tasks.Close()

	var producer *kafka.Producer
	var publisher services.Publisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
	}

	referenceSvc := services.NewReferenceService(redisCache, db, client, tasks, publisher, log)
	calendarSvc := services.NewCalendarService(redisCache, db, client, tasks, publisher, referenceSvc, log)
	brandingSvc := services.NewBrandingService(redisCache, db, client, tasks, log)
	newsSvc := services.NewNewsService(redisCache, client, tasks, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.Enabled {
		consumer := kafka.NewInvalidationConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, redisCache, log)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("invalidation consumer stopped")
			}
		}()
	}

	// Sweep for market caps the calendar filter had to drop, so the
	// next day's event lists are complete.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("15 5 * * *", func() {
		if err := referenceSvc.RefreshMissingMarketCaps(context.Background()); err != nil {
			log.Error().Err(err).Msg("market cap refresh sweep failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule market cap sweep")
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(referenceSvc, calendarSvc, brandingSvc, newsSvc, log)
	router := api.SetupRoutes(handler)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
