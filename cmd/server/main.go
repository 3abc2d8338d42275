package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/propintel/backend/internal/cache"
	"github.com/propintel/backend/internal/config"
	"github.com/propintel/backend/internal/db"
	"github.com/propintel/backend/internal/engine"
	httpapi "github.com/propintel/backend/internal/http"
	"github.com/propintel/backend/internal/messaging"
	"github.com/propintel/backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "propintel-backend").Logger()

	engineCfg, err := cfg.Engine()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid engine config")
	}
	eng := engine.New(engineCfg, engine.WithWorkers(cfg.AnalysisWorkers))

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var insightCache *cache.InsightCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, insight cache disabled")
		} else {
			defer client.Close()
			insightCache = cache.NewInsightCache(client, cfg.InsightCacheTTL)
		}
	}

	var sender messaging.Sender
	if cfg.MessagingURL == "" {
		sender = messaging.LogSender{Logger: logger}
		logger.Info().Msg("using log-only messaging sender")
	} else {
		sender = messaging.HTTPSender{BaseURL: cfg.MessagingURL, Token: cfg.MessagingToken}
	}

	svc := &service.AnalysisService{
		Store:        store,
		Engine:       eng,
		Cache:        insightCache,
		Sender:       sender,
		Logger:       logger,
		Region:       cfg.MessagingRegion,
		NotifyUrgent: cfg.NotifyUrgent,
	}

	router := httpapi.Router(cfg, store, svc, eng, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
