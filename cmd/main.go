package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cupgame/telemetry/config"
	"github.com/cupgame/telemetry/internal/api"
	intkafka "github.com/cupgame/telemetry/internal/kafka"
	"github.com/cupgame/telemetry/internal/metrics"
	"github.com/cupgame/telemetry/internal/ratelimit"
	"github.com/cupgame/telemetry/internal/repository"
	"github.com/cupgame/telemetry/internal/service"
)

var configPath = flag.String("config", "config/config.yaml", "path to the config file")

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}
	zap.L().Info("Config loaded", zap.String("path", *configPath))

	redisRepo, err := repository.NewRedisRepository()
	if err != nil {
		zap.L().Fatal("Failed to init Redis repository", zap.Error(err))
	}
	defer redisRepo.Close()

	producer, err := intkafka.NewProducer()
	if err != nil {
		zap.L().Fatal("Failed to init Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	consumer, err := intkafka.NewConsumer()
	if err != nil {
		zap.L().Fatal("Failed to init Kafka consumer", zap.Error(err))
	}
	defer consumer.Stop()

	counters := metrics.NewCounters()
	counters.Publish("telemetry")

	bucket := ratelimit.NewBucket(
		cfg.RateLimit.Capacity,
		cfg.RateLimit.RefillTokens,
		cfg.RateLimit.RefillInterval,
	)

	ingestService := service.NewIngestService(producer, bucket, cfg.Auth.APIKey, counters)

	projectorService := service.NewProjectorService(
		redisRepo,
		cfg.Projection.PresenceTTL,
		cfg.Projection.UniquesTTL,
		cfg.Projection.StoreTimeout,
		counters,
	)
	consumer.StartConsuming(projectorService.ProcessGameAction)

	queryService := service.NewQueryService(
		redisRepo,
		cfg.Query.DefaultMatchID,
		cfg.Query.DefaultLimit,
		cfg.Projection.StoreTimeout,
	)

	server := api.NewServer(ingestService, queryService, counters)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			zap.L().Fatal("HTTP server exited", zap.Error(err))
		}
	}()

	zap.L().Info("Telemetry pipeline started", zap.Int("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down")
}
