package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-market-backend/internal/config"
	"estate-market-backend/internal/events"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/repository/mongodb"
	redisrepo "estate-market-backend/internal/repository/redis"

	"github.com/alecthomas/kingpin/v2"
	"github.com/twmb/franz-go/plugin/kprom"
)

// The ledger projects transaction events from Kafka into the Mongo audit
// store that backs the history endpoint.
func main() {
	configPath := kingpin.Flag("config", "Path to the application config file").Short('c').Default("config/config.dev.yaml").String()
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if !cfg.KafkaEnabled() || !cfg.MongoEnabled() {
		log.Fatalf("Invalid configuration: the ledger needs kafka.brokers and mongo.uri")
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mongo Connection
	mongoClient, err := mongodb.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		log.Fatalf("cannot create mongo client: %v", err)
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	// Redis Connection
	redisClient, err := redisrepo.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("cannot create redis client: %v", err)
	}
	defer redisClient.Close()

	eventRepo := mongodb.NewEventRepository(mongoClient, cfg.Mongo.Database, cfg.Mongo.Collection)
	dlq := redisrepo.NewDeadLetterQueue(redisClient, cfg.Redis.DeadLetterKey)
	projector := events.NewProjector(eventRepo, dlq)

	metrics := kprom.NewMetrics("estate_ledger")
	client, err := events.NewConsumerClient(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, cfg.Kafka.Topic, metrics)
	if err != nil {
		log.Fatalf("cannot create transactions consumer: %v", err)
	}

	metricsSrv := &http.Server{Addr: cfg.Kafka.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Metrics endpoint listening", "address", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	consumer := events.NewConsumer(client, projector, cfg.Kafka.ConsumerGroup, cfg.Kafka.RecordsPerPoll)
	if err := consumer.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Cannot poll records from topic", "topic", cfg.Kafka.Topic, "error", err)
		return
	}
	logger.Info("Ledger stopped")
}
