package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "estate-market-backend/internal/api/http"
	"estate-market-backend/internal/config"
	"estate-market-backend/internal/events"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/payment"
	"estate-market-backend/internal/repository"
	"estate-market-backend/internal/repository/mongodb"
	"estate-market-backend/internal/repository/postgres"
	redisrepo "estate-market-backend/internal/repository/redis"
	"estate-market-backend/internal/security"
	"estate-market-backend/internal/service"
	"estate-market-backend/internal/storage"

	"github.com/alecthomas/kingpin/v2"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/plugin/kprom"
)

func main() {
	// Parse command-line flags
	configPath := kingpin.Flag("config", "Path to configuration file").Short('c').Default("config/config.dev.yaml").String()
	kingpin.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Info("Starting Estate Market API...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	// Redis backs the dead-letter queue and refresh token revocation
	redisClient, err := redisrepo.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	dlq := redisrepo.NewDeadLetterQueue(redisClient, cfg.Redis.DeadLetterKey)
	revocations := redisrepo.NewTokenRevocation(redisClient, cfg.Redis.RevokedPrefix)

	var eventRepo repository.EventRepository
	if cfg.MongoEnabled() {
		mongoClient, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			logger.Error("Failed to connect to mongo", "error", err)
			log.Fatalf("Failed to connect to mongo: %v", err)
		}
		defer func() {
			_ = mongoClient.Disconnect(context.Background())
		}()
		eventRepo = mongodb.NewEventRepository(mongoClient, cfg.Mongo.Database, cfg.Mongo.Collection)
	} else {
		logger.Warn("No mongo URI configured, transaction history is disabled")
	}

	metrics := kprom.NewMetrics("estate_api")
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaEnabled() {
		producer, err := events.NewProducerClient(cfg.Kafka.Brokers, cfg.Kafka.Topic, metrics)
		if err != nil {
			logger.Error("Failed to create kafka producer", "error", err)
			log.Fatalf("Failed to create kafka producer: %v", err)
		}
		defer producer.Close()
		publisher = events.NewKafkaPublisher(producer, cfg.Kafka.Topic, dlq)
	} else {
		logger.Warn("No kafka brokers configured, transaction events are not published")
	}

	gateway := payment.NewResilientGateway(
		payment.NewStripeGateway(cfg.Payment.SecretKey),
		payment.RetryPolicy{
			MaxAttempts:     cfg.Payment.MaxAttempts,
			InitialInterval: cfg.Payment.InitialInterval,
			MaxInterval:     cfg.Payment.MaxInterval,
			CallTimeout:     cfg.Payment.CallTimeout,
		},
		payment.BreakerPolicy{
			MaxRequests:         cfg.Payment.Breaker.MaxRequests,
			Interval:            cfg.Payment.Breaker.Interval,
			Timeout:             cfg.Payment.Breaker.Timeout,
			ConsecutiveFailures: cfg.Payment.Breaker.ConsecutiveFailures,
		},
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)

	// Initialize Storage
	logger.Info("Using local image storage", "upload_dir", cfg.Storage.UploadDir)
	fileStore, err := storage.NewLocalStorage(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize Services
	maxFileBytes := cfg.Storage.MaxFileSize << 20
	authSvc := service.NewAuthService(store.UserRepository, tokenManager, revocations)
	propertySvc := service.NewPropertyService(store.PropertyRepository, fileStore, service.ImageLimits{
		MaxImages:    cfg.Storage.MaxImages,
		MaxFileBytes: maxFileBytes,
		AllowedTypes: cfg.Storage.AllowedTypes,
	})
	transactionSvc := service.NewTransactionService(
		store.TransactionRepository,
		store.PropertyRepository,
		eventRepo,
		gateway,
		publisher,
		cfg.Payment.Currency,
	)

	router := httpapi.NewRouter(httpapi.RouterDependencies{
		Auth:           authSvc,
		Properties:     propertySvc,
		Transactions:   transactionSvc,
		Storage:        fileStore,
		Tokens:         tokenManager,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: int64(cfg.Storage.MaxImages)*maxFileBytes + 1<<20,
		Health: httpapi.HealthFunc(func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			if err := gateway.CheckHealth(); err != nil {
				return fmt.Errorf("payment: %w", err)
			}
			return nil
		}),
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", router)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}
