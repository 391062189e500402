package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"estate-market-backend/internal/config"
	"estate-market-backend/internal/events"
	"estate-market-backend/internal/jobs"
	"estate-market-backend/internal/logger"
	"estate-market-backend/internal/payment"
	"estate-market-backend/internal/repository/postgres"
	redisrepo "estate-market-backend/internal/repository/redis"
	"estate-market-backend/internal/scheduler"
	"estate-market-backend/internal/service"

	"github.com/alecthomas/kingpin/v2"
	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/plugin/kprom"
)

var jobNames = []string{"expire-stale-transactions", "replay-dead-letters", "all"}

func main() {
	// Parse command-line flags
	configPath := kingpin.Flag("config", "Path to configuration file").Short('c').Default("config/config.dev.yaml").String()
	runOnce := kingpin.Flag("run-once", "Run a specific job once and exit").Enum(jobNames...)
	kingpin.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()
	logger.Info("Starting Estate Market Cronjob Runner...", "log_level", cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	redisClient, err := redisrepo.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	dlq := redisrepo.NewDeadLetterQueue(redisClient, cfg.Redis.DeadLetterKey)

	jobServices := &jobs.Services{}
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.KafkaEnabled() {
		producer, err := events.NewProducerClient(cfg.Kafka.Brokers, cfg.Kafka.Topic, kprom.NewMetrics("estate_cron"))
		if err != nil {
			log.Fatalf("Failed to create kafka producer: %v", err)
		}
		defer producer.Close()
		kafkaPublisher := events.NewKafkaPublisher(producer, cfg.Kafka.Topic, dlq)
		publisher = kafkaPublisher
		jobServices.Events = kafkaPublisher
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

	// Expiry does not read history, so no audit store is wired here
	jobServices.Transactions = service.NewTransactionService(
		store.TransactionRepository,
		store.PropertyRepository,
		nil,
		gateway,
		publisher,
		cfg.Payment.Currency,
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobServices, dlq, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "expire-stale-transactions":
		jobRunner.ExpireStaleTransactions()
	case "replay-dead-letters":
		jobRunner.ReplayDeadLetters()
	case "all":
		jobRunner.RunAll()
	default:
		fmt.Fprintf(os.Stderr, "Unknown job %q, available: %v\n", jobName, jobNames)
		os.Exit(1)
	}
}
